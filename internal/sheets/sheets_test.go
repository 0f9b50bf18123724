package sheets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
)

type fakeService struct {
	mu       sync.Mutex
	titles   []string
	titleErr error
	values   map[string][][]any
	calls    []string
	updated  map[string][][]any
	appended map[string][][]any
}

func newFakeService(titles ...string) *fakeService {
	return &fakeService{
		titles:   titles,
		values:   map[string][][]any{},
		updated:  map[string][][]any{},
		appended: map[string][][]any{},
	}
}

func (f *fakeService) Titles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "titles")
	return append([]string(nil), f.titles...), f.titleErr
}

func (f *fakeService) AddTab(_ context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add:"+title)
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeService) Clear(_ context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "clear:"+rng)
	return nil
}

func (f *fakeService) Update(_ context.Context, rng string, values [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+rng)
	f.updated[rng] = values
	return nil
}

func (f *fakeService) Append(_ context.Context, rng string, values [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "append:"+rng)
	f.appended[rng] = append(f.appended[rng], values...)
	return nil
}

func (f *fakeService) Read(_ context.Context, rng string) ([][]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "read:"+rng)
	return f.values[rng], nil
}

func strp(s string) *string { return &s }

func gender(g attendance.Gender) *attendance.Gender { return &g }

func TestFormatAttendance(t *testing.T) {
	d1, _ := eventdate.Parse("2024-01-07")
	d2, _ := eventdate.Parse("2024-01-14")
	t0 := time.Date(2024, 1, 7, 2, 0, 0, 0, time.UTC)

	rows := []attendance.Row{
		{Name: "Budi", EventDate: d1, CreatedAt: t0.Add(time.Minute)},
		{Name: "Alya", EventDate: d1, CreatedAt: t0, Address: strp("Jl. Melati"), Gender: gender(attendance.GenderFemale), DeviceID: strp("tab-1")},
		{Name: "Alya", EventDate: d2, CreatedAt: t0.Add(7 * 24 * time.Hour)},
	}

	got := FormatAttendance(rows)
	want := [][]any{
		{"Tanggal Kajian: 2024-01-14"},
		{"waktu_input", "nama", "alamat", "jenis_kelamin", "id_perangkat"},
		{"2024-01-14T02:00:00.000Z", "Alya", "", "", ""},
		{},
		{"Tanggal Kajian: 2024-01-07"},
		{"waktu_input", "nama", "alamat", "jenis_kelamin", "id_perangkat"},
		{"2024-01-07T02:00:00.000Z", "Alya", "Jl. Melati", "P", "tab-1"},
		{"2024-01-07T02:01:00.000Z", "Budi", "", "", ""},
	}
	assert.Equal(t, want, got)
}

func TestFormatAttendanceEmpty(t *testing.T) {
	assert.Equal(t, [][]any{{"Belum ada data presensi"}}, FormatAttendance(nil))
}

func TestWorkbookResolvesAliases(t *testing.T) {
	svc := newFakeService("Attendance", "Sheet1")
	book := NewWorkbook(svc, nil)

	assert.Equal(t, "Attendance", book.Resolve(context.Background(), "Presensi"))
	assert.NotContains(t, svc.calls, "add:Presensi")

	assert.Equal(t, "Peserta", book.Resolve(context.Background(), "Peserta"))
	assert.Contains(t, svc.calls, "add:Peserta")
}

func TestWorkbookResolveFallsBackOnMetadataError(t *testing.T) {
	svc := newFakeService()
	svc.titleErr = errors.New("quota exceeded")
	book := NewWorkbook(svc, nil)

	assert.Equal(t, "Presensi", book.Resolve(context.Background(), "Presensi"))
}

func TestWorkbookReplaceClearsThenWrites(t *testing.T) {
	svc := newFakeService("Presensi")
	book := NewWorkbook(svc, nil)
	values := [][]any{{"Belum ada data presensi"}}

	require.NoError(t, book.Replace(context.Background(), "Presensi", values))
	assert.Equal(t, []string{"titles", "clear:Presensi!A:Z", "update:Presensi!A1"}, svc.calls)
	assert.Equal(t, values, svc.updated["Presensi!A1"])
}

func TestWorkbookQuotesTabsWithSpaces(t *testing.T) {
	svc := newFakeService("Daftar Hadir")
	book := NewWorkbook(svc, nil)

	require.NoError(t, book.AppendRow(context.Background(), "Daftar Hadir", []any{"x"}))
	assert.Equal(t, [][]any{{"x"}}, svc.appended["'Daftar Hadir'!A1"])
}

func TestUnconfiguredWorkbook(t *testing.T) {
	book := NewWorkbook(nil, nil)
	assert.False(t, book.Configured())
	assert.ErrorIs(t, book.Replace(context.Background(), "Presensi", nil), ErrNotConfigured)
	assert.ErrorIs(t, book.AppendRow(context.Background(), "Peserta", nil), ErrNotConfigured)
	_, err := book.ReadAll(context.Background(), "Peserta")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type rowSource struct{ rows []attendance.Row }

func (r rowSource) Rows(context.Context, *time.Time, *time.Time) ([]attendance.Row, error) {
	return r.rows, nil
}

func TestMirrorReplaceAttendance(t *testing.T) {
	svc := newFakeService("Presensi")
	d, _ := eventdate.Parse("2024-01-07")
	m := NewMirror(NewWorkbook(svc, nil), rowSource{rows: []attendance.Row{{Name: "Alya", EventDate: d, CreatedAt: d}}}, "Presensi")

	require.NoError(t, m.ReplaceAttendance(context.Background()))
	written := svc.updated["Presensi!A1"]
	require.Len(t, written, 3)
	assert.Equal(t, []any{"Tanggal Kajian: 2024-01-07"}, written[0])
}

func TestParseParticipantRows(t *testing.T) {
	values := [][]string{
		{"dibuat_pada", "Nama", "Alamat", "Jenis_Kelamin"},
		{"2024-01-01T00:00:00.000Z", "Alya", "Jl. Melati", "perempuan"},
		{"2024-01-01T00:00:00.000Z", "", "", "L"},
		{"Budi", "nama", "", "laki laki"},
		{"", "Citra", "", "X"},
		{"2024-01-02", "2024-01-02"},
	}

	rows := ParseParticipantRows(values)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alya", rows[0].Name)
	assert.Equal(t, "Jl. Melati", rows[0].Address)
	assert.Equal(t, attendance.GenderFemale, *rows[0].Gender)
	assert.Equal(t, "Budi", rows[1].Name)
	assert.Equal(t, attendance.GenderMale, *rows[1].Gender)
	assert.Equal(t, "Citra", rows[2].Name)
	assert.Nil(t, rows[2].Gender)
}

func TestParseParticipantRowsWithoutNameHeader(t *testing.T) {
	rows := ParseParticipantRows([][]string{{"a", "b"}, {"x", "Dewi"}})
	require.Len(t, rows, 1)
	assert.Equal(t, "Dewi", rows[0].Name)
}

func TestNormalizeGender(t *testing.T) {
	assert.Equal(t, attendance.GenderMale, *NormalizeGender(" Laki-Laki "))
	assert.Equal(t, attendance.GenderFemale, *NormalizeGender("p"))
	assert.Nil(t, NormalizeGender(""))
	assert.Nil(t, NormalizeGender("unknown"))
}

type mockRoster struct{ mock.Mock }

func (m *mockRoster) Roster(ctx context.Context) ([]attendance.Participant, error) {
	args := m.Called(ctx)
	return args.Get(0).([]attendance.Participant), args.Error(1)
}

func (m *mockRoster) CreateParticipant(ctx context.Context, in attendance.ParticipantInput) (attendance.Participant, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(attendance.Participant), args.Error(1)
}

func (m *mockRoster) UpdateParticipant(ctx context.Context, id string, in attendance.ParticipantInput) (attendance.Participant, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(attendance.Participant), args.Error(1)
}

func TestImporterRun(t *testing.T) {
	svc := newFakeService("Participants")
	svc.values["Participants!A:Z"] = [][]any{
		{"dibuat_pada", "nama", "alamat", "jenis_kelamin"},
		{"2024-01-01", "ALYA", "Jl. Mawar", ""},
		{"2024-01-01", "Budi", "", "L"},
		{"2024-01-01", "Citra", "", "P"},
		{"2024-01-01", "Dewi", "", ""},
	}

	store := &mockRoster{}
	ctx := context.Background()
	store.On("Roster", ctx).Return([]attendance.Participant{
		{ID: "1", Name: "Alya", Address: strp("Jl. Melati"), Gender: gender(attendance.GenderFemale)},
		{ID: "2", Name: "Budi", Gender: gender(attendance.GenderMale)},
		{ID: "4", Name: "Dewi"},
	}, nil)
	store.On("UpdateParticipant", ctx, "1", attendance.ParticipantInput{
		Name: "Alya", Address: "Jl. Mawar", Gender: gender(attendance.GenderFemale),
	}).Return(attendance.Participant{ID: "1", Name: "Alya"}, nil)
	store.On("CreateParticipant", ctx, attendance.ParticipantInput{
		Name: "Citra", Gender: gender(attendance.GenderFemale),
	}).Return(attendance.Participant{ID: "3", Name: "Citra"}, nil)

	res, err := NewImporter(NewWorkbook(svc, nil), "Peserta", store, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 1, Updated: 1}, res)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateParticipant", ctx, "2", mock.Anything)
}
