package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
)

type fakeSource struct {
	rows   []attendance.Row
	roster []attendance.Participant
}

func (f *fakeSource) Rows(_ context.Context, from, to *time.Time) ([]attendance.Row, error) {
	var out []attendance.Row
	for _, r := range f.rows {
		if from != nil && r.EventDate.Before(*from) {
			continue
		}
		if to != nil && r.EventDate.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) Roster(context.Context) ([]attendance.Participant, error) {
	return f.roster, nil
}

func (f *fakeSource) Totals(_ context.Context, from *time.Time, limit int) ([]attendance.Total, error) {
	rows, _ := f.Rows(context.Background(), from, nil)
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Name]++
	}
	var out []attendance.Total
	for name, n := range counts {
		out = append(out, attendance.Total{Name: name, Total: n})
	}
	return out, nil
}

func (f *fakeSource) LatestEventDateBefore(_ context.Context, before time.Time) (*time.Time, error) {
	var latest *time.Time
	for _, r := range f.rows {
		d := r.EventDate
		if d.Before(before) && (latest == nil || d.After(*latest)) {
			latest = &d
		}
	}
	return latest, nil
}

// Wednesday 2024-01-31 in Jakarta.
func newTestService(src Source) *Service {
	loc, _ := time.LoadLocation("Asia/Jakarta")
	now := time.Date(2024, 1, 31, 5, 0, 0, 0, time.UTC)
	clock := eventdate.NewClockAt(loc, func() time.Time { return now })
	return NewService(src, clock, time.Sunday, time.Sunday)
}

func TestAbsenceLeaderboardWindow(t *testing.T) {
	src := &fakeSource{
		rows: append(exampleRows(),
			row("budi", "Budi", "2023-12-31"), // before the window
		),
		roster: []attendance.Participant{alya, budi},
	}
	svc := newTestService(src)

	start, end := svc.AbsenceWindow(DefaultAbsenceWeeks)
	assert.Equal(t, "2024-01-07", eventdate.Key(start))
	assert.Equal(t, "2024-02-03", eventdate.Key(end))

	report, err := svc.AbsenceLeaderboard(context.Background(), DefaultAbsenceWeeks, LeaderboardSize)
	require.NoError(t, err)
	assert.Equal(t, 3, report.SessionsCount)
	assert.Equal(t, []AbsenceRow{{ParticipantID: "budi", Name: "Budi", Attended: 1, Absent: 2}}, report.Rows)
}

func TestStreakLeaderboardLimit(t *testing.T) {
	svc := newTestService(&fakeSource{rows: exampleRows()})

	report, err := svc.StreakLeaderboard(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Alya", report.Rows[0].Name)
}

func TestLuckyDrawUsesLatestCompletedWeek(t *testing.T) {
	src := &fakeSource{rows: append(exampleRows(),
		row("budi", "Budi", "2024-01-28"),
		row("alya", "Alya", "2024-01-31"), // current week, excluded
	)}
	svc := newTestService(src)

	pool, ok, err := svc.LuckyDraw(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-14", pool.WeekStart)
	assert.Equal(t, "2024-01-20", pool.WeekEnd)
	require.Len(t, pool.Participants, 1)
	assert.Equal(t, "Alya", pool.Participants[0].Name)

	src.rows = append(src.rows, row("budi", "Budi", "2024-01-22"))
	pool, ok, err = svc.LuckyDraw(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-21", pool.WeekStart)
	assert.Equal(t, []string{"2024-01-22"}, pool.SessionDates)
	require.Len(t, pool.Participants, 1)
	assert.Equal(t, "Budi", pool.Participants[0].Name)
}

func TestLuckyDrawWithoutHistory(t *testing.T) {
	svc := newTestService(&fakeSource{})
	_, ok, err := svc.LuckyDraw(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTotalsSince(t *testing.T) {
	svc := newTestService(&fakeSource{})

	assert.Nil(t, svc.TotalsSince("all"))
	assert.Equal(t, "2024-01-01", eventdate.Key(*svc.TotalsSince("30d")))
	assert.Equal(t, "2023-11-02", eventdate.Key(*svc.TotalsSince("90d")))
	assert.Equal(t, "2024-01-01", eventdate.Key(*svc.TotalsSince("year")))
}

func TestClampWeeks(t *testing.T) {
	assert.Equal(t, 8, ClampWeeks(8, 4))
	assert.Equal(t, 4, ClampWeeks(0, 4))
	assert.Equal(t, 12, ClampWeeks(53, 12))
}
