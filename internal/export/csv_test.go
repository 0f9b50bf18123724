package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
	"presensi/internal/stats"
)

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"Alya":            "Alya",
		"":                "",
		"Jl. Melati, 5":   `"Jl. Melati, 5"`,
		`Budi "Bud"`:      `"Budi ""Bud"""`,
		"line\nbreak":     "\"line\nbreak\"",
		" leading space ": " leading space ",
	}
	for in, want := range cases {
		assert.Equal(t, want, Escape(in), in)
	}
}

func TestAttendanceCSV(t *testing.T) {
	d, _ := eventdate.Parse("2024-01-07")
	addr := "Jl. Melati, 5"
	g := attendance.GenderFemale
	dev := "tab-1"

	got := AttendanceCSV([]attendance.Attendance{
		{
			EventDate: d,
			CreatedAt: time.Date(2024, 1, 7, 2, 30, 0, 0, time.UTC),
			DeviceID:  &dev,
			Participant: attendance.Participant{
				Name: "Alya", Address: &addr, Gender: &g,
			},
		},
		{
			EventDate:   d,
			CreatedAt:   time.Date(2024, 1, 7, 2, 31, 0, 0, time.UTC),
			Participant: attendance.Participant{Name: "Budi"},
		},
	})

	want := "tanggal_kajian,dibuat_pada,nama,alamat,jenis_kelamin,id_perangkat\n" +
		"2024-01-07,2024-01-07T02:30:00.000Z,Alya,\"Jl. Melati, 5\",P,tab-1\n" +
		"2024-01-07,2024-01-07T02:31:00.000Z,Budi,,,"
	assert.Equal(t, want, got)
}

func TestAttendanceCSVEmpty(t *testing.T) {
	assert.Equal(t, "tanggal_kajian,dibuat_pada,nama,alamat,jenis_kelamin,id_perangkat", AttendanceCSV(nil))
}

func TestLeaderboardCSV(t *testing.T) {
	got := LeaderboardCSV(stats.Leaderboard{
		Totals:  []attendance.Total{{Name: "Alya", Total: 3}},
		Streaks: []stats.StreakRow{{Name: "Alya", BestStreak: 2, CurrentStreak: 1}},
		Absences: []stats.AbsenceRow{
			{Name: "Budi", Attended: 1, Absent: 2},
			{Name: "Alya", Attended: 3, Absent: 0},
		},
	})

	want := "jenis,nama,total_hadir,streak_terbaik,streak_saat_ini,hadir,tidak_hadir\n" +
		"total,Alya,3,,,,\n" +
		"streak,Alya,,2,1,,\n" +
		"absent,Budi,,,,1,2"
	assert.Equal(t, want, got)
}
