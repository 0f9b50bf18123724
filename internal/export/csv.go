// Package export renders attendance and leaderboards as CSV downloads.
package export

import (
	"strconv"
	"strings"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
	"presensi/internal/stats"
)

// ContentType is sent with every CSV response.
const ContentType = "text/csv; charset=utf-8"

// MaxAttendanceRows caps a single attendance export.
const MaxAttendanceRows = 5000

var (
	attendanceHeader  = []string{"tanggal_kajian", "dibuat_pada", "nama", "alamat", "jenis_kelamin", "id_perangkat"}
	leaderboardHeader = []string{"jenis", "nama", "total_hadir", "streak_terbaik", "streak_saat_ini", "hadir", "tidak_hadir"}
)

const createdLayout = "2006-01-02T15:04:05.000Z"

// Escape quotes a field only when it holds a comma, a double quote or a
// newline. Embedded quotes are doubled.
func Escape(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// AttendanceCSV renders records in the order given.
func AttendanceCSV(records []attendance.Attendance) string {
	var w writer
	w.line(attendanceHeader...)
	for _, a := range records {
		w.line(
			eventdate.Key(a.EventDate),
			a.CreatedAt.UTC().Format(createdLayout),
			a.Participant.Name,
			str(a.Participant.Address),
			gender(a.Participant.Gender),
			str(a.DeviceID),
		)
	}
	return w.String()
}

// LeaderboardCSV renders totals, then streaks, then absentees.
func LeaderboardCSV(lb stats.Leaderboard) string {
	var w writer
	w.line(leaderboardHeader...)
	for _, t := range lb.Totals {
		w.line("total", t.Name, strconv.Itoa(t.Total), "", "", "", "")
	}
	for _, s := range lb.Streaks {
		w.line("streak", s.Name, "", strconv.Itoa(s.BestStreak), strconv.Itoa(s.CurrentStreak), "", "")
	}
	for _, a := range lb.Absences {
		if a.Absent == 0 {
			continue
		}
		w.line("absent", a.Name, "", "", "", strconv.Itoa(a.Attended), strconv.Itoa(a.Absent))
	}
	return w.String()
}

type writer struct {
	b     strings.Builder
	lines int
}

func (w *writer) line(fields ...string) {
	if w.lines > 0 {
		w.b.WriteByte('\n')
	}
	for i, f := range fields {
		if i > 0 {
			w.b.WriteByte(',')
		}
		w.b.WriteString(Escape(f))
	}
	w.lines++
}

func (w *writer) String() string { return w.b.String() }

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func gender(g *attendance.Gender) string {
	if g == nil {
		return ""
	}
	return string(*g)
}
