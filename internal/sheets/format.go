package sheets

import (
	"sort"
	"time"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
)

// TimestampLayout renders creation times as UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// EmptyPlaceholder is written when there is no attendance at all.
const EmptyPlaceholder = "Belum ada data presensi"

// AttendanceHeader labels the columns of every session block.
var AttendanceHeader = []any{"waktu_input", "nama", "alamat", "jenis_kelamin", "id_perangkat"}

// FormatAttendance lays rows out as one block per session date, newest
// session first: a title line, the column labels, one line per check-in in
// the order they arrived, then a blank separator. The last separator is dropped.
func FormatAttendance(rows []attendance.Row) [][]any {
	byDate := map[string][]attendance.Row{}
	for _, r := range rows {
		key := eventdate.Key(r.EventDate)
		byDate[key] = append(byDate[key], r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var values [][]any
	for _, d := range dates {
		group := byDate[d]
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })

		values = append(values, []any{"Tanggal Kajian: " + d})
		values = append(values, append([]any(nil), AttendanceHeader...))
		for _, r := range group {
			values = append(values, []any{
				Timestamp(r.CreatedAt),
				r.Name,
				deref(r.Address),
				genderString(r.Gender),
				deref(r.DeviceID),
			})
		}
		values = append(values, []any{})
	}

	if len(values) == 0 {
		return [][]any{{EmptyPlaceholder}}
	}
	if len(values[len(values)-1]) == 0 {
		values = values[:len(values)-1]
	}
	return values
}

// ParticipantRow is the line appended to the participants tab on registration.
func ParticipantRow(p attendance.Participant) []any {
	return []any{Timestamp(p.CreatedAt), p.Name, deref(p.Address), genderString(p.Gender)}
}

// Timestamp formats t the way the spreadsheet expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func genderString(g *attendance.Gender) string {
	if g == nil {
		return ""
	}
	return string(*g)
}
