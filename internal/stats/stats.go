// Package stats derives leaderboard and weekly reports from attendance rows.
// Every function here is pure; Service wires them to the store and the clock.
package stats

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
)

// StreakRow is one participant's weekly streak.
type StreakRow struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	BestStreak    int    `json:"bestStreak"`
	CurrentStreak int    `json:"currentStreak"`
}

// StreakReport holds every participant with at least one qualifying date.
// LastOccurrence is nil when nobody attended on the occurrence weekday.
type StreakReport struct {
	Rows           []StreakRow
	LastOccurrence *string
}

// AbsenceRow counts sessions attended and missed inside a window.
type AbsenceRow struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Attended      int    `json:"attended"`
	Absent        int    `json:"absent"`
}

// AbsenceReport holds a row per roster member for the sessions that took place.
type AbsenceReport struct {
	Start         string
	End           string
	SessionDates  []string
	SessionsCount int
	Rows          []AbsenceRow
}

// WeeklyParticipant is a participant's attendance inside one week.
type WeeklyParticipant struct {
	ParticipantID    string   `json:"participantId"`
	Name             string   `json:"name"`
	Address          *string  `json:"address"`
	AttendedSessions int      `json:"attendedSessions"`
	AttendedDates    []string `json:"attendedDates"`
}

// WeeklyGroup is a seven-day bucket starting on the anchor weekday.
type WeeklyGroup struct {
	WeekStart          string              `json:"weekStart"`
	WeekEnd            string              `json:"weekEnd"`
	SessionDates       []string            `json:"sessionDates"`
	SessionsCount      int                 `json:"sessionsCount"`
	UniqueParticipants int                 `json:"uniqueParticipants"`
	TotalAttendance    int                 `json:"totalAttendance"`
	Participants       []WeeklyParticipant `json:"participants"`
}

// DrawEntry is a participant eligible for the lucky draw.
type DrawEntry struct {
	ParticipantID string  `json:"participantId"`
	Name          string  `json:"name"`
	Address       *string `json:"address"`
}

// DrawPool is everyone who attended during one completed week.
type DrawPool struct {
	WeekStart    string
	WeekEnd      string
	SessionDates []string
	Participants []DrawEntry
}

const weekDays = 7

// Streaks computes best and current consecutive-week runs over records that
// fall on the occurrence weekday. Other days neither extend nor break a run.
func Streaks(rows []attendance.Row, occurrence time.Weekday) StreakReport {
	type entry struct {
		name  string
		dates map[string]time.Time
	}
	byParticipant := map[string]*entry{}
	var order []string
	var last time.Time
	found := false

	for _, r := range rows {
		if !eventdate.IsWeekday(r.EventDate, occurrence) {
			continue
		}
		d := eventdate.FromCalendar(r.EventDate.UTC())
		if !found || d.After(last) {
			last, found = d, true
		}
		e, ok := byParticipant[r.ParticipantID]
		if !ok {
			e = &entry{name: r.Name, dates: map[string]time.Time{}}
			byParticipant[r.ParticipantID] = e
			order = append(order, r.ParticipantID)
		}
		e.dates[eventdate.Key(d)] = d
	}

	report := StreakReport{Rows: []StreakRow{}}
	if !found {
		return report
	}
	lastKey := eventdate.Key(last)
	report.LastOccurrence = &lastKey

	for _, id := range order {
		e := byParticipant[id]
		dates := sortedDates(e.dates)

		best, run := 0, 0
		for i := range dates {
			if i > 0 && eventdate.DaysBetween(dates[i-1], dates[i]) == weekDays {
				run++
			} else {
				run = 1
			}
			if run > best {
				best = run
			}
		}

		current := 0
		if _, ok := e.dates[lastKey]; ok {
			current = 1
			// lastKey is the global maximum, so it is the final element.
			for i := len(dates) - 1; i > 0; i-- {
				if eventdate.DaysBetween(dates[i-1], dates[i]) != weekDays {
					break
				}
				current++
			}
		}

		report.Rows = append(report.Rows, StreakRow{
			ParticipantID: id,
			Name:          e.name,
			BestStreak:    best,
			CurrentStreak: current,
		})
	}

	col := newCollator()
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.BestStreak != b.BestStreak {
			return a.BestStreak > b.BestStreak
		}
		if a.CurrentStreak != b.CurrentStreak {
			return a.CurrentStreak > b.CurrentStreak
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
	return report
}

// Absences counts, per roster member, the sessions inside [start, end] they
// attended and missed. Only dates with at least one record count as sessions,
// so a window with no records penalises nobody. Rows are ordered by absences
// descending, then by name.
func Absences(rows []attendance.Row, roster []attendance.Participant, start, end time.Time) AbsenceReport {
	start, end = eventdate.FromCalendar(start.UTC()), eventdate.FromCalendar(end.UTC())
	sessions := map[string]struct{}{}
	attended := map[string]map[string]struct{}{}

	for _, r := range rows {
		d := eventdate.FromCalendar(r.EventDate.UTC())
		if d.Before(start) || d.After(end) {
			continue
		}
		key := eventdate.Key(d)
		sessions[key] = struct{}{}
		if attended[r.ParticipantID] == nil {
			attended[r.ParticipantID] = map[string]struct{}{}
		}
		attended[r.ParticipantID][key] = struct{}{}
	}

	report := AbsenceReport{
		Start:         eventdate.Key(start),
		End:           eventdate.Key(end),
		SessionDates:  sortedKeys(sessions),
		SessionsCount: len(sessions),
		Rows:          []AbsenceRow{},
	}
	for _, p := range roster {
		present := len(attended[p.ID])
		absent := report.SessionsCount - present
		if absent < 0 {
			absent = 0
		}
		report.Rows = append(report.Rows, AbsenceRow{
			ParticipantID: p.ID,
			Name:          p.Name,
			Attended:      present,
			Absent:        absent,
		})
	}

	col := newCollator()
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.Absent != b.Absent {
			return a.Absent > b.Absent
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
	return report
}

// Absentees returns the rows with at least one missed session, keeping the report order.
func (r AbsenceReport) Absentees() []AbsenceRow {
	out := []AbsenceRow{}
	for _, row := range r.Rows {
		if row.Absent > 0 {
			out = append(out, row)
		}
	}
	return out
}

// GroupWeekly buckets rows into weeks starting on anchor, most recent week first.
func GroupWeekly(rows []attendance.Row, anchor time.Weekday) []WeeklyGroup {
	type member struct {
		WeeklyParticipant
		dates map[string]struct{}
	}
	type bucket struct {
		start    time.Time
		sessions map[string]struct{}
		members  map[string]*member
		total    int
	}
	buckets := map[string]*bucket{}

	for _, r := range rows {
		start := eventdate.WeekStart(r.EventDate, anchor)
		startKey := eventdate.Key(start)
		b, ok := buckets[startKey]
		if !ok {
			b = &bucket{start: start, sessions: map[string]struct{}{}, members: map[string]*member{}}
			buckets[startKey] = b
		}
		key := eventdate.Key(r.EventDate)
		b.total++
		b.sessions[key] = struct{}{}
		m, ok := b.members[r.ParticipantID]
		if !ok {
			m = &member{
				WeeklyParticipant: WeeklyParticipant{ParticipantID: r.ParticipantID, Name: r.Name, Address: r.Address},
				dates:             map[string]struct{}{},
			}
			b.members[r.ParticipantID] = m
		}
		m.dates[key] = struct{}{}
	}

	col := newCollator()
	groups := make([]WeeklyGroup, 0, len(buckets))
	for _, b := range buckets {
		participants := make([]WeeklyParticipant, 0, len(b.members))
		for _, m := range b.members {
			p := m.WeeklyParticipant
			p.AttendedDates = sortedKeys(m.dates)
			p.AttendedSessions = len(p.AttendedDates)
			participants = append(participants, p)
		}
		sort.Slice(participants, func(i, j int) bool {
			a, b := participants[i], participants[j]
			if a.AttendedSessions != b.AttendedSessions {
				return a.AttendedSessions > b.AttendedSessions
			}
			if c := col.CompareString(a.Name, b.Name); c != 0 {
				return c < 0
			}
			return a.ParticipantID < b.ParticipantID
		})

		sessions := sortedKeys(b.sessions)
		groups = append(groups, WeeklyGroup{
			WeekStart:          eventdate.Key(b.start),
			WeekEnd:            eventdate.Key(eventdate.AddDays(b.start, weekDays-1)),
			SessionDates:       sessions,
			SessionsCount:      len(sessions),
			UniqueParticipants: len(participants),
			TotalAttendance:    b.total,
			Participants:       participants,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].WeekStart > groups[j].WeekStart })
	return groups
}

// LuckyDraw collects the distinct participants of rows, which should already
// be limited to a single week.
func LuckyDraw(rows []attendance.Row, weekStart time.Time) DrawPool {
	pool := DrawPool{
		WeekStart:    eventdate.Key(weekStart),
		WeekEnd:      eventdate.Key(eventdate.AddDays(weekStart, weekDays-1)),
		Participants: []DrawEntry{},
	}
	sessions := map[string]struct{}{}
	seen := map[string]bool{}
	for _, r := range rows {
		sessions[eventdate.Key(r.EventDate)] = struct{}{}
		if seen[r.ParticipantID] {
			continue
		}
		seen[r.ParticipantID] = true
		pool.Participants = append(pool.Participants, DrawEntry{ParticipantID: r.ParticipantID, Name: r.Name, Address: r.Address})
	}
	pool.SessionDates = sortedKeys(sessions)

	col := newCollator()
	sort.SliceStable(pool.Participants, func(i, j int) bool {
		return col.CompareString(pool.Participants[i].Name, pool.Participants[j].Name) < 0
	})
	return pool
}

// newCollator orders names the way an Indonesian reader expects. Collators
// are not safe for concurrent use, so each call gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Indonesian, collate.IgnoreCase)
}

func sortedDates(m map[string]time.Time) []time.Time {
	out := make([]time.Time, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
