package stats

import (
	"context"
	"fmt"
	"time"

	"presensi/internal/attendance"
	"presensi/internal/eventdate"
)

// Source is the read side of the attendance store.
type Source interface {
	Rows(ctx context.Context, from, to *time.Time) ([]attendance.Row, error)
	Roster(ctx context.Context) ([]attendance.Participant, error)
	Totals(ctx context.Context, from *time.Time, limit int) ([]attendance.Total, error)
	LatestEventDateBefore(ctx context.Context, before time.Time) (*time.Time, error)
}

// Window defaults and bounds, in weeks.
const (
	DefaultAbsenceWeeks = 4
	DefaultWeeklyWeeks  = 12
	DefaultExportWeeks  = 24
	MaxWeeks            = 52
	LeaderboardSize     = 10
)

// Service computes reports on every call; nothing is cached.
type Service struct {
	src        Source
	clock      *eventdate.Clock
	occurrence time.Weekday
	anchor     time.Weekday
}

// NewService builds a report service. occurrence is the weekday the
// gathering takes place, anchor the first day of a reporting week.
func NewService(src Source, clock *eventdate.Clock, occurrence, anchor time.Weekday) *Service {
	return &Service{src: src, clock: clock, occurrence: occurrence, anchor: anchor}
}

// ClampWeeks returns n when it is inside 1..MaxWeeks and fallback otherwise.
func ClampWeeks(n, fallback int) int {
	if n < 1 || n > MaxWeeks {
		return fallback
	}
	return n
}

// TotalsSince maps a leaderboard range name to its first event date; nil means all time.
func (s *Service) TotalsSince(rangeName string) *time.Time {
	today := s.clock.Today()
	var from time.Time
	switch rangeName {
	case "30d", "last30":
		from = eventdate.AddDays(today, -30)
	case "90d":
		from = eventdate.AddDays(today, -90)
	case "year":
		from = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return nil
	}
	return &from
}

// TotalLeaderboard returns the most frequent attendees for rangeName.
func (s *Service) TotalLeaderboard(ctx context.Context, rangeName string, limit int) ([]attendance.Total, error) {
	totals, err := s.src.Totals(ctx, s.TotalsSince(rangeName), limit)
	if err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	if totals == nil {
		totals = []attendance.Total{}
	}
	return totals, nil
}

// StreakLeaderboard computes streaks over all attendance. limit <= 0 keeps every row.
func (s *Service) StreakLeaderboard(ctx context.Context, limit int) (StreakReport, error) {
	rows, err := s.src.Rows(ctx, nil, nil)
	if err != nil {
		return StreakReport{}, fmt.Errorf("load attendance: %w", err)
	}
	report := Streaks(rows, s.occurrence)
	report.Rows = top(report.Rows, limit)
	return report, nil
}

// AbsenceWindow spans the last weeks whole weeks, ending on the last day of the current week.
func (s *Service) AbsenceWindow(weeks int) (start, end time.Time) {
	today := s.clock.Today()
	end = eventdate.WeekEnd(today, s.anchor)
	start = eventdate.AddDays(eventdate.WeekStart(today, s.anchor), -weekDays*(weeks-1))
	return start, end
}

// AbsenceLeaderboard reports who missed the most sessions in the last weeks weeks.
func (s *Service) AbsenceLeaderboard(ctx context.Context, weeks, limit int) (AbsenceReport, error) {
	start, end := s.AbsenceWindow(weeks)
	rows, err := s.src.Rows(ctx, &start, &end)
	if err != nil {
		return AbsenceReport{}, fmt.Errorf("load attendance: %w", err)
	}
	roster, err := s.src.Roster(ctx)
	if err != nil {
		return AbsenceReport{}, fmt.Errorf("load roster: %w", err)
	}
	report := Absences(rows, roster, start, end)
	report.Rows = top(report.Absentees(), limit)
	return report, nil
}

// Weekly groups the trailing weeks weeks, up to and including today.
func (s *Service) Weekly(ctx context.Context, weeks int) ([]WeeklyGroup, error) {
	today := s.clock.Today()
	start := eventdate.AddDays(eventdate.WeekStart(today, s.anchor), -weekDays*(weeks-1))
	rows, err := s.src.Rows(ctx, &start, &today)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	return GroupWeekly(rows, s.anchor), nil
}

// LuckyDraw returns the attendees of the latest week before the current one
// that has any attendance. ok is false when there is no such week.
func (s *Service) LuckyDraw(ctx context.Context) (pool DrawPool, ok bool, err error) {
	current := eventdate.WeekStart(s.clock.Today(), s.anchor)
	latest, err := s.src.LatestEventDateBefore(ctx, current)
	if err != nil {
		return DrawPool{}, false, fmt.Errorf("find latest week: %w", err)
	}
	if latest == nil {
		return DrawPool{}, false, nil
	}
	start := eventdate.WeekStart(*latest, s.anchor)
	end := eventdate.AddDays(start, weekDays-1)
	rows, err := s.src.Rows(ctx, &start, &end)
	if err != nil {
		return DrawPool{}, false, fmt.Errorf("load attendance: %w", err)
	}
	return LuckyDraw(rows, start), true, nil
}

// Leaderboard bundles every leaderboard for export, without truncation.
type Leaderboard struct {
	Totals   []attendance.Total
	Streaks  []StreakRow
	Absences []AbsenceRow
}

// FullLeaderboard computes totals for rangeName, all-time streaks and
// absences over the last weeks weeks.
func (s *Service) FullLeaderboard(ctx context.Context, rangeName string, weeks int) (Leaderboard, error) {
	totals, err := s.TotalLeaderboard(ctx, rangeName, 0)
	if err != nil {
		return Leaderboard{}, err
	}
	streaks, err := s.StreakLeaderboard(ctx, 0)
	if err != nil {
		return Leaderboard{}, err
	}
	absences, err := s.AbsenceLeaderboard(ctx, weeks, 0)
	if err != nil {
		return Leaderboard{}, err
	}
	return Leaderboard{Totals: totals, Streaks: streaks.Rows, Absences: absences.Rows}, nil
}

// GeneratedAt is the report timestamp in the reference timezone.
func (s *Service) GeneratedAt() time.Time { return s.clock.Now() }

func top[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
