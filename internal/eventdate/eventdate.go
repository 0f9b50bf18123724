// Package eventdate turns calendar dates into the session-date keys used for
// grouping attendance. A session date is a calendar concept, so it is stored
// as UTC midnight of that date and always read back through UTC fields.
package eventdate

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the wire and key format of an event date.
const Layout = "2006-01-02"

const day = 24 * time.Hour

// ErrInvalidDate is returned for strings that are not YYYY-MM-DD calendar dates.
var ErrInvalidDate = errors.New("invalid event date")

// Clock reports "today" as observed in the community's reference timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock loads tz and returns a wall clock for it.
func NewClock(tz string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt returns a clock with a custom time source.
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now}
}

// Now is the current instant in the reference timezone.
func (c *Clock) Now() time.Time { return c.now().In(c.loc) }

// Today is the reference-timezone calendar date, as UTC midnight.
func (c *Clock) Today() time.Time { return FromCalendar(c.Now()) }

// Normalizer canonicalizes optional client-supplied dates.
type Normalizer struct {
	clock  *Clock
	strict bool
}

// NewNormalizer returns a normalizer. With strict unset, malformed input
// silently becomes today instead of failing.
func NewNormalizer(clock *Clock, strict bool) *Normalizer {
	return &Normalizer{clock: clock, strict: strict}
}

// Clock returns the normalizer's reference clock.
func (n *Normalizer) Clock() *Clock { return n.clock }

// ToEventDate returns the canonical session date for s, or today when s is empty.
func (n *Normalizer) ToEventDate(s string) (time.Time, error) {
	if s == "" {
		return n.clock.Today(), nil
	}
	d, err := Parse(s)
	if err != nil {
		if n.strict {
			return time.Time{}, err
		}
		return n.clock.Today(), nil
	}
	return d, nil
}

// Parse reads a YYYY-MM-DD string as UTC midnight of that date.
func Parse(s string) (time.Time, error) {
	d, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Key formats an event date using UTC fields.
func Key(t time.Time) string {
	return t.UTC().Format(Layout)
}

// FromCalendar keeps the calendar date of t (in t's own location) and drops the rest.
func FromCalendar(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts an event date by whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, 0, n)
}

// DaysBetween returns the whole-day distance from a to b.
func DaysBetween(a, b time.Time) int {
	return int(FromCalendar(b.UTC()).Sub(FromCalendar(a.UTC())) / day)
}

// WeekStart returns the most recent anchor weekday on or before t.
func WeekStart(t time.Time, anchor time.Weekday) time.Time {
	d := FromCalendar(t.UTC())
	back := (int(d.Weekday()) - int(anchor) + 7) % 7
	return AddDays(d, -back)
}

// WeekEnd is the last day of the week starting at WeekStart(t, anchor).
func WeekEnd(t time.Time, anchor time.Weekday) time.Time {
	return AddDays(WeekStart(t, anchor), 6)
}

// IsWeekday reports whether the event date falls on wd.
func IsWeekday(t time.Time, wd time.Weekday) bool {
	return t.UTC().Weekday() == wd
}
