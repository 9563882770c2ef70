// Package timeutil provides calendar-day utilities and an injectable clock.
// Streak semantics are calendar-day granular and must be evaluated in the
// user's timezone, so every helper is location-aware.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Clock is an injectable source of the current time. Production code uses
// SystemClock; tests substitute a fixed clock to make calendar-day
// comparisons deterministic.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock implements Clock using the wall clock.
type SystemClock struct {
	// Location is the timezone for calendar-day semantics (default: UTC).
	Location *time.Location
}

// NewSystemClock creates a SystemClock in the given location.
func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// FixedClock implements Clock with a constant time. Intended for tests.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.Time
}

// StartOfDay returns the start of the day (00:00:00) preserving t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the end of the day (23:59:59.999999999) preserving t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// IsSameDay checks if two times fall on the same calendar day. Both are
// evaluated in t1's location.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := t1, t2.In(t1.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// IsConsecutiveDay checks if t2 is the calendar day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	next := StartOfDay(t1).AddDate(0, 0, 1)
	return IsSameDay(next, t2)
}

// DaysBetween calculates the number of whole calendar days from t1 to t2.
// Negative when t2 is before t1. Uses AddDate instead of Sub because DST
// transitions make day lengths uneven.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2.In(t1.Location()))

	if b.Before(a) {
		return -DaysBetween(t2, t1)
	}

	days := 0
	for !a.AddDate(0, 0, days).Equal(b) && a.AddDate(0, 0, days).Before(b) {
		days++
	}
	return days
}

// DaysSince calculates whole calendar days from t to now (per the clock).
func DaysSince(clock Clock, t time.Time) int {
	return DaysBetween(t, clock.Now())
}

// FormatDate is the canonical date format (YYYY-MM-DD) used for
// calendar-day persistence keys.
const FormatDate = "2006-01-02"

// FormatDateStr formats a time as a YYYY-MM-DD string.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// ParseDate parses a YYYY-MM-DD string in the given location.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(FormatDate, value, loc)
}

// IsSafeNotificationTime checks if it's appropriate to surface reminders
// (9:00-22:00 local time). Quiet-hours policy beyond this window belongs to
// the notification scheduler.
func IsSafeNotificationTime(t time.Time) bool {
	hour := t.Hour()
	return hour >= 9 && hour < 22
}

// NextSafeNotificationTime returns the next time when reminders are appropriate.
func NextSafeNotificationTime(t time.Time) time.Time {
	hour := t.Hour()

	if hour < 9 {
		return time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, t.Location())
	} else if hour >= 22 {
		tomorrow := t.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, t.Location())
	}

	return t
}
