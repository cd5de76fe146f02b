// Package calendar holds the date-only arithmetic shared by friends, journal
// and notification code. Dates travel as "YYYY-MM-DD" strings.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for date-only values.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports time.Now in the given location.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}

// FixedClock always reports t. Used by tests and one-off runs.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ToDateString formats t as YYYY-MM-DD in t's location.
func ToDateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string, or a full RFC 3339 timestamp, into
// midnight of that calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(t.In(loc)), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// DaysBetween returns the number of calendar days from a to b, ignoring the
// time of day. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// Tomorrow returns midnight of the day after t.
func Tomorrow(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
