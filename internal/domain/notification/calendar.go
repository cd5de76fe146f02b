package notification

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
)

// IsBirthdayOnDate reports whether birthday ("YYYY-MM-DD" or "MM-DD") falls
// on date's month and day. A Feb 29 birthday falls on Feb 28 in non-leap
// years. Empty or unparseable birthdays never match.
func IsBirthdayOnDate(birthday string, date time.Time) bool {
	if birthday == "" {
		return false
	}
	month, day, ok := parseMonthDay(birthday)
	if !ok {
		return false
	}

	if month == time.February && day == 29 {
		target := 28
		if calendar.IsLeapYear(date.Year()) {
			target = 29
		}
		return date.Month() == time.February && date.Day() == target
	}
	return date.Month() == month && date.Day() == day
}

func parseMonthDay(birthday string) (time.Month, int, bool) {
	parts := strings.Split(birthday, "-")
	var mm, dd string
	if len(birthday) <= 5 {
		if len(parts) != 2 {
			return 0, 0, false
		}
		mm, dd = parts[0], parts[1]
	} else {
		if len(parts) != 3 {
			return 0, 0, false
		}
		mm, dd = parts[1], parts[2]
	}

	m, err := strconv.Atoi(mm)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	d, err := strconv.Atoi(dd)
	if err != nil || d < 1 || d > 31 {
		return 0, 0, false
	}
	return time.Month(m), d, true
}

// Calendar answers date questions relative to an injected clock and draws
// delivery minutes from an injected random source.
type Calendar struct {
	clock calendar.Clock
	intN  func(n int) int
}

// NewCalendar builds a Calendar. A nil intN uses math/rand.
func NewCalendar(clock calendar.Clock, intN func(n int) int) *Calendar {
	if clock == nil {
		clock = calendar.SystemClock(time.Local)
	}
	if intN == nil {
		intN = rand.Intn
	}
	return &Calendar{clock: clock, intN: intN}
}

func (c *Calendar) Now() time.Time {
	return c.clock.Now()
}

func (c *Calendar) IsBirthdayToday(birthday string) bool {
	return IsBirthdayOnDate(birthday, c.clock.Now())
}

// DaysSinceLastContact counts whole calendar days from lastContactAt to
// today. Same-day contact is 0; a future date is negative.
func (c *Calendar) DaysSinceLastContact(lastContactAt string) (int, error) {
	now := c.clock.Now()
	last, err := calendar.ParseDate(lastContactAt, now.Location())
	if err != nil {
		return 0, err
	}
	return calendar.DaysBetween(last, now), nil
}

// RandomTimeInWindow returns tomorrow at startHour plus a uniformly random
// minute. Only the minute is randomised, so the result always lands in
// startHour; endHour is accepted for call-site symmetry and not used.
func (c *Calendar) RandomTimeInWindow(startHour, endHour int) time.Time {
	_ = endHour
	now := c.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day()+1, startHour, c.intN(60), 0, 0, now.Location())
}
