package journal

import (
	"fmt"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
)

// DaysRemainingInYear counts the days left in now's year, today included.
func DaysRemainingInYear(now time.Time) int {
	startOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	endOfYear := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
	totalDays := calendar.DaysBetween(startOfYear, endOfYear) + 1
	return totalDays - calendar.DaysBetween(startOfYear, now)
}

func FormatDaysRemaining(n int) string {
	if n == 1 {
		return "1 day left"
	}
	return fmt.Sprintf("%d days left", n)
}

// GenerateYearDates lists every date of year as YYYY-MM-DD.
func GenerateYearDates(year int) []string {
	dates := make([]string, 0, 366)
	for d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		dates = append(dates, calendar.ToDateString(d))
	}
	return dates
}

// FormatJournalDate renders "2026-01-28" as "Wednesday, January 28, 2026".
func FormatJournalDate(date string) (string, error) {
	t, err := calendar.ParseDate(date, time.UTC)
	if err != nil {
		return "", err
	}
	return t.Format("Monday, January 2, 2006"), nil
}

func IsToday(date string, now time.Time) bool {
	return date == calendar.ToDateString(now)
}

// IsPastOrToday reports whether date is on or before now's calendar day.
// Unparseable dates are treated as not past.
func IsPastOrToday(date string, now time.Time) bool {
	t, err := calendar.ParseDate(date, now.Location())
	if err != nil {
		return false
	}
	return !t.After(calendar.StartOfDay(now))
}
