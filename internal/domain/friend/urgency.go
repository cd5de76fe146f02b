package friend

import (
	"fmt"
	"sort"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
)

// CheckInStatus classifies how soon a friend is due for a check-in.
type CheckInStatus string

const (
	StatusOnTrack  CheckInStatus = "on-track"
	StatusDueSoon  CheckInStatus = "due-soon"
	StatusDueToday CheckInStatus = "due-today"
	StatusOverdue  CheckInStatus = "overdue"
)

const dueSoonThresholdDays = 3

// DaysRemaining returns frequency minus days since last contact. Negative
// values mean overdue. ok is false when the friend has no cadence, no last
// contact, or an unparseable last contact date.
func DaysRemaining(f *Friend, now time.Time) (days int, ok bool) {
	if !f.HasFrequency() || !f.HasLastContact() {
		return 0, false
	}
	last, err := calendar.ParseDate(*f.LastContactAt, now.Location())
	if err != nil {
		return 0, false
	}
	return *f.FrequencyDays - calendar.DaysBetween(last, now), true
}

func StatusFor(daysRemaining int) CheckInStatus {
	switch {
	case daysRemaining < 0:
		return StatusOverdue
	case daysRemaining == 0:
		return StatusDueToday
	case daysRemaining <= dueSoonThresholdDays:
		return StatusDueSoon
	default:
		return StatusOnTrack
	}
}

// StatusLabel renders the short status line shown next to a friend's name.
func StatusLabel(daysRemaining int, status CheckInStatus) string {
	switch status {
	case StatusOverdue:
		return fmt.Sprintf("%d days overdue", -daysRemaining)
	case StatusDueToday:
		return "Check in today"
	default:
		return fmt.Sprintf("%d days", daysRemaining)
	}
}

// Urgency is a friend annotated with check-in status as of a given day.
type Urgency struct {
	Friend        *Friend
	DaysRemaining int
	Tracked       bool // false when no cadence or last contact is known
	Status        CheckInStatus
	Label         string
}

// Assess computes the urgency of one friend.
func Assess(f *Friend, now time.Time) Urgency {
	days, ok := DaysRemaining(f, now)
	if !ok {
		return Urgency{Friend: f, Label: "No check-in schedule"}
	}
	status := StatusFor(days)
	return Urgency{
		Friend:        f,
		DaysRemaining: days,
		Tracked:       true,
		Status:        status,
		Label:         StatusLabel(days, status),
	}
}

// SortByUrgency returns friends most urgent first. Friends without a
// schedule keep their relative order at the end.
func SortByUrgency(friends []*Friend, now time.Time) []Urgency {
	out := make([]Urgency, 0, len(friends))
	for _, f := range friends {
		out = append(out, Assess(f, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tracked != out[j].Tracked {
			return out[i].Tracked
		}
		return out[i].DaysRemaining < out[j].DaysRemaining
	})
	return out
}

// FilterByCategory keeps friends in category c. A nil c keeps everyone.
func FilterByCategory(friends []*Friend, c *Category) []*Friend {
	if c == nil {
		return friends
	}
	out := make([]*Friend, 0, len(friends))
	for _, f := range friends {
		if f.Category == *c {
			out = append(out, f)
		}
	}
	return out
}
