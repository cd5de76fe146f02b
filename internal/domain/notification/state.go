package notification

import (
	"time"

	"friend_reminder_bot/internal/domain/calendar"
)

// State remembers when reminders were last sent so a planning pass does not
// repeat them. Dates are YYYY-MM-DD.
type State struct {
	LastBirthdayNotificationDate *string           `json:"lastBirthdayNotificationDate"`
	LastCatchUpNotificationDates map[string]string `json:"lastCatchUpNotificationDates"`
	HasRequestedPermission       bool              `json:"hasRequestedPermission"`
	PendingPermissionRequest     bool              `json:"pendingPermissionRequest"`
}

func NewState() *State {
	return &State{LastCatchUpNotificationDates: map[string]string{}}
}

// ShouldSendBirthdayNotification is false only when a birthday reminder was
// already recorded for today.
func (s *State) ShouldSendBirthdayNotification(today time.Time) bool {
	if s.LastBirthdayNotificationDate == nil || *s.LastBirthdayNotificationDate == "" {
		return true
	}
	return *s.LastBirthdayNotificationDate != calendar.ToDateString(today)
}

// ShouldSendCatchUpNotification is true when the friend was never reminded,
// or at least frequencyDays have passed since the last reminder. An
// unreadable stored date counts as never reminded.
func (s *State) ShouldSendCatchUpNotification(friendID string, frequencyDays int, today time.Time) bool {
	last, ok := s.LastCatchUpNotificationDates[friendID]
	if !ok || last == "" {
		return true
	}
	lastDate, err := calendar.ParseDate(last, today.Location())
	if err != nil {
		return true
	}
	return calendar.DaysBetween(lastDate, today) >= frequencyDays
}

func (s *State) SetLastBirthdayNotificationDate(date *string) {
	s.LastBirthdayNotificationDate = date
}

func (s *State) SetLastCatchUpNotificationDate(friendID, date string) {
	if s.LastCatchUpNotificationDates == nil {
		s.LastCatchUpNotificationDates = map[string]string{}
	}
	s.LastCatchUpNotificationDates[friendID] = date
}

func (s *State) ClearCatchUpNotificationDate(friendID string) {
	delete(s.LastCatchUpNotificationDates, friendID)
}

func (s *State) SetHasRequestedPermission(requested bool) {
	s.HasRequestedPermission = requested
}

func (s *State) SetPendingPermissionRequest(pending bool) {
	s.PendingPermissionRequest = pending
}
