package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Reminder window: hour component of every trigger time.
const (
	ReminderStartHour = 9
	ReminderEndHour   = 10
)

// DefaultChannelID is the channel every reminder is posted to.
const DefaultChannelID = "default"

var DefaultDisplayPolicy = notification.DisplayPolicy{
	ShowBanner: true,
	ShowList:   true,
	PlaySound:  true,
	SetBadge:   false,
}

var DefaultChannel = notification.ChannelConfig{
	Name:             "Default",
	Importance:       notification.ImportanceMax,
	VibrationPattern: []int64{0, 250, 250, 250},
	LightColor:       "#FF231F7C",
}

// ShouldSendBirthdayFunc and ShouldSendCatchUpFunc are the dedup gates
// consulted by ScheduleAllNotifications.
type (
	ShouldSendBirthdayFunc func() bool
	ShouldSendCatchUpFunc  func(friendID string, frequencyDays int) bool
)

// PlanResult lists what a ScheduleAllNotifications pass actually queued.
type PlanResult struct {
	BirthdayScheduled bool
	BirthdayFriendIDs []string
	CatchUpFriendIDs  []string
}

// NotificationService builds reminders for one recipient and hands them to
// the recipient's Delivery.
type NotificationService struct {
	delivery notification.Delivery
	calendar *notification.Calendar
	logger   *logrus.Entry
}

func NewNotificationService(d notification.Delivery, cal *notification.Calendar, logger *logrus.Entry) *NotificationService {
	return &NotificationService{
		delivery: d,
		calendar: cal,
		logger:   logger,
	}
}

// Initialize registers the display policy and, where the delivery supports
// channels, the default channel. Calling it again re-registers both.
func (s *NotificationService) Initialize(ctx context.Context) error {
	s.delivery.SetNotificationHandler(DefaultDisplayPolicy)

	if p, ok := s.delivery.(notification.ChannelProvisioner); ok {
		if err := p.SetNotificationChannel(ctx, DefaultChannelID, DefaultChannel); err != nil {
			return fmt.Errorf("failed to set notification channel: %w", err)
		}
	}
	return nil
}

func (s *NotificationService) CancelAllScheduled(ctx context.Context) error {
	return s.delivery.CancelAllScheduled(ctx)
}

// ScheduleBirthdayNotification queues one grouped notification for friends.
func (s *NotificationService) ScheduleBirthdayNotification(ctx context.Context, friends []*friend.Friend, triggerAt time.Time) (string, error) {
	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}

	return s.delivery.Schedule(ctx, notification.Request{
		Kind:      notification.KindBirthday,
		Title:     notification.FormatBirthdayTitle(friends),
		Body:      notification.FormatBirthdayBody(),
		TriggerAt: triggerAt,
		Payload: notification.Payload{
			Type:      notification.KindBirthday,
			FriendIDs: ids,
		},
	})
}

// ScheduleCatchUpNotification queues a reminder to check in with f.
func (s *NotificationService) ScheduleCatchUpNotification(ctx context.Context, f *friend.Friend, triggerAt time.Time) (string, error) {
	var days int
	if f.LastContactAt != nil {
		var err error
		days, err = s.calendar.DaysSinceLastContact(*f.LastContactAt)
		if err != nil {
			return "", fmt.Errorf("friend %s: %w", f.ID, err)
		}
	}

	return s.delivery.Schedule(ctx, notification.Request{
		Kind:      notification.KindCatchUp,
		Title:     notification.FormatCatchUpTitle(f),
		Body:      notification.FormatCatchUpBody(days),
		TriggerAt: triggerAt,
		Payload: notification.Payload{
			Type:     notification.KindCatchUp,
			FriendID: f.ID,
		},
	})
}

// IsFriendDueForCatchUp reports whether at least FrequencyDays have passed
// since the last contact. Friends without a frequency or a last contact are
// never due.
func (s *NotificationService) IsFriendDueForCatchUp(f *friend.Friend) bool {
	if !f.HasFrequency() || !f.HasLastContact() {
		return false
	}
	days, err := s.calendar.DaysSinceLastContact(*f.LastContactAt)
	if err != nil {
		s.logger.WithError(err).WithField("friend_id", f.ID).Warn("Unreadable last contact date")
		return false
	}
	return days >= f.Frequency()
}

// ScheduleAllNotifications replaces every pending reminder with tomorrow's
// birthday and catch-up reminders. A friend with a birthday tomorrow gets no
// catch-up reminder in the same pass. A failed catch-up schedule does not
// stop the remaining ones; the failures are returned together.
func (s *NotificationService) ScheduleAllNotifications(
	ctx context.Context,
	friends []*friend.Friend,
	shouldSendBirthday ShouldSendBirthdayFunc,
	shouldSendCatchUp ShouldSendCatchUpFunc,
) (*PlanResult, error) {
	result := &PlanResult{}

	if err := s.delivery.CancelAllScheduled(ctx); err != nil {
		return result, fmt.Errorf("failed to cancel scheduled notifications: %w", err)
	}
	if len(friends) == 0 {
		return result, nil
	}

	tomorrow := s.calendar.Now().AddDate(0, 0, 1)

	var birthdayFriends []*friend.Friend
	birthdayIDs := make(map[string]struct{})
	for _, f := range friends {
		if f.HasBirthday() && notification.IsBirthdayOnDate(*f.Birthday, tomorrow) {
			birthdayFriends = append(birthdayFriends, f)
			birthdayIDs[f.ID] = struct{}{}
		}
	}

	var catchUpFriends []*friend.Friend
	for _, f := range friends {
		if _, ok := birthdayIDs[f.ID]; ok {
			continue
		}
		if !f.HasFrequency() || !s.IsFriendDueForCatchUp(f) {
			continue
		}
		if shouldSendCatchUp(f.ID, f.Frequency()) {
			catchUpFriends = append(catchUpFriends, f)
		}
	}

	if len(birthdayFriends) > 0 && shouldSendBirthday() {
		triggerAt := s.calendar.RandomTimeInWindow(ReminderStartHour, ReminderEndHour)
		id, err := s.ScheduleBirthdayNotification(ctx, birthdayFriends, triggerAt)
		if err != nil {
			return result, fmt.Errorf("failed to schedule birthday notification: %w", err)
		}
		result.BirthdayScheduled = true
		for _, f := range birthdayFriends {
			result.BirthdayFriendIDs = append(result.BirthdayFriendIDs, f.ID)
		}
		s.logger.WithFields(logrus.Fields{
			"notification_id": id,
			"friends":         len(birthdayFriends),
			"trigger_at":      triggerAt,
		}).Info("Birthday notification scheduled")
	}

	var errs []error
	for _, f := range catchUpFriends {
		triggerAt := s.calendar.RandomTimeInWindow(ReminderStartHour, ReminderEndHour)
		id, err := s.ScheduleCatchUpNotification(ctx, f, triggerAt)
		if err != nil {
			s.logger.WithError(err).WithField("friend_id", f.ID).Error("Failed to schedule catch-up notification")
			errs = append(errs, fmt.Errorf("catch-up for %s: %w", f.ID, err))
			continue
		}
		result.CatchUpFriendIDs = append(result.CatchUpFriendIDs, f.ID)
		s.logger.WithFields(logrus.Fields{
			"notification_id": id,
			"friend_id":       f.ID,
			"trigger_at":      triggerAt,
		}).Debug("Catch-up notification scheduled")
	}

	return result, errors.Join(errs...)
}

// AddNotificationResponseListener forwards to the delivery.
func (s *NotificationService) AddNotificationResponseListener(fn func(notification.Response)) notification.Subscription {
	return s.delivery.AddResponseListener(fn)
}
