package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// ResponseHandler is called when an account opens one of its reminders.
type ResponseHandler func(a *account.Account, resp notification.Response)

// Planner runs ScheduleAllNotifications for accounts and keeps their dedup
// state current as reminders are delivered.
type Planner struct {
	accounts   account.Repository
	stores     AccountStores
	deliveries DeliveryProvider
	calendar   *notification.Calendar
	logger     *logrus.Entry

	locks sync.Map // account id -> *sync.Mutex

	mu         sync.Mutex
	onResponse ResponseHandler
	watched    map[int64]notification.Subscription
}

func NewPlanner(
	ar account.Repository,
	stores AccountStores,
	deliveries DeliveryProvider,
	cal *notification.Calendar,
	logger *logrus.Entry,
) *Planner {
	return &Planner{
		accounts:   ar,
		stores:     stores,
		deliveries: deliveries,
		calendar:   cal,
		logger:     logger,
		watched:    make(map[int64]notification.Subscription),
	}
}

// OnResponse sets the handler for opened reminders. Accounts planned
// afterwards are watched automatically.
func (p *Planner) OnResponse(fn ResponseHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResponse = fn
}

func (p *Planner) service(a *account.Account) *NotificationService {
	return NewNotificationService(
		p.deliveries.ForRecipient(a.TelegramID),
		p.calendar,
		p.logger.WithField("account_id", a.ID),
	)
}

func (p *Planner) lock(accountID int64) *sync.Mutex {
	m, _ := p.locks.LoadOrStore(accountID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// PlanAccount replaces the pending reminders of a with tomorrow's. Passes for
// the same account never overlap.
func (p *Planner) PlanAccount(ctx context.Context, a *account.Account) (*PlanResult, error) {
	m := p.lock(a.ID)
	m.Lock()
	defer m.Unlock()

	svc := p.service(a)
	if err := svc.Initialize(ctx); err != nil {
		return nil, err
	}
	p.Watch(a, svc)

	friends, err := p.stores.Friends(a.ID).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load friends: %w", err)
	}
	state, err := p.stores.NotificationState(a.ID).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification state: %w", err)
	}

	// Gates are evaluated for the day the reminders will be delivered.
	target := calendar.Tomorrow(p.calendar.Now())
	result, err := svc.ScheduleAllNotifications(ctx, friends,
		func() bool { return state.ShouldSendBirthdayNotification(target) },
		func(friendID string, frequencyDays int) bool {
			return state.ShouldSendCatchUpNotification(friendID, frequencyDays, target)
		},
	)
	if result != nil {
		p.logger.WithFields(logrus.Fields{
			"account_id": a.ID,
			"birthday":   result.BirthdayScheduled,
			"catch_ups":  len(result.CatchUpFriendIDs),
		}).Info("Planning pass finished")
	}
	return result, err
}

// PlanAll plans every active account. One account's failure does not stop
// the others.
func (p *Planner) PlanAll(ctx context.Context) error {
	accounts, err := p.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active accounts: %w", err)
	}
	if len(accounts) == 0 {
		p.logger.Info("No active accounts found. Nothing to plan.")
		return nil
	}

	var errs []error
	for _, a := range accounts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := p.PlanAccount(ctx, a); err != nil {
			p.logger.WithError(err).WithField("account_id", a.ID).Error("Planning pass failed")
			errs = append(errs, fmt.Errorf("account %d: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}

// WatchAll prepares the delivery of every active account and attaches the
// response handler without touching queued reminders. It is run on startup,
// when reminders planned before a restart may still be due today.
func (p *Planner) WatchAll(ctx context.Context) error {
	accounts, err := p.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active accounts: %w", err)
	}

	var errs []error
	for _, a := range accounts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		m := p.lock(a.ID)
		m.Lock()
		svc := p.service(a)
		err := svc.Initialize(ctx)
		if err == nil {
			p.Watch(a, svc)
		}
		m.Unlock()
		if err != nil {
			p.logger.WithError(err).WithField("account_id", a.ID).Error("Failed to initialize notifications")
			errs = append(errs, fmt.Errorf("account %d: %w", a.ID, err))
		}
	}
	p.logger.WithField("accounts", len(accounts)).Info("Response listeners attached")
	return errors.Join(errs...)
}

// Watch registers the response handler on a's delivery once.
func (p *Planner) Watch(a *account.Account, svc *NotificationService) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onResponse == nil {
		return
	}
	if _, ok := p.watched[a.ID]; ok {
		return
	}
	handler := p.onResponse
	acc := *a
	p.watched[a.ID] = svc.AddNotificationResponseListener(func(resp notification.Response) {
		handler(&acc, resp)
	})
}

// Unwatch removes a's response listener and cancels its pending reminders.
func (p *Planner) Unwatch(ctx context.Context, a *account.Account) error {
	p.mu.Lock()
	if sub, ok := p.watched[a.ID]; ok {
		sub.Remove()
		delete(p.watched, a.ID)
	}
	p.mu.Unlock()

	return p.service(a).CancelAllScheduled(ctx)
}

// RecordDelivered stores the delivery date of n in its account's dedup state.
func (p *Planner) RecordDelivered(ctx context.Context, n *notification.Scheduled) error {
	a, err := p.accounts.GetByTelegramID(ctx, n.Recipient)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient %d: %w", n.Recipient, err)
	}

	at := p.calendar.Now()
	if n.DeliveredAt.Valid {
		at = n.DeliveredAt.Time.In(at.Location())
	}
	date := calendar.ToDateString(at)

	return p.stores.NotificationState(a.ID).Update(ctx, func(s *notification.State) error {
		switch n.Kind {
		case notification.KindBirthday:
			s.SetLastBirthdayNotificationDate(&date)
		case notification.KindCatchUp:
			if n.Payload.FriendID != "" {
				s.SetLastCatchUpNotificationDate(n.Payload.FriendID, date)
			}
		}
		return nil
	})
}
