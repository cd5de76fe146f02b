// Package delivery turns scheduled reminders into an outbox that a
// dispatcher drains through a Sender at trigger time.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotRecipient is returned when a notification is opened by someone other
// than its recipient.
var ErrNotRecipient = errors.New("notification belongs to another recipient")

// recipientSettings is what a recipient's Delivery registered.
type recipientSettings struct {
	policy    notification.DisplayPolicy
	hasPolicy bool
	channels  map[string]notification.ChannelConfig
	listeners map[int]func(notification.Response)
	nextID    int
}

// Manager owns the outbox and the per-recipient settings and listeners.
type Manager struct {
	repo   notification.ScheduledRepository
	clock  calendar.Clock
	newID  func() string
	logger *logrus.Entry

	mu         sync.Mutex
	recipients map[int64]*recipientSettings
}

func NewManager(repo notification.ScheduledRepository, clock calendar.Clock, logger *logrus.Entry) *Manager {
	return &Manager{
		repo:       repo,
		clock:      clock,
		newID:      uuid.NewString,
		logger:     logger,
		recipients: make(map[int64]*recipientSettings),
	}
}

func (m *Manager) settingsLocked(recipient int64) *recipientSettings {
	s, ok := m.recipients[recipient]
	if !ok {
		s = &recipientSettings{
			channels:  make(map[string]notification.ChannelConfig),
			listeners: make(map[int]func(notification.Response)),
		}
		m.recipients[recipient] = s
	}
	return s
}

// ForRecipient returns the Delivery of one Telegram chat.
func (m *Manager) ForRecipient(recipient int64) notification.Delivery {
	return &Outbox{manager: m, recipient: recipient}
}

// Policy returns the display policy registered for recipient. ok is false
// when none was registered yet.
func (m *Manager) Policy(recipient int64) (policy notification.DisplayPolicy, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.recipients[recipient]
	if !exists || !s.hasPolicy {
		return notification.DisplayPolicy{}, false
	}
	return s.policy, true
}

// Channel returns a channel registered by recipient.
func (m *Manager) Channel(recipient int64, channelID string) (notification.ChannelConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.recipients[recipient]
	if !exists {
		return notification.ChannelConfig{}, false
	}
	cfg, ok := s.channels[channelID]
	return cfg, ok
}

// Open emits a Response for notification id to the listeners of recipient.
func (m *Manager) Open(ctx context.Context, recipient int64, id string) (*notification.Scheduled, error) {
	n, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Recipient != recipient {
		return nil, ErrNotRecipient
	}

	resp := notification.Response{
		NotificationID: n.ID,
		Recipient:      recipient,
		Kind:           n.Kind,
		Payload:        n.Payload,
		OpenedAt:       m.clock.Now(),
	}

	m.mu.Lock()
	var listeners []func(notification.Response)
	if s, ok := m.recipients[recipient]; ok {
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(resp)
	}
	return n, nil
}

// Outbox is the notification.Delivery of a single recipient.
type Outbox struct {
	manager   *Manager
	recipient int64
}

var (
	_ notification.Delivery           = (*Outbox)(nil)
	_ notification.ChannelProvisioner = (*Outbox)(nil)
)

func (o *Outbox) SetNotificationHandler(policy notification.DisplayPolicy) {
	m := o.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked(o.recipient)
	s.policy = policy
	s.hasPolicy = true
}

func (o *Outbox) SetNotificationChannel(_ context.Context, channelID string, cfg notification.ChannelConfig) error {
	m := o.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settingsLocked(o.recipient).channels[channelID] = cfg
	return nil
}

func (o *Outbox) Schedule(ctx context.Context, req notification.Request) (string, error) {
	m := o.manager
	n := &notification.Scheduled{
		ID:        m.newID(),
		Recipient: o.recipient,
		Kind:      req.Kind,
		Title:     req.Title,
		Body:      req.Body,
		Payload:   req.Payload,
		TriggerAt: req.TriggerAt,
		Status:    notification.ScheduledPending,
	}
	if err := m.repo.Create(ctx, n); err != nil {
		return "", fmt.Errorf("failed to queue notification: %w", err)
	}
	return n.ID, nil
}

func (o *Outbox) CancelAllScheduled(ctx context.Context) error {
	cancelled, err := o.manager.repo.CancelPending(ctx, o.recipient)
	if err != nil {
		return fmt.Errorf("failed to cancel pending notifications: %w", err)
	}
	if cancelled > 0 {
		o.manager.logger.WithFields(logrus.Fields{
			"recipient": o.recipient,
			"cancelled": cancelled,
		}).Debug("Cancelled pending notifications")
	}
	return nil
}

func (o *Outbox) AddResponseListener(fn func(notification.Response)) notification.Subscription {
	m := o.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settingsLocked(o.recipient)
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return &subscription{manager: m, recipient: o.recipient, id: id}
}

type subscription struct {
	manager   *Manager
	recipient int64
	id        int
	once      sync.Once
}

func (s *subscription) Remove() {
	s.once.Do(func() {
		s.manager.mu.Lock()
		defer s.manager.mu.Unlock()
		if rs, ok := s.manager.recipients[s.recipient]; ok {
			delete(rs.listeners, s.id)
		}
	})
}
