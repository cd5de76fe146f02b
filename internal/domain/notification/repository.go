// internal/domain/notification/repository.go
package notification

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrScheduledNotFound = errors.New("scheduled notification not found")

// ScheduledStatus tracks a queued notification through delivery.
type ScheduledStatus string

const (
	ScheduledPending   ScheduledStatus = "PENDING"
	ScheduledSending   ScheduledStatus = "SENDING"
	ScheduledDelivered ScheduledStatus = "DELIVERED"
	ScheduledFailed    ScheduledStatus = "FAILED"
	ScheduledCancelled ScheduledStatus = "CANCELLED"
)

// Scheduled is a notification waiting in the outbox for its trigger time.
// Corresponds to the 'scheduled_notifications' table.
type Scheduled struct {
	ID          string
	Recipient   int64 // accounts.telegram_id
	Kind        Kind
	Title       string
	Body        string
	Payload     Payload
	TriggerAt   time.Time
	Status      ScheduledStatus
	Attempts    int
	LastError   sql.NullString
	DeliveredAt sql.NullTime
	CreatedAt   time.Time
}

// ScheduledRepository stores the notification outbox.
type ScheduledRepository interface {
	Create(ctx context.Context, n *Scheduled) error
	GetByID(ctx context.Context, id string) (*Scheduled, error)
	// CancelPending marks every pending notification of recipient cancelled.
	CancelPending(ctx context.Context, recipient int64) (int64, error)
	// ListDue returns pending notifications with trigger_at <= before, oldest first.
	ListDue(ctx context.Context, before time.Time, limit int) ([]*Scheduled, error)
	// Claim moves a pending notification to sending. It reports false when
	// the notification is no longer pending, e.g. it was cancelled.
	Claim(ctx context.Context, id string) (bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// StateRepository persists one account's reminder dedup state.
type StateRepository interface {
	Load(ctx context.Context) (*State, error)
	Update(ctx context.Context, fn func(*State) error) error
	Reset(ctx context.Context) error
}
