package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"friend_reminder_bot/internal/domain/notification"
)

// MemoryRepository is an in-process outbox for the "memory" store backend
// and for tests.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*notification.Scheduled
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*notification.Scheduled)}
}

func (r *MemoryRepository) Create(_ context.Context, n *notification.Scheduled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.Status == "" {
		n.Status = notification.ScheduledPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*notification.Scheduled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, notification.ErrScheduledNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *MemoryRepository) CancelPending(_ context.Context, recipient int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cancelled int64
	for _, n := range r.rows {
		if n.Recipient == recipient && n.Status == notification.ScheduledPending {
			n.Status = notification.ScheduledCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (r *MemoryRepository) ListDue(_ context.Context, before time.Time, limit int) ([]*notification.Scheduled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*notification.Scheduled
	for _, n := range r.rows {
		if n.Status == notification.ScheduledPending && !n.TriggerAt.After(before) {
			cp := *n
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].TriggerAt.Equal(due[j].TriggerAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].TriggerAt.Before(due[j].TriggerAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryRepository) Claim(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return false, notification.ErrScheduledNotFound
	}
	if n.Status != notification.ScheduledPending {
		return false, nil
	}
	n.Status = notification.ScheduledSending
	return true, nil
}

func (r *MemoryRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return notification.ErrScheduledNotFound
	}
	n.Status = notification.ScheduledDelivered
	n.DeliveredAt.Time, n.DeliveredAt.Valid = at, true
	n.Attempts++
	return nil
}

func (r *MemoryRepository) MarkFailed(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return notification.ErrScheduledNotFound
	}
	n.Status = notification.ScheduledFailed
	n.LastError.String, n.LastError.Valid = reason, true
	n.Attempts++
	return nil
}
