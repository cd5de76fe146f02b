package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"friend_reminder_bot/internal/domain/notification"
)

const scheduledColumns = `id, recipient, kind, title, body, payload, trigger_at, status, attempts, last_error, delivered_at, created_at`

// PostgresScheduledRepository stores the notification outbox in
// scheduled_notifications.
type PostgresScheduledRepository struct {
	db *sql.DB
}

func NewPostgresScheduledRepository(db *sql.DB) *PostgresScheduledRepository {
	return &PostgresScheduledRepository{db: db}
}

func scanScheduled(row rowScanner) (*notification.Scheduled, error) {
	n := &notification.Scheduled{}
	var payload []byte
	err := row.Scan(&n.ID, &n.Recipient, &n.Kind, &n.Title, &n.Body, &payload, &n.TriggerAt, &n.Status, &n.Attempts, &n.LastError, &n.DeliveredAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("error decoding payload of %s: %w", n.ID, err)
		}
	}
	return n, nil
}

func (r *PostgresScheduledRepository) Create(ctx context.Context, n *notification.Scheduled) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}
	if n.Status == "" {
		n.Status = notification.ScheduledPending
	}

	query := `INSERT INTO scheduled_notifications (id, recipient, kind, title, body, payload, trigger_at, status)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, n.ID, n.Recipient, n.Kind, n.Title, n.Body, payload, n.TriggerAt, n.Status).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating scheduled notification: %w", err)
	}
	return nil
}

func (r *PostgresScheduledRepository) GetByID(ctx context.Context, id string) (*notification.Scheduled, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications WHERE id = $1`
	n, err := scanScheduled(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notification.ErrScheduledNotFound
		}
		return nil, fmt.Errorf("error getting scheduled notification: %w", err)
	}
	return n, nil
}

func (r *PostgresScheduledRepository) CancelPending(ctx context.Context, recipient int64) (int64, error) {
	query := `UPDATE scheduled_notifications SET status = $1
               WHERE recipient = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, notification.ScheduledCancelled, recipient, notification.ScheduledPending)
	if err != nil {
		return 0, fmt.Errorf("error cancelling pending notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading cancelled count: %w", err)
	}
	return n, nil
}

func (r *PostgresScheduledRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]*notification.Scheduled, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_notifications
               WHERE status = $1 AND trigger_at <= $2
               ORDER BY trigger_at, id
               LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, notification.ScheduledPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing due notifications: %w", err)
	}
	defer rows.Close()

	due := make([]*notification.Scheduled, 0)
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning due notification: %w", err)
		}
		due = append(due, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due notifications: %w", err)
	}
	return due, nil
}

func (r *PostgresScheduledRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `UPDATE scheduled_notifications SET status = $1
               WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, notification.ScheduledSending, id, notification.ScheduledPending)
	if err != nil {
		return false, fmt.Errorf("error claiming scheduled notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading claimed count: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresScheduledRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE scheduled_notifications
               SET status = $1, delivered_at = $2, attempts = attempts + 1
               WHERE id = $3`
	return r.execOne(ctx, query, notification.ScheduledDelivered, at, id)
}

func (r *PostgresScheduledRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `UPDATE scheduled_notifications
               SET status = $1, last_error = $2, attempts = attempts + 1
               WHERE id = $3`
	return r.execOne(ctx, query, notification.ScheduledFailed, reason, id)
}

func (r *PostgresScheduledRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating scheduled notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading updated count: %w", err)
	}
	if n == 0 {
		return notification.ErrScheduledNotFound
	}
	return nil
}
