package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id           BIGSERIAL PRIMARY KEY,
		telegram_id  BIGINT      NOT NULL,
		first_name   TEXT        NOT NULL,
		last_name    TEXT,
		device_token TEXT,
		is_active    BOOLEAN     NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT accounts_telegram_id_key UNIQUE (telegram_id)
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_notifications (
		id           TEXT PRIMARY KEY,
		recipient    BIGINT      NOT NULL,
		kind         TEXT        NOT NULL,
		title        TEXT        NOT NULL,
		body         TEXT        NOT NULL,
		payload      JSONB       NOT NULL DEFAULT '{}'::jsonb,
		trigger_at   TIMESTAMPTZ NOT NULL,
		status       TEXT        NOT NULL DEFAULT 'PENDING',
		attempts     INT         NOT NULL DEFAULT 0,
		last_error   TEXT,
		delivered_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS scheduled_notifications_due_idx
		ON scheduled_notifications (trigger_at) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS scheduled_notifications_recipient_idx
		ON scheduled_notifications (recipient, status)`,
	`CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables the bot needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
