package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/storage"
)

// PostgresKVStore implements storage.KV over the kv_store table.
type PostgresKVStore struct {
	db *sql.DB
}

func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

func (s *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("error reading key %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv_store (key, value) VALUES ($1, $2)
               ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("error writing key %s: %w", key, err)
	}
	return nil
}

func (s *PostgresKVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}
