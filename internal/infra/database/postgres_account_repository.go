package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/account"
)

const accountColumns = `id, telegram_id, first_name, last_name, device_token, is_active, created_at, updated_at`

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	a := &account.Account{}
	err := row.Scan(&a.ID, &a.TelegramID, &a.FirstName, &a.LastName, &a.DeviceToken, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *PostgresAccountRepository) Create(ctx context.Context, a *account.Account) error {
	query := `INSERT INTO accounts (telegram_id, first_name, last_name, device_token, is_active)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, a.TelegramID, a.FirstName, a.LastName, a.DeviceToken, a.IsActive).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "accounts_telegram_id_key") {
			return account.ErrDuplicateTelegramID
		}
		return fmt.Errorf("error creating account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE telegram_id = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error getting account by Telegram ID: %w", err)
	}
	return a, nil
}

func (r *PostgresAccountRepository) Update(ctx context.Context, a *account.Account) error {
	query := `UPDATE accounts
               SET first_name = $1, last_name = $2, device_token = $3, is_active = $4, updated_at = NOW()
               WHERE id = $5
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, a.FirstName, a.LastName, a.DeviceToken, a.IsActive, a.ID).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.ErrAccountNotFound
		}
		return fmt.Errorf("error updating account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) ListActive(ctx context.Context) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_active = TRUE ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active accounts: %w", err)
	}
	return accounts, nil
}
