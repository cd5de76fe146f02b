package account

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateTelegramID = errors.New("account with this telegram_id already exists")
)

// Account is a Telegram user of the bot. Each account owns its own friend
// list, journal and reminder state.
type Account struct {
	ID          int64
	TelegramID  int64
	FirstName   string
	LastName    sql.NullString // optional
	DeviceToken sql.NullString // FCM registration token, when push delivery is used
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines the operations for persisting and retrieving accounts.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*Account, error)
	Update(ctx context.Context, a *Account) error // FirstName, LastName, DeviceToken, IsActive
	ListActive(ctx context.Context) ([]*Account, error)
}
