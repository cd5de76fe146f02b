package kvstore

import (
	"context"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
)

type accountsDoc struct {
	NextID   int64              `json:"nextId"`
	Accounts []*account.Account `json:"accounts"`
}

func (d *accountsDoc) find(telegramID int64) *account.Account {
	for _, a := range d.Accounts {
		if a.TelegramID == telegramID {
			return a
		}
	}
	return nil
}

// AccountStore is an account.Repository for deployments without Postgres.
type AccountStore struct {
	doc   *document[accountsDoc]
	clock calendar.Clock
}

func (s *AccountStore) Create(ctx context.Context, a *account.Account) error {
	return s.doc.update(ctx, func(d *accountsDoc) error {
		if d.find(a.TelegramID) != nil {
			return account.ErrDuplicateTelegramID
		}
		d.NextID++
		now := s.clock.Now()
		a.ID = d.NextID
		a.CreatedAt = now
		a.UpdatedAt = now
		stored := *a
		d.Accounts = append(d.Accounts, &stored)
		return nil
	})
}

func (s *AccountStore) GetByTelegramID(ctx context.Context, telegramID int64) (*account.Account, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	a := d.find(telegramID)
	if a == nil {
		return nil, account.ErrAccountNotFound
	}
	return a, nil
}

func (s *AccountStore) Update(ctx context.Context, a *account.Account) error {
	return s.doc.update(ctx, func(d *accountsDoc) error {
		stored := d.find(a.TelegramID)
		if stored == nil || stored.ID != a.ID {
			return account.ErrAccountNotFound
		}
		stored.FirstName = a.FirstName
		stored.LastName = a.LastName
		stored.DeviceToken = a.DeviceToken
		stored.IsActive = a.IsActive
		stored.UpdatedAt = s.clock.Now()
		a.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (s *AccountStore) ListActive(ctx context.Context) ([]*account.Account, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	var out []*account.Account
	for _, a := range d.Accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}
