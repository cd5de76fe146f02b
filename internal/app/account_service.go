package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/account"
)

var ErrAccountAlreadyInactive = errors.New("account is already inactive")

type AccountService struct {
	accountRepo account.Repository
}

func NewAccountService(ar account.Repository) *AccountService {
	return &AccountService{accountRepo: ar}
}

// Register returns the account of telegramID, creating it on first contact
// and reactivating it if it was deactivated. created reports a new account.
func (s *AccountService) Register(ctx context.Context, telegramID int64, firstName, lastNameValue string) (a *account.Account, created bool, err error) {
	existing, err := s.accountRepo.GetByTelegramID(ctx, telegramID)
	if err == nil {
		if existing.IsActive {
			return existing, false, nil
		}
		existing.IsActive = true
		if err := s.accountRepo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to reactivate account: %w", err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, account.ErrAccountNotFound) {
		return nil, false, fmt.Errorf("failed to check existing account: %w", err)
	}

	var lastName sql.NullString
	if lastNameValue != "" {
		lastName = sql.NullString{String: lastNameValue, Valid: true}
	}

	newAccount := &account.Account{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		IsActive:   true,
	}
	if err := s.accountRepo.Create(ctx, newAccount); err != nil {
		if errors.Is(err, account.ErrDuplicateTelegramID) {
			// Lost a race with a concurrent /start.
			existing, getErr := s.accountRepo.GetByTelegramID(ctx, telegramID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load account after duplicate insert: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create account in repository: %w", err)
	}
	return newAccount, true, nil
}

// Get returns the active account of telegramID.
func (s *AccountService) Get(ctx context.Context, telegramID int64) (*account.Account, error) {
	a, err := s.accountRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, account.ErrAccountNotFound
	}
	return a, nil
}

// Deactivate stops reminders for telegramID. Stored data is kept.
func (s *AccountService) Deactivate(ctx context.Context, telegramID int64) (*account.Account, error) {
	a, err := s.accountRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account for deactivation: %w", err)
	}
	if !a.IsActive {
		return a, ErrAccountAlreadyInactive
	}

	a.IsActive = false
	if err := s.accountRepo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update account to inactive: %w", err)
	}
	return a, nil
}

// SetDeviceToken stores the push token used by FCM delivery. An empty token
// clears it.
func (s *AccountService) SetDeviceToken(ctx context.Context, telegramID int64, token string) error {
	a, err := s.Get(ctx, telegramID)
	if err != nil {
		return err
	}
	a.DeviceToken = sql.NullString{String: token, Valid: token != ""}
	if err := s.accountRepo.Update(ctx, a); err != nil {
		return fmt.Errorf("failed to update device token: %w", err)
	}
	return nil
}

func (s *AccountService) ListActive(ctx context.Context) ([]*account.Account, error) {
	return s.accountRepo.ListActive(ctx)
}
