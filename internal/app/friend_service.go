package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/domain/toast"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyName           = errors.New("friend name is empty")
	ErrFriendAlreadyExists = errors.New("friend with this name already exists")
	ErrInvalidBirthday     = errors.New("birthday must be YYYY-MM-DD or MM-DD")
	ErrInvalidFrequency    = errors.New("check-in frequency must be positive")
)

// UpcomingBirthday is a friend whose birthday falls within a lookahead window.
type UpcomingBirthday struct {
	Friend *friend.Friend
	Date   time.Time
	InDays int
}

type FriendService struct {
	stores AccountStores
	clock  calendar.Clock
	logger *logrus.Entry

	mu     sync.Mutex
	toasts map[int64]*toast.Store
}

func NewFriendService(stores AccountStores, clock calendar.Clock, logger *logrus.Entry) *FriendService {
	return &FriendService{
		stores: stores,
		clock:  clock,
		logger: logger,
		toasts: make(map[int64]*toast.Store),
	}
}

func (s *FriendService) toastsFor(accountID int64) *toast.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.toasts[accountID]
	if !ok {
		t = toast.New()
		s.toasts[accountID] = t
	}
	return t
}

// ValidateBirthday accepts "YYYY-MM-DD" or "MM-DD".
func ValidateBirthday(birthday string) error {
	layout := calendar.DateLayout
	if len(birthday) <= 5 {
		// Parsed in year 0, a leap year, so "02-29" is accepted.
		layout = "01-02"
	}
	if _, err := time.Parse(layout, birthday); err != nil {
		return ErrInvalidBirthday
	}
	return nil
}

// AddFriend validates nf and stores it. Names are unique per account,
// compared case-insensitively.
func (s *FriendService) AddFriend(ctx context.Context, accountID int64, nf friend.NewFriend) (*friend.Friend, error) {
	nf.Name = strings.TrimSpace(nf.Name)
	if nf.Name == "" {
		return nil, ErrEmptyName
	}
	if nf.Birthday != nil {
		if err := ValidateBirthday(*nf.Birthday); err != nil {
			return nil, err
		}
	}
	if nf.FrequencyDays != nil && *nf.FrequencyDays < 0 {
		return nil, ErrInvalidFrequency
	}
	if nf.Category == "" {
		nf.Category = friend.CategoryFriend
	}

	repo := s.stores.Friends(accountID)
	exists, err := repo.HasFriend(ctx, nf.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing friend: %w", err)
	}
	if exists {
		return nil, ErrFriendAlreadyExists
	}

	f, err := repo.Add(ctx, nf)
	if err != nil {
		return nil, fmt.Errorf("failed to add friend: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"account_id": accountID, "friend_id": f.ID}).Info("Friend added")
	return f, nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, accountID int64, id string) error {
	return s.stores.Friends(accountID).Remove(ctx, id)
}

// FindByName returns the friend whose name matches name case-insensitively.
func (s *FriendService) FindByName(ctx context.Context, accountID int64, name string) (*friend.Friend, error) {
	friends, err := s.stores.Friends(accountID).List(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for _, f := range friends {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return nil, friend.ErrFriendNotFound
}

func (s *FriendService) GetFriend(ctx context.Context, accountID int64, id string) (*friend.Friend, error) {
	return s.stores.Friends(accountID).GetByID(ctx, id)
}

// ListByUrgency returns friends most overdue first. A nil category uses the
// account's saved filter; pass a category to also save it as the filter.
func (s *FriendService) ListByUrgency(ctx context.Context, accountID int64, category *friend.Category) ([]friend.Urgency, error) {
	repo := s.stores.Friends(accountID)
	if category != nil {
		if err := repo.SetSelectedCategory(ctx, category); err != nil {
			return nil, fmt.Errorf("failed to save category filter: %w", err)
		}
	} else {
		var err error
		category, err = repo.SelectedCategory(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load category filter: %w", err)
		}
	}

	friends, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return friend.SortByUrgency(friend.FilterByCategory(friends, category), s.clock.Now()), nil
}

// CategoryFilter returns the saved category filter, nil for all.
func (s *FriendService) CategoryFilter(ctx context.Context, accountID int64) (*friend.Category, error) {
	return s.stores.Friends(accountID).SelectedCategory(ctx)
}

// ClearCategoryFilter shows all categories again.
func (s *FriendService) ClearCategoryFilter(ctx context.Context, accountID int64) error {
	return s.stores.Friends(accountID).SetSelectedCategory(ctx, nil)
}

// CheckIn records contact with friend id today and shows an undoable toast.
// The returned toast id is passed to Undo.
func (s *FriendService) CheckIn(ctx context.Context, accountID int64, id string) (*friend.Friend, int, error) {
	repo := s.stores.Friends(accountID)
	previous, err := repo.LogCatchUp(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	f, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	toastID := s.toastsFor(accountID).Show(fmt.Sprintf("Checked in with %s", f.FirstName()), func(ctx context.Context) error {
		return repo.UndoCatchUp(ctx, id, previous)
	})
	return f, toastID, nil
}

// Undo reverts the action announced by toast toastID. It reports false when
// that toast is no longer current.
func (s *FriendService) Undo(ctx context.Context, accountID int64, toastID int) (bool, error) {
	return s.toastsFor(accountID).Undo(ctx, toastID)
}

func (s *FriendService) Toast(accountID int64) toast.State {
	return s.toastsFor(accountID).Current()
}

// UpcomingBirthdays lists birthdays from today through the next days days,
// soonest first.
func (s *FriendService) UpcomingBirthdays(ctx context.Context, accountID int64, days int) ([]UpcomingBirthday, error) {
	friends, err := s.stores.Friends(accountID).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}

	today := calendar.StartOfDay(s.clock.Now())
	var out []UpcomingBirthday
	for offset := 0; offset <= days; offset++ {
		date := today.AddDate(0, 0, offset)
		for _, f := range friends {
			if f.HasBirthday() && notification.IsBirthdayOnDate(*f.Birthday, date) {
				out = append(out, UpcomingBirthday{Friend: f, Date: date, InDays: offset})
			}
		}
	}
	return out, nil
}
