package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/journal"

	"github.com/sirupsen/logrus"
)

var ErrEmptyContent = errors.New("journal entry is empty")

// Text grid fits a chat bubble roughly this many emoji wide and tall.
const (
	chatGridWidth  = 260
	chatGridHeight = 420
)

type JournalService struct {
	stores   AccountStores
	clock    calendar.Clock
	intN     func(n int) int
	debounce time.Duration
	logger   *logrus.Entry

	mu     sync.Mutex
	savers map[int64]*journal.AutoSaver
}

// NewJournalService builds the service. A nil intN uses math/rand.
func NewJournalService(stores AccountStores, clock calendar.Clock, intN func(n int) int, debounce time.Duration, logger *logrus.Entry) *JournalService {
	if intN == nil {
		intN = rand.Intn
	}
	return &JournalService{
		stores:   stores,
		clock:    clock,
		intN:     intN,
		debounce: debounce,
		logger:   logger,
		savers:   make(map[int64]*journal.AutoSaver),
	}
}

// Today is the account-local date key of today's entry.
func (s *JournalService) Today() string {
	return calendar.ToDateString(s.clock.Now())
}

// Write stores content as the entry of date and returns a congratulation
// message.
func (s *JournalService) Write(ctx context.Context, accountID int64, date, content string) (*journal.Entry, string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, "", ErrEmptyContent
	}
	if _, err := calendar.ParseDate(date, s.clock.Now().Location()); err != nil {
		return nil, "", err
	}

	e, err := s.stores.Journal(accountID).Upsert(ctx, date, content)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save journal entry: %w", err)
	}
	return e, journal.RandomCongratsMessage(s.intN), nil
}

func (s *JournalService) Get(ctx context.Context, accountID int64, date string) (*journal.Entry, error) {
	return s.stores.Journal(accountID).Get(ctx, date)
}

func (s *JournalService) Delete(ctx context.Context, accountID int64, date string) error {
	return s.stores.Journal(accountID).Delete(ctx, date)
}

// Draft feeds an in-progress version of today's entry to the account's
// auto-saver. The latest draft is saved once edits pause.
func (s *JournalService) Draft(accountID int64, content string) {
	s.saverFor(accountID).Update(content)
}

// FlushDraft saves a pending draft immediately.
func (s *JournalService) FlushDraft(accountID int64) {
	s.mu.Lock()
	saver, ok := s.savers[accountID]
	s.mu.Unlock()
	if ok {
		saver.SaveNow()
	}
}

func (s *JournalService) DraftSaved(accountID int64) bool {
	s.mu.Lock()
	saver, ok := s.savers[accountID]
	s.mu.Unlock()
	return ok && saver.JustSaved()
}

func (s *JournalService) saverFor(accountID int64) *journal.AutoSaver {
	s.mu.Lock()
	defer s.mu.Unlock()
	saver, ok := s.savers[accountID]
	if ok {
		return saver
	}
	saver = journal.NewAutoSaver(func(content string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.stores.Journal(accountID).Upsert(ctx, s.Today(), content); err != nil {
			s.logger.WithError(err).WithField("account_id", accountID).Error("Failed to auto-save journal draft")
		}
	}, s.debounce)
	s.savers[accountID] = saver
	return saver
}

// Close stops every auto-saver. Unsaved drafts are dropped.
func (s *JournalService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, saver := range s.savers {
		saver.Stop()
		delete(s.savers, id)
	}
}

// YearGrid renders the dot grid of year in the account's color scheme.
func (s *JournalService) YearGrid(ctx context.Context, accountID int64, year int) (string, error) {
	entries, err := s.stores.Journal(accountID).Entries(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load journal entries: %w", err)
	}
	scheme, err := s.Theme(ctx, accountID)
	if err != nil {
		return "", err
	}

	total := len(journal.GenerateYearDates(year))
	layout := journal.CalculateGridLayout(total, chatGridWidth, chatGridHeight)
	return journal.RenderYearGrid(year, entries, s.clock.Now(), layout, scheme), nil
}

// DaysLeft renders how many days remain in the current year.
func (s *JournalService) DaysLeft() string {
	return journal.FormatDaysRemaining(journal.DaysRemainingInYear(s.clock.Now()))
}

func (s *JournalService) Theme(ctx context.Context, accountID int64) (journal.ColorScheme, error) {
	scheme, err := s.stores.JournalSettings(accountID).ColorScheme(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load color scheme: %w", err)
	}
	return scheme, nil
}

func (s *JournalService) SetTheme(ctx context.Context, accountID int64, name string) (journal.ColorScheme, error) {
	scheme, err := journal.ParseColorScheme(strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	if err := s.stores.JournalSettings(accountID).SetColorScheme(ctx, scheme); err != nil {
		return "", fmt.Errorf("failed to save color scheme: %w", err)
	}
	return scheme, nil
}
