package kvstore

import (
	"context"

	"friend_reminder_bot/internal/domain/journal"
	"friend_reminder_bot/internal/domain/notification"
)

type settingsDoc struct {
	ColorScheme journal.ColorScheme `json:"colorScheme"`
}

type SettingsStore struct {
	doc *document[settingsDoc]
}

func (s *SettingsStore) ColorScheme(ctx context.Context) (journal.ColorScheme, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return "", err
	}
	if _, ok := journal.ColorSchemeLabels[d.ColorScheme]; !ok {
		return journal.DefaultColorScheme, nil
	}
	return d.ColorScheme, nil
}

func (s *SettingsStore) SetColorScheme(ctx context.Context, scheme journal.ColorScheme) error {
	if _, ok := journal.ColorSchemeLabels[scheme]; !ok {
		return journal.ErrUnknownColorScheme
	}
	return s.doc.update(ctx, func(d *settingsDoc) error {
		d.ColorScheme = scheme
		return nil
	})
}

// StateStore is the reminder dedup state of one account.
type StateStore struct {
	doc *document[notification.State]
}

func (s *StateStore) Load(ctx context.Context) (*notification.State, error) {
	st, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	if st.LastCatchUpNotificationDates == nil {
		st.LastCatchUpNotificationDates = map[string]string{}
	}
	return st, nil
}

func (s *StateStore) Update(ctx context.Context, fn func(*notification.State) error) error {
	return s.doc.update(ctx, fn)
}

func (s *StateStore) Reset(ctx context.Context) error {
	return s.doc.remove(ctx)
}
