package kvstore

import (
	"context"

	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/journal"
)

type journalDoc struct {
	Entries map[string]*journal.Entry `json:"entries"`
}

// JournalStore is the journal of one account, keyed by date.
type JournalStore struct {
	doc   *document[journalDoc]
	clock calendar.Clock
	newID func() string
}

func (s *JournalStore) Get(ctx context.Context, date string) (*journal.Entry, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := d.Entries[date]
	if !ok {
		return nil, journal.ErrEntryNotFound
	}
	return e, nil
}

func (s *JournalStore) Upsert(ctx context.Context, date, content string) (*journal.Entry, error) {
	now := s.clock.Now()
	var saved *journal.Entry
	err := s.doc.update(ctx, func(d *journalDoc) error {
		if d.Entries == nil {
			d.Entries = map[string]*journal.Entry{}
		}
		if e, ok := d.Entries[date]; ok {
			e.Content = content
			e.UpdatedAt = now
			saved = e
			return nil
		}
		saved = &journal.Entry{
			ID:        s.newID(),
			Date:      date,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		d.Entries[date] = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *JournalStore) Delete(ctx context.Context, date string) error {
	return s.doc.update(ctx, func(d *journalDoc) error {
		if _, ok := d.Entries[date]; !ok {
			return journal.ErrEntryNotFound
		}
		delete(d.Entries, date)
		return nil
	})
}

func (s *JournalStore) Has(ctx context.Context, date string) (bool, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return false, err
	}
	_, ok := d.Entries[date]
	return ok, nil
}

func (s *JournalStore) Entries(ctx context.Context) (map[string]*journal.Entry, error) {
	d, err := s.doc.get(ctx)
	if err != nil {
		return nil, err
	}
	if d.Entries == nil {
		return map[string]*journal.Entry{}, nil
	}
	return d.Entries, nil
}
