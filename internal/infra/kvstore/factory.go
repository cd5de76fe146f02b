// Package kvstore keeps each account's friends, journal, settings and
// reminder state as JSON documents in a storage.KV.
package kvstore

import (
	"sync"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/journal"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/domain/storage"

	"github.com/google/uuid"
)

// Factory opens per-account stores over one KV backend.
type Factory struct {
	kv    storage.KV
	clock calendar.Clock
	newID func() string

	locks sync.Map // key -> *sync.Mutex
}

type Option func(*Factory)

// WithIDGenerator replaces uuid.NewString for new friend and entry ids.
func WithIDGenerator(fn func() string) Option {
	return func(f *Factory) { f.newID = fn }
}

func NewFactory(kv storage.KV, clock calendar.Clock, opts ...Option) *Factory {
	f := &Factory{kv: kv, clock: clock, newID: uuid.NewString}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) lockFor(key string) *sync.Mutex {
	m, _ := f.locks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func newDocument[T any](f *Factory, accountID int64, store string, empty func() *T) *document[T] {
	key := storage.AccountKey(accountID, store)
	return &document[T]{kv: f.kv, key: key, lock: f.lockFor(key), empty: empty}
}

func (f *Factory) Friends(accountID int64) friend.Repository {
	return &FriendStore{
		doc:   newDocument(f, accountID, storage.FriendsStore, func() *friendsDoc { return &friendsDoc{} }),
		clock: f.clock,
		newID: f.newID,
	}
}

func (f *Factory) Journal(accountID int64) journal.Repository {
	return &JournalStore{
		doc: newDocument(f, accountID, storage.JournalStore, func() *journalDoc {
			return &journalDoc{Entries: map[string]*journal.Entry{}}
		}),
		clock: f.clock,
		newID: f.newID,
	}
}

func (f *Factory) JournalSettings(accountID int64) journal.SettingsRepository {
	return &SettingsStore{
		doc: newDocument(f, accountID, storage.JournalSettingsStore, func() *settingsDoc {
			return &settingsDoc{ColorScheme: journal.DefaultColorScheme}
		}),
	}
}

func (f *Factory) NotificationState(accountID int64) notification.StateRepository {
	return &StateStore{
		doc: newDocument(f, accountID, storage.NotificationStateStore, notification.NewState),
	}
}

// Accounts opens the account registry stored in the same KV.
func (f *Factory) Accounts() account.Repository {
	return &AccountStore{
		doc: &document[accountsDoc]{
			kv:    f.kv,
			key:   storage.AccountsKey,
			lock:  f.lockFor(storage.AccountsKey),
			empty: func() *accountsDoc { return &accountsDoc{} },
		},
		clock: f.clock,
	}
}
