package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrKeyNotFound = errors.New("key not found")

// KV is a flat key-value store holding JSON documents.
type KV interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store names of the per-account documents.
const (
	FriendsStore           = "friends-storage"
	JournalStore           = "journal-storage"
	NotificationStateStore = "notification-state-storage"
	JournalSettingsStore   = "journal-settings-storage"
)

// AccountsKey holds the account registry when accounts live in the KV.
const AccountsKey = "accounts"

// AccountKey namespaces a store document to one account.
func AccountKey(accountID int64, store string) string {
	return fmt.Sprintf("account:%d:%s", accountID, store)
}
