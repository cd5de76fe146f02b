package app

import (
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/journal"
	"friend_reminder_bot/internal/domain/notification"
)

// AccountStores opens the per-account document stores.
type AccountStores interface {
	Friends(accountID int64) friend.Repository
	Journal(accountID int64) journal.Repository
	JournalSettings(accountID int64) journal.SettingsRepository
	NotificationState(accountID int64) notification.StateRepository
}

// DeliveryProvider hands out the notification delivery of one recipient
// (a Telegram chat id).
type DeliveryProvider interface {
	ForRecipient(recipient int64) notification.Delivery
}
