package notification

import (
	"context"
	"errors"
	"time"
)

// ErrRecipientUnreachable is wrapped by senders when the recipient can no
// longer receive messages at all, e.g. they blocked the bot.
var ErrRecipientUnreachable = errors.New("recipient is unreachable")

// Kind identifies which reminder a notification carries.
type Kind string

const (
	KindBirthday Kind = "birthday"
	KindCatchUp  Kind = "catchup"
)

// Payload is the data attached to a notification and handed back on tap.
// Birthday notifications carry FriendIDs; catch-up notifications FriendID.
type Payload struct {
	Type      Kind     `json:"type"`
	FriendIDs []string `json:"friendIds,omitempty"`
	FriendID  string   `json:"friendId,omitempty"`
}

// Request is a single notification to be delivered at TriggerAt.
type Request struct {
	Kind      Kind
	Title     string
	Body      string
	TriggerAt time.Time
	Payload   Payload
}

// DisplayPolicy controls how a delivered notification is presented.
type DisplayPolicy struct {
	ShowBanner bool
	ShowList   bool
	PlaySound  bool
	SetBadge   bool
}

type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
	ImportanceMax
)

// ChannelConfig describes a delivery channel on platforms that group
// notifications into channels.
type ChannelConfig struct {
	Name             string
	Importance       Importance
	VibrationPattern []int64
	LightColor       string
}

// Response is emitted when the recipient opens a delivered notification.
type Response struct {
	NotificationID string
	Recipient      int64
	Kind           Kind
	Payload        Payload
	OpenedAt       time.Time
}

// Subscription is a registered listener that can be removed.
type Subscription interface {
	Remove()
}

// Delivery is the host notification service for one recipient.
type Delivery interface {
	SetNotificationHandler(policy DisplayPolicy)
	Schedule(ctx context.Context, req Request) (string, error)
	CancelAllScheduled(ctx context.Context) error
	AddResponseListener(fn func(Response)) Subscription
}

// ChannelProvisioner is implemented by deliveries whose platform supports
// notification channels.
type ChannelProvisioner interface {
	SetNotificationChannel(ctx context.Context, channelID string, cfg ChannelConfig) error
}
