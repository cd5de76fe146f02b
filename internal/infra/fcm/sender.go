// Package fcm delivers reminders as Firebase Cloud Messaging pushes.
package fcm

import (
	"context"
	"fmt"
	"strings"

	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/notification"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

var ErrNoDeviceToken = fmt.Errorf("recipient has no device token: %w", notification.ErrRecipientUnreachable)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Sender implements delivery.Sender over FCM. The recipient's device token
// is read from their account.
type Sender struct {
	client    messageSender
	accounts  account.Repository
	channelID string
	logger    *logrus.Entry
}

// NewSender initializes the Firebase app. An empty credentialsFile falls back
// to GOOGLE_APPLICATION_CREDENTIALS or default credentials.
func NewSender(ctx context.Context, credentialsFile string, accounts account.Repository, channelID string, logger *logrus.Entry) (*Sender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Warn("No Firebase credentials file provided. FCM will use GOOGLE_APPLICATION_CREDENTIALS or default credentials.")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return newSender(client, accounts, channelID, logger), nil
}

func newSender(client messageSender, accounts account.Repository, channelID string, logger *logrus.Entry) *Sender {
	return &Sender{client: client, accounts: accounts, channelID: channelID, logger: logger}
}

func (s *Sender) Send(ctx context.Context, n *notification.Scheduled, policy notification.DisplayPolicy) error {
	a, err := s.accounts.GetByTelegramID(ctx, n.Recipient)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	if !a.DeviceToken.Valid || a.DeviceToken.String == "" {
		return ErrNoDeviceToken
	}

	msg := buildMessage(a.DeviceToken.String, n, policy, s.channelID)
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to send FCM message")
		return err
	}
	return nil
}

func buildMessage(token string, n *notification.Scheduled, policy notification.DisplayPolicy, channelID string) *messaging.Message {
	data := map[string]string{
		"notificationId": n.ID,
		"type":           string(n.Payload.Type),
	}
	if n.Payload.FriendID != "" {
		data["friendId"] = n.Payload.FriendID
	}
	if len(n.Payload.FriendIDs) > 0 {
		data["friendIds"] = strings.Join(n.Payload.FriendIDs, ",")
	}

	msg := &messaging.Message{
		Token: token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: channelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{}},
		},
	}

	// Without banner or list display the push is data-only.
	if policy.ShowBanner || policy.ShowList {
		msg.Notification = &messaging.Notification{Title: n.Title, Body: n.Body}
	}
	if policy.PlaySound {
		msg.Android.Notification.Sound = "default"
		msg.APNS.Payload.Aps.Sound = "default"
	}
	if policy.SetBadge {
		badge := 1
		msg.APNS.Payload.Aps.Badge = &badge
	}
	return msg
}
