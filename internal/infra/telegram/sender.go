package telegram

import (
	"context"
	"fmt"

	"friend_reminder_bot/internal/domain/notification"
	domainTelegram "friend_reminder_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// Inline buttons. The callback payload is the notification, toast or friend id.
var (
	btnOpen    = telebot.Btn{Unique: "open"}
	btnUndo    = telebot.Btn{Unique: "undo"}
	btnCheckIn = telebot.Btn{Unique: "checkin"}
)

// NotificationSender delivers reminders as chat messages with an "Open"
// button.
type NotificationSender struct {
	client domainTelegram.Client
}

func NewNotificationSender(client domainTelegram.Client) *NotificationSender {
	return &NotificationSender{client: client}
}

func (s *NotificationSender) Send(_ context.Context, n *notification.Scheduled, policy notification.DisplayPolicy) error {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Open", btnOpen.Unique, n.ID)))

	opts := &telebot.SendOptions{
		ReplyMarkup:         markup,
		ParseMode:           telebot.ModeHTML,
		DisableNotification: !policy.PlaySound,
	}
	return s.client.SendMessage(n.Recipient, reminderText(n), opts)
}

func reminderText(n *notification.Scheduled) string {
	return fmt.Sprintf("<b>%s</b>\n%s", escapeHTML(n.Title), escapeHTML(n.Body))
}
