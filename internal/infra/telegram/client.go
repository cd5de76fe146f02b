package telegram

import (
	"errors"
	"fmt"

	"friend_reminder_bot/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to a private chat. Errors meaning the
// chat is gone for good wrap notification.ErrRecipientUnreachable.
func (a *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := a.bot.Send(telebot.ChatID(chatID), text, options)
	return classifySendError(err)
}

func classifySendError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated),
		errors.Is(err, telebot.ErrChatNotFound):
		return fmt.Errorf("%w: %w", notification.ErrRecipientUnreachable, err)
	default:
		return err
	}
}
