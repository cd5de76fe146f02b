package telegram

import "gopkg.in/telebot.v3"

// Client sends chat messages. Reminder delivery and the opened-reminder
// replies depend on this rather than on *telebot.Bot.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
