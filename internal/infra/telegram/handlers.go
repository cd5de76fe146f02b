package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"friend_reminder_bot/internal/app"
	"friend_reminder_bot/internal/domain/account"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/journal"
	"friend_reminder_bot/internal/domain/notification"
	domainTelegram "friend_reminder_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	handlerTimeout     = 15 * time.Second
	birthdayLookahead  = 30
	msgUnknownAccount  = "Send /start first so I can set things up for you."
	msgInternalFailure = "Something went wrong. Please try again later."
)

// ResponseOpener turns a tapped "Open" button into a notification response.
type ResponseOpener interface {
	Open(ctx context.Context, recipient int64, id string) (*notification.Scheduled, error)
}

type Handlers struct {
	accounts *app.AccountService
	friends  *app.FriendService
	journal  *app.JournalService
	planner  *app.Planner
	opener   ResponseOpener
	client   domainTelegram.Client
	clock    calendar.Clock
	logger   *logrus.Entry
}

func NewHandlers(
	accounts *app.AccountService,
	friends *app.FriendService,
	journalService *app.JournalService,
	planner *app.Planner,
	opener ResponseOpener,
	client domainTelegram.Client,
	clock calendar.Clock,
	logger *logrus.Entry,
) *Handlers {
	return &Handlers{
		accounts: accounts,
		friends:  friends,
		journal:  journalService,
		planner:  planner,
		opener:   opener,
		client:   client,
		clock:    clock,
		logger:   logger,
	}
}

var htmlOpts = &telebot.SendOptions{ParseMode: telebot.ModeHTML}

// withAccount resolves the sender's account before running fn.
func (h *Handlers) withAccount(ctx context.Context, command string, fn func(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		log := h.logger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		reqCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()

		a, err := h.accounts.Get(reqCtx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return c.Send(msgUnknownAccount)
			}
			log.WithError(err).Error("Failed to load account")
			return c.Send(msgInternalFailure)
		}
		return fn(reqCtx, c, a, log.WithField("account_id", a.ID))
	}
}

// Register wires every command, button and message handler.
func (h *Handlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", func(c telebot.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()
		sender := c.Sender()
		log := h.logger.WithFields(logrus.Fields{"handler": "/start", "sender_id": sender.ID})

		a, created, err := h.accounts.Register(reqCtx, sender.ID, sender.FirstName, sender.LastName)
		if err != nil {
			log.WithError(err).Error("Failed to register account")
			return c.Send(msgInternalFailure)
		}
		if created {
			log.WithField("account_id", a.ID).Info("Account created")
			return c.Send(fmt.Sprintf("Hi %s! I'll help you keep in touch with the people who matter and keep a daily journal.\n\n%s", escapeHTML(a.FirstName), helpText), htmlOpts)
		}
		return c.Send(fmt.Sprintf("Welcome back, %s! Reminders are on. /help lists what I can do.", escapeHTML(a.FirstName)), htmlOpts)
	})

	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpText, htmlOpts)
	})

	b.Handle("/stop", h.withAccount(ctx, "/stop", func(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
		if _, err := h.accounts.Deactivate(ctx, a.TelegramID); err != nil {
			log.WithError(err).Error("Failed to deactivate account")
			return c.Send(msgInternalFailure)
		}
		if err := h.planner.Unwatch(ctx, a); err != nil {
			log.WithError(err).Warn("Failed to cancel pending reminders")
		}
		log.Info("Account deactivated")
		return c.Send("Reminders paused. Your friends and journal are kept; send /start to resume.")
	}))

	b.Handle("/add_friend", h.withAccount(ctx, "/add_friend", h.handleAddFriend))
	b.Handle("/friends", h.withAccount(ctx, "/friends", h.handleFriends))
	b.Handle("/remove_friend", h.withAccount(ctx, "/remove_friend", h.handleRemoveFriend))
	b.Handle("/checkin", h.withAccount(ctx, "/checkin", h.handleCheckInCommand))
	b.Handle("/birthdays", h.withAccount(ctx, "/birthdays", h.handleBirthdays))

	b.Handle("/journal", h.withAccount(ctx, "/journal", h.handleJournal))
	b.Handle("/entry", h.withAccount(ctx, "/entry", h.handleEntry))
	b.Handle("/delete_entry", h.withAccount(ctx, "/delete_entry", h.handleDeleteEntry))
	b.Handle("/year", h.withAccount(ctx, "/year", h.handleYear))
	b.Handle("/theme", h.withAccount(ctx, "/theme", h.handleTheme))

	b.Handle("/notify", h.withAccount(ctx, "/notify", h.handleNotify))
	b.Handle("/device", h.withAccount(ctx, "/device", h.handleDevice))

	b.Handle(&btnOpen, h.withAccount(ctx, "open", h.handleOpen))
	b.Handle(&btnUndo, h.withAccount(ctx, "undo", h.handleUndo))
	b.Handle(&btnCheckIn, h.withAccount(ctx, "checkin_button", h.handleCheckInButton))

	b.Handle(telebot.OnText, h.withAccount(ctx, "text", h.handleText))
	b.Handle(telebot.OnEdited, h.withAccount(ctx, "edited", h.handleEdited))
}

func (h *Handlers) handleAddFriend(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	nf, err := parseAddFriend(c.Message().Payload)
	if err != nil {
		return c.Send(err.Error())
	}

	f, err := h.friends.AddFriend(ctx, a.ID, nf)
	switch {
	case errors.Is(err, app.ErrFriendAlreadyExists):
		return c.Send(fmt.Sprintf("%s is already on your list.", nf.Name))
	case errors.Is(err, app.ErrInvalidBirthday), errors.Is(err, app.ErrEmptyName), errors.Is(err, app.ErrInvalidFrequency):
		return c.Send(err.Error())
	case err != nil:
		log.WithError(err).Error("Failed to add friend")
		return c.Send(msgInternalFailure)
	}

	msg := fmt.Sprintf("Added %s (%s).", f.Name, friend.RelationshipLabels[f.Category])
	if f.HasFrequency() {
		msg += fmt.Sprintf(" I'll remind you to check in every %d days.", f.Frequency())
	}
	return c.Send(msg)
}

func (h *Handlers) handleFriends(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	var category *friend.Category
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		if strings.EqualFold(arg, "all") {
			if err := h.friends.ClearCategoryFilter(ctx, a.ID); err != nil {
				log.WithError(err).Error("Failed to clear category filter")
				return c.Send(msgInternalFailure)
			}
		} else {
			cat, ok := friend.ParseCategory(arg)
			if !ok {
				return c.Send("Categories: friend, family, work, partner, flirt, or all.")
			}
			category = &cat
		}
	}

	list, err := h.friends.ListByUrgency(ctx, a.ID, category)
	if err != nil {
		log.WithError(err).Error("Failed to list friends")
		return c.Send(msgInternalFailure)
	}
	if category == nil {
		if category, err = h.friends.CategoryFilter(ctx, a.ID); err != nil {
			log.WithError(err).Error("Failed to load category filter")
			return c.Send(msgInternalFailure)
		}
	}

	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, u := range list {
		if u.Tracked && u.Status != friend.StatusOnTrack {
			rows = append(rows, markup.Row(markup.Data("✓ "+u.Friend.FirstName(), btnCheckIn.Unique, u.Friend.ID)))
		}
	}
	markup.Inline(rows...)
	return c.Send(renderFriendList(list, category), &telebot.SendOptions{ParseMode: telebot.ModeHTML, ReplyMarkup: markup})
}

func (h *Handlers) handleRemoveFriend(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Usage: /remove_friend Name")
	}
	f, err := h.friends.FindByName(ctx, a.ID, name)
	if errors.Is(err, friend.ErrFriendNotFound) {
		return c.Send(fmt.Sprintf("No friend called %s.", name))
	}
	if err != nil {
		log.WithError(err).Error("Failed to find friend")
		return c.Send(msgInternalFailure)
	}
	if err := h.friends.RemoveFriend(ctx, a.ID, f.ID); err != nil {
		log.WithError(err).Error("Failed to remove friend")
		return c.Send(msgInternalFailure)
	}
	return c.Send(fmt.Sprintf("Removed %s.", f.Name))
}

func (h *Handlers) handleCheckInCommand(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Usage: /checkin Name")
	}
	f, err := h.friends.FindByName(ctx, a.ID, name)
	if errors.Is(err, friend.ErrFriendNotFound) {
		return c.Send(fmt.Sprintf("No friend called %s.", name))
	}
	if err != nil {
		log.WithError(err).Error("Failed to find friend")
		return c.Send(msgInternalFailure)
	}
	return h.checkIn(ctx, c, a, f.ID, log)
}

func (h *Handlers) handleCheckInButton(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	if err := h.checkIn(ctx, c, a, c.Callback().Data, log); err != nil {
		return err
	}
	return c.Respond()
}

func (h *Handlers) checkIn(ctx context.Context, c telebot.Context, a *account.Account, friendID string, log *logrus.Entry) error {
	_, toastID, err := h.friends.CheckIn(ctx, a.ID, friendID)
	if errors.Is(err, friend.ErrFriendNotFound) {
		return c.Send("That friend is no longer on your list.")
	}
	if err != nil {
		log.WithError(err).WithField("friend_id", friendID).Error("Failed to check in")
		return c.Send(msgInternalFailure)
	}

	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Undo", btnUndo.Unique, strconv.Itoa(toastID))))
	return c.Send(h.friends.Toast(a.ID).Message, markup)
}

func (h *Handlers) handleUndo(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	toastID, err := strconv.Atoi(c.Callback().Data)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: "Nothing to undo."})
	}
	undone, err := h.friends.Undo(ctx, a.ID, toastID)
	if err != nil {
		log.WithError(err).Error("Undo failed")
		return c.Respond(&telebot.CallbackResponse{Text: msgInternalFailure})
	}
	if !undone {
		return c.Respond(&telebot.CallbackResponse{Text: "Too late to undo that."})
	}
	if err := c.Edit("Check-in undone."); err != nil {
		log.WithError(err).Debug("Failed to edit undone message")
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Undone"})
}

func (h *Handlers) handleBirthdays(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	list, err := h.friends.UpcomingBirthdays(ctx, a.ID, birthdayLookahead)
	if err != nil {
		log.WithError(err).Error("Failed to list birthdays")
		return c.Send(msgInternalFailure)
	}
	return c.Send(renderBirthdays(list), htmlOpts)
}

func (h *Handlers) handleJournal(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	if text := strings.TrimSpace(c.Message().Payload); text != "" {
		return h.writeToday(ctx, c, a, text, log)
	}

	h.journal.FlushDraft(a.ID)
	e, err := h.journal.Get(ctx, a.ID, h.journal.Today())
	if errors.Is(err, journal.ErrEntryNotFound) {
		return c.Send(fmt.Sprintf("Nothing written today yet. Just send me a message. %s.", h.journal.DaysLeft()))
	}
	if err != nil {
		log.WithError(err).Error("Failed to load today's entry")
		return c.Send(msgInternalFailure)
	}
	return c.Send(renderEntry(e)+"\n\n<i>"+h.journal.DaysLeft()+"</i>", htmlOpts)
}

func (h *Handlers) writeToday(ctx context.Context, c telebot.Context, a *account.Account, text string, log *logrus.Entry) error {
	_, congrats, err := h.journal.Write(ctx, a.ID, h.journal.Today(), text)
	if errors.Is(err, app.ErrEmptyContent) {
		return c.Send("Write something first.")
	}
	if err != nil {
		log.WithError(err).Error("Failed to write journal entry")
		return c.Send(msgInternalFailure)
	}
	return c.Send(congrats)
}

func (h *Handlers) handleText(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	text := c.Text()
	if strings.HasPrefix(text, "/") {
		return c.Send("I don't know that command. /help lists what I can do.")
	}
	return h.writeToday(ctx, c, a, text, log)
}

// handleEdited feeds an edited journal message to the auto-saver. Only
// edits made on the day of the entry update it.
func (h *Handlers) handleEdited(_ context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	msg := c.Message()
	if msg == nil || strings.HasPrefix(msg.Text, "/") {
		return nil
	}
	sentOn := calendar.ToDateString(msg.Time().In(h.clock.Now().Location()))
	if sentOn != h.journal.Today() {
		log.Debug("Ignoring edit of an older message")
		return nil
	}
	h.journal.Draft(a.ID, msg.Text)
	return nil
}

func (h *Handlers) handleEntry(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	date := strings.TrimSpace(c.Message().Payload)
	if date == "" {
		date = h.journal.Today()
	}
	e, err := h.journal.Get(ctx, a.ID, date)
	if errors.Is(err, journal.ErrEntryNotFound) {
		return c.Send(fmt.Sprintf("No entry for %s.", date))
	}
	if err != nil {
		log.WithError(err).Error("Failed to load entry")
		return c.Send(msgInternalFailure)
	}
	return c.Send(renderEntry(e), htmlOpts)
}

func (h *Handlers) handleDeleteEntry(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	date := strings.TrimSpace(c.Message().Payload)
	if date == "" {
		return c.Send("Usage: /delete_entry YYYY-MM-DD")
	}
	err := h.journal.Delete(ctx, a.ID, date)
	if errors.Is(err, journal.ErrEntryNotFound) {
		return c.Send(fmt.Sprintf("No entry for %s.", date))
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete entry")
		return c.Send(msgInternalFailure)
	}
	return c.Send(fmt.Sprintf("Deleted the entry for %s.", date))
}

func (h *Handlers) handleYear(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	year := h.clock.Now().Year()
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		y, err := strconv.Atoi(arg)
		if err != nil || y < 1970 || y > 9999 {
			return c.Send("Usage: /year [YYYY]")
		}
		year = y
	}

	grid, err := h.journal.YearGrid(ctx, a.ID, year)
	if err != nil {
		log.WithError(err).Error("Failed to render year grid")
		return c.Send(msgInternalFailure)
	}
	text := fmt.Sprintf("<b>%d</b>\n%s", year, grid)
	if year == h.clock.Now().Year() {
		text += "\n" + h.journal.DaysLeft()
	}
	return c.Send(text, htmlOpts)
}

func (h *Handlers) handleTheme(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	arg := strings.TrimSpace(c.Message().Payload)
	if arg == "" {
		current, err := h.journal.Theme(ctx, a.ID)
		if err != nil {
			log.WithError(err).Error("Failed to load theme")
			return c.Send(msgInternalFailure)
		}
		return c.Send(renderThemes(current), htmlOpts)
	}

	scheme, err := h.journal.SetTheme(ctx, a.ID, arg)
	if errors.Is(err, journal.ErrUnknownColorScheme) {
		return c.Send("Themes: Warm, Pastel, Contrast.")
	}
	if err != nil {
		log.WithError(err).Error("Failed to set theme")
		return c.Send(msgInternalFailure)
	}
	return c.Send(fmt.Sprintf("Theme set to %s.", journal.ColorSchemeLabels[scheme]))
}

func (h *Handlers) handleNotify(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	result, err := h.planner.PlanAccount(ctx, a)
	if err != nil && result == nil {
		log.WithError(err).Error("Planning pass failed")
		return c.Send(msgInternalFailure)
	}
	if err != nil {
		log.WithError(err).Warn("Planning pass finished with errors")
	}

	var parts []string
	if result.BirthdayScheduled {
		parts = append(parts, "a birthday reminder")
	}
	if n := len(result.CatchUpFriendIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d catch-up reminder(s)", n))
	}
	if len(parts) == 0 {
		return c.Send("Nothing to remind you about tomorrow.")
	}
	return c.Send(fmt.Sprintf("Tomorrow morning you'll get %s.", strings.Join(parts, " and ")))
}

func (h *Handlers) handleDevice(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	token := strings.TrimSpace(c.Message().Payload)
	if err := h.accounts.SetDeviceToken(ctx, a.TelegramID, token); err != nil {
		log.WithError(err).Error("Failed to store device token")
		return c.Send(msgInternalFailure)
	}
	if token == "" {
		return c.Send("Device token cleared.")
	}
	return c.Send("Device registered for push reminders.")
}

func (h *Handlers) handleOpen(ctx context.Context, c telebot.Context, a *account.Account, log *logrus.Entry) error {
	_, err := h.opener.Open(ctx, a.TelegramID, c.Callback().Data)
	if err != nil {
		log.WithError(err).Warn("Failed to open reminder")
		return c.Respond(&telebot.CallbackResponse{Text: "This reminder is no longer available."})
	}
	return c.Respond()
}

// HandleResponse answers an opened reminder with the friends it was about.
func (h *Handlers) HandleResponse(a *account.Account, resp notification.Response) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	log := h.logger.WithFields(logrus.Fields{
		"account_id":      a.ID,
		"notification_id": resp.NotificationID,
	})

	ids := resp.Payload.FriendIDs
	if resp.Payload.FriendID != "" {
		ids = []string{resp.Payload.FriendID}
	}

	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	var lines []string
	for _, id := range ids {
		f, err := h.friends.GetFriend(ctx, a.ID, id)
		if err != nil {
			log.WithError(err).WithField("friend_id", id).Debug("Friend from reminder not found")
			continue
		}
		u := friend.Assess(f, h.clock.Now())
		lines = append(lines, fmt.Sprintf("%s %s · %s", statusIcon(u), escapeHTML(f.Name), u.Label))
		rows = append(rows, markup.Row(markup.Data("✓ Checked in with "+f.FirstName(), btnCheckIn.Unique, f.ID)))
	}
	if len(lines) == 0 {
		return
	}
	markup.Inline(rows...)

	text := strings.Join(lines, "\n")
	if resp.Kind == notification.KindBirthday {
		text = "🎂 Say happy birthday to:\n" + text
	}
	if err := h.client.SendMessage(a.TelegramID, text, &telebot.SendOptions{ParseMode: telebot.ModeHTML, ReplyMarkup: markup}); err != nil {
		if errors.Is(err, notification.ErrRecipientUnreachable) {
			log.WithError(err).Warn("Account can no longer be messaged")
			return
		}
		log.WithError(err).Error("Failed to answer opened reminder")
	}
}
