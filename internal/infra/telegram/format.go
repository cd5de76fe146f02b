package telegram

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"friend_reminder_bot/internal/app"
	"friend_reminder_bot/internal/domain/friend"
	"friend_reminder_bot/internal/domain/journal"
)

var errAddFriendFormat = errors.New("usage: /add_friend Name | birthday | every N days | category")

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

// parseAddFriend reads "Name | birthday | frequency | category". Only the
// name is required; empty or "-" fields are skipped.
func parseAddFriend(payload string) (friend.NewFriend, error) {
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 4 || parts[0] == "" {
		return friend.NewFriend{}, errAddFriendFormat
	}

	nf := friend.NewFriend{Name: parts[0], Category: friend.CategoryFriend}
	field := func(i int) string {
		if i < len(parts) && parts[i] != "-" {
			return parts[i]
		}
		return ""
	}

	if b := field(1); b != "" {
		nf.Birthday = &b
	}
	if f := field(2); f != "" {
		days, err := parseFrequency(f)
		if err != nil {
			return friend.NewFriend{}, err
		}
		nf.FrequencyDays = &days
	}
	if c := field(3); c != "" {
		cat, ok := friend.ParseCategory(c)
		if !ok {
			return friend.NewFriend{}, fmt.Errorf("unknown category %q", c)
		}
		nf.Category = cat
	}
	return nf, nil
}

// parseFrequency accepts a day count or a frequency label such as "Weekly".
func parseFrequency(s string) (int, error) {
	if days, err := strconv.Atoi(s); err == nil {
		if days <= 0 {
			return 0, app.ErrInvalidFrequency
		}
		return days, nil
	}
	for _, opt := range friend.FrequencyOptions {
		if strings.EqualFold(opt.Label, s) {
			return opt.Days, nil
		}
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

func statusIcon(u friend.Urgency) string {
	if !u.Tracked {
		return "⚪"
	}
	switch u.Status {
	case friend.StatusOverdue:
		return "🔴"
	case friend.StatusDueToday:
		return "🟠"
	case friend.StatusDueSoon:
		return "🟡"
	default:
		return "🟢"
	}
}

func renderFriendList(list []friend.Urgency, category *friend.Category) string {
	var b strings.Builder
	if category != nil {
		fmt.Fprintf(&b, "<b>%s</b>\n", friend.RelationshipLabels[*category])
	} else {
		b.WriteString("<b>All friends</b>\n")
	}
	if len(list) == 0 {
		b.WriteString("Nobody here yet. Add someone with /add_friend.")
		return b.String()
	}
	for _, u := range list {
		fmt.Fprintf(&b, "%s %s · %s\n", statusIcon(u), escapeHTML(u.Friend.Name), u.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBirthdays(list []app.UpcomingBirthday) string {
	if len(list) == 0 {
		return "No birthdays in the next 30 days."
	}
	var b strings.Builder
	b.WriteString("<b>Upcoming birthdays</b>\n")
	for _, u := range list {
		when := fmt.Sprintf("in %d days", u.InDays)
		switch u.InDays {
		case 0:
			when = "today 🎉"
		case 1:
			when = "tomorrow"
		}
		fmt.Fprintf(&b, "%s · %s (%s)\n", u.Date.Format("Jan 2"), escapeHTML(u.Friend.Name), when)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEntry(e *journal.Entry) string {
	title, err := journal.FormatJournalDate(e.Date)
	if err != nil {
		title = e.Date
	}
	return fmt.Sprintf("<b>%s</b>\n\n%s", title, escapeHTML(e.Content))
}

func renderThemes(current journal.ColorScheme) string {
	var b strings.Builder
	b.WriteString("<b>Year grid theme</b>\n")
	for _, s := range []journal.ColorScheme{journal.SchemeWarm, journal.SchemePastel, journal.SchemeContrast} {
		mark := "  "
		if s == current {
			mark = "✓ "
		}
		fmt.Fprintf(&b, "%s%s (%s)\n", mark, journal.ColorSchemeLabels[s], s)
	}
	b.WriteString("Change it with /theme Pastel")
	return b.String()
}

const helpText = `<b>Friends</b>
/add_friend Name | birthday | every N days | category
  e.g. /add_friend John Doe | 1990-06-16 | 14 | family
/friends [category|all] - who to check in with
/checkin Name - log that you caught up
/remove_friend Name
/birthdays - the next 30 days

<b>Journal</b>
Any plain message becomes today's entry. Edit the message and the entry follows.
/journal [text] - show or write today's entry
/entry YYYY-MM-DD - show an entry
/delete_entry YYYY-MM-DD
/year [YYYY] - the year at a glance
/theme [Warm|Pastel|Contrast]

<b>Reminders</b>
Reminders arrive between 9 and 10 in the morning.
/notify - plan tomorrow's reminders now
/device TOKEN - deliver reminders as push notifications
/stop - pause reminders`
