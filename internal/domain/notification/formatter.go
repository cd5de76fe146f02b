package notification

import (
	"fmt"

	"friend_reminder_bot/internal/domain/friend"
)

// FormatBirthdayTitle names up to two friends by first name and counts the rest:
//
//	It's John's birthday 🎉
//	It's John and Jane's birthday 🎉
//	It's John, Jane and 3 others' birthday 🎉
func FormatBirthdayTitle(friends []*friend.Friend) string {
	if len(friends) == 0 {
		return ""
	}

	first := friends[0].FirstName()
	if len(friends) == 1 {
		return fmt.Sprintf("It's %s's birthday 🎉", first)
	}

	second := friends[1].FirstName()
	if len(friends) == 2 {
		return fmt.Sprintf("It's %s and %s's birthday 🎉", first, second)
	}

	others := len(friends) - 2
	othersText := "1 other's"
	if others > 1 {
		othersText = fmt.Sprintf("%d others'", others)
	}
	return fmt.Sprintf("It's %s, %s and %s birthday 🎉", first, second, othersText)
}

func FormatBirthdayBody() string {
	return "Send wishes, make their day!"
}

func FormatCatchUpTitle(f *friend.Friend) string {
	return fmt.Sprintf("Catch'up with %s", f.Name)
}

func FormatCatchUpBody(daysSinceLastContact int) string {
	if daysSinceLastContact == 0 {
		return "You last checked in today"
	}
	dayWord := "days"
	if daysSinceLastContact == 1 {
		dayWord = "day"
	}
	return fmt.Sprintf("You last checked in %d %s ago", daysSinceLastContact, dayWord)
}
