package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"friend_reminder_bot/internal/domain/friend"
)

func named(names ...string) []*friend.Friend {
	out := make([]*friend.Friend, 0, len(names))
	for _, n := range names {
		out = append(out, &friend.Friend{Name: n})
	}
	return out
}

func TestFormatBirthdayTitle(t *testing.T) {
	tests := []struct {
		name    string
		friends []*friend.Friend
		want    string
	}{
		{"none", nil, ""},
		{"one uses first name", named("John Doe"), "It's John's birthday 🎉"},
		{"two", named("John", "Jane"), "It's John and Jane's birthday 🎉"},
		{"three", named("John", "Jane", "Bob"), "It's John, Jane and 1 other's birthday 🎉"},
		{"five", named("Ann Lee", "Ben", "Cy", "Di", "Ed"), "It's Ann, Ben and 3 others' birthday 🎉"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBirthdayTitle(tt.friends))
		})
	}
}

func TestFormatBirthdayTitleIsOrderSensitive(t *testing.T) {
	assert.NotEqual(t,
		FormatBirthdayTitle(named("John", "Jane", "Bob")),
		FormatBirthdayTitle(named("Jane", "John", "Bob")),
	)
}

func TestFormatBodiesAndCatchUpTitle(t *testing.T) {
	assert.Equal(t, "Send wishes, make their day!", FormatBirthdayBody())
	assert.Equal(t, "Catch'up with John Doe", FormatCatchUpTitle(&friend.Friend{Name: "John Doe"}))

	assert.Equal(t, "You last checked in today", FormatCatchUpBody(0))
	assert.Equal(t, "You last checked in 1 day ago", FormatCatchUpBody(1))
	assert.Equal(t, "You last checked in 7 days ago", FormatCatchUpBody(7))
}
