package friend

import (
	"errors"
	"strings"
	"time"
)

var ErrFriendNotFound = errors.New("friend not found")

// Category groups friends by relationship.
type Category string

const (
	CategoryFriend  Category = "friend"
	CategoryFamily  Category = "family"
	CategoryWork    Category = "work"
	CategoryPartner Category = "partner"
	CategoryFlirt   Category = "flirt"
)

// RelationshipLabels maps each category to its display label.
var RelationshipLabels = map[Category]string{
	CategoryFriend:  "Friend",
	CategoryFamily:  "Family",
	CategoryWork:    "Work",
	CategoryPartner: "Partner",
	CategoryFlirt:   "Flirt",
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	_, ok := RelationshipLabels[c]
	return c, ok
}

// FrequencyOption is one of the check-in cadences offered when adding a friend.
type FrequencyOption struct {
	Days  int
	Label string
}

var FrequencyOptions = []FrequencyOption{
	{Days: 7, Label: "Weekly"},
	{Days: 14, Label: "2 Weeks"},
	{Days: 30, Label: "Monthly"},
	{Days: 90, Label: "Quarterly"},
}

// Friend is a person the account owner wants to keep in touch with.
// Birthday is "YYYY-MM-DD", or "MM-DD" when the year is unknown.
type Friend struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PhotoURL      *string   `json:"photoUrl,omitempty"`
	Birthday      *string   `json:"birthday,omitempty"`
	FrequencyDays *int      `json:"frequencyDays,omitempty"`
	LastContactAt *string   `json:"lastContactAt,omitempty"`
	Category      Category  `json:"category"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewFriend carries the caller-supplied fields of a friend.
type NewFriend struct {
	Name          string
	PhotoURL      *string
	Birthday      *string
	FrequencyDays *int
	LastContactAt *string
	Category      Category
}

// FirstName is the first whitespace-separated token of the name.
func (f *Friend) FirstName() string {
	fields := strings.Fields(f.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// HasBirthday reports whether a non-empty birthday is set.
func (f *Friend) HasBirthday() bool {
	return f.Birthday != nil && *f.Birthday != ""
}

// HasFrequency reports whether a non-zero check-in frequency is set.
func (f *Friend) HasFrequency() bool {
	return f.FrequencyDays != nil && *f.FrequencyDays != 0
}

// HasLastContact reports whether a non-empty last contact date is set.
func (f *Friend) HasLastContact() bool {
	return f.LastContactAt != nil && *f.LastContactAt != ""
}

// Frequency returns the check-in frequency, or 0 when unset.
func (f *Friend) Frequency() int {
	if f.FrequencyDays == nil {
		return 0
	}
	return *f.FrequencyDays
}
