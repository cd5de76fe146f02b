package friend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var today = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		name   string
		friend Friend
		want   int
		wantOK bool
	}{
		{"due in four days", Friend{FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-12")}, 4, true},
		{"due today", Friend{FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-08")}, 0, true},
		{"overdue", Friend{FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-01")}, -7, true},
		{"no frequency", Friend{LastContactAt: ptr("2024-06-01")}, 0, false},
		{"zero frequency", Friend{FrequencyDays: ptr(0), LastContactAt: ptr("2024-06-01")}, 0, false},
		{"no last contact", Friend{FrequencyDays: ptr(7)}, 0, false},
		{"malformed", Friend{FrequencyDays: ptr(7), LastContactAt: ptr("last week")}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DaysRemaining(&tt.friend, today)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusForAndLabel(t *testing.T) {
	tests := []struct {
		days   int
		status CheckInStatus
		label  string
	}{
		{-3, StatusOverdue, "3 days overdue"},
		{0, StatusDueToday, "Check in today"},
		{1, StatusDueSoon, "1 days"},
		{3, StatusDueSoon, "3 days"},
		{4, StatusOnTrack, "4 days"},
	}
	for _, tt := range tests {
		status := StatusFor(tt.days)
		assert.Equal(t, tt.status, status, tt.days)
		assert.Equal(t, tt.label, StatusLabel(tt.days, status), tt.days)
	}
}

func TestSortByUrgency(t *testing.T) {
	friends := []*Friend{
		{ID: "relaxed", FrequencyDays: ptr(30), LastContactAt: ptr("2024-06-14")},
		{ID: "untracked-a"},
		{ID: "overdue", FrequencyDays: ptr(7), LastContactAt: ptr("2024-06-01")},
		{ID: "untracked-b", FrequencyDays: ptr(7)},
		{ID: "today", FrequencyDays: ptr(14), LastContactAt: ptr("2024-06-01")},
	}

	sorted := SortByUrgency(friends, today)
	require.Len(t, sorted, 5)

	ids := make([]string, 0, len(sorted))
	for _, u := range sorted {
		ids = append(ids, u.Friend.ID)
	}
	assert.Equal(t, []string{"overdue", "today", "relaxed", "untracked-a", "untracked-b"}, ids)
	assert.Equal(t, "7 days overdue", sorted[0].Label)
	assert.Equal(t, StatusDueToday, sorted[1].Status)
	assert.False(t, sorted[3].Tracked)
}

func TestFilterByCategory(t *testing.T) {
	friends := []*Friend{
		{ID: "a", Category: CategoryFamily},
		{ID: "b", Category: CategoryWork},
		{ID: "c", Category: CategoryFamily},
	}
	assert.Len(t, FilterByCategory(friends, nil), 3)

	family := CategoryFamily
	got := FilterByCategory(friends, &family)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestFirstNameAndParseCategory(t *testing.T) {
	f := Friend{Name: "John  Ronald Doe"}
	assert.Equal(t, "John", f.FirstName())

	c, ok := ParseCategory(" Partner ")
	assert.True(t, ok)
	assert.Equal(t, CategoryPartner, c)

	_, ok = ParseCategory("enemy")
	assert.False(t, ok)
}
