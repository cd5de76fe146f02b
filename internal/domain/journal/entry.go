package journal

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEntryNotFound      = errors.New("journal entry not found")
	ErrUnknownColorScheme = errors.New("unknown journal color scheme")
)

// Entry is one day's journal text. Entries are keyed by Date (YYYY-MM-DD).
type Entry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository persists one account's journal.
type Repository interface {
	Get(ctx context.Context, date string) (*Entry, error)
	// Upsert creates the entry for date or replaces its content, keeping the
	// original ID and CreatedAt.
	Upsert(ctx context.Context, date, content string) (*Entry, error)
	Delete(ctx context.Context, date string) error
	Has(ctx context.Context, date string) (bool, error)
	Entries(ctx context.Context) (map[string]*Entry, error)
}

// ColorScheme selects the palette of the year grid dots.
type ColorScheme string

const (
	SchemeWarm     ColorScheme = "A"
	SchemePastel   ColorScheme = "B"
	SchemeContrast ColorScheme = "C"

	DefaultColorScheme = SchemeWarm
)

var ColorSchemeLabels = map[ColorScheme]string{
	SchemeWarm:     "Warm",
	SchemePastel:   "Pastel",
	SchemeContrast: "Contrast",
}

// ParseColorScheme accepts a scheme key ("A") or its label ("pastel").
func ParseColorScheme(s string) (ColorScheme, error) {
	for scheme, label := range ColorSchemeLabels {
		if strings.EqualFold(string(scheme), s) || strings.EqualFold(label, s) {
			return scheme, nil
		}
	}
	return "", ErrUnknownColorScheme
}

// SettingsRepository persists one account's journal preferences.
type SettingsRepository interface {
	ColorScheme(ctx context.Context) (ColorScheme, error)
	SetColorScheme(ctx context.Context, scheme ColorScheme) error
}
