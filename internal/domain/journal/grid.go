package journal

import (
	"math"
	"strings"
	"time"
)

const (
	gridGap        = 2
	gridMinColumns = 12
	gridMaxColumns = 25
)

// GridLayout is the column count and square cell size for a year grid.
type GridLayout struct {
	Columns  int
	CellSize int
}

// Width is the total grid width including gaps.
func (l GridLayout) Width() int {
	return l.Columns*l.CellSize + (l.Columns-1)*gridGap
}

// CalculateGridLayout packs totalDays cells into the available area. It tries
// every column count in [12, 25] and keeps the first one giving the largest
// cell; the cell size is floored to whole units.
func CalculateGridLayout(totalDays int, availableWidth, availableHeight float64) GridLayout {
	bestColumns := gridMinColumns
	bestCell := 0.0

	for cols := gridMinColumns; cols <= gridMaxColumns; cols++ {
		rows := int(math.Ceil(float64(totalDays) / float64(cols)))

		fromWidth := (availableWidth - float64(cols-1)*gridGap) / float64(cols)
		fromHeight := (availableHeight - float64(rows-1)*gridGap) / float64(rows)
		cell := math.Min(fromWidth, fromHeight)

		if cell > bestCell {
			bestCell = cell
			bestColumns = cols
		}
	}
	return GridLayout{Columns: bestColumns, CellSize: int(math.Floor(bestCell))}
}

type DotStatus string

const (
	DotToday            DotStatus = "today"
	DotFuture           DotStatus = "future"
	DotPastWithEntry    DotStatus = "past-with-entry"
	DotPastWithoutEntry DotStatus = "past-without-entry"
)

func DotStatusFor(date string, entries map[string]*Entry, now time.Time) DotStatus {
	if IsToday(date, now) {
		return DotToday
	}
	if !IsPastOrToday(date, now) {
		return DotFuture
	}
	if _, ok := entries[date]; ok {
		return DotPastWithEntry
	}
	return DotPastWithoutEntry
}

// palettes map dot statuses to the glyph drawn in chat for each scheme.
var palettes = map[ColorScheme]map[DotStatus]string{
	SchemeWarm: {
		DotToday: "🟥", DotFuture: "▫️", DotPastWithEntry: "🟧", DotPastWithoutEntry: "⬜",
	},
	SchemePastel: {
		DotToday: "🟦", DotFuture: "▫️", DotPastWithEntry: "🟪", DotPastWithoutEntry: "⬜",
	},
	SchemeContrast: {
		DotToday: "🟥", DotFuture: "▫️", DotPastWithEntry: "⬛", DotPastWithoutEntry: "⬜",
	},
}

// RenderYearGrid draws every day of year as a glyph, wrapped at layout.Columns.
func RenderYearGrid(year int, entries map[string]*Entry, now time.Time, layout GridLayout, scheme ColorScheme) string {
	palette, ok := palettes[scheme]
	if !ok {
		palette = palettes[DefaultColorScheme]
	}
	columns := layout.Columns
	if columns <= 0 {
		columns = gridMinColumns
	}

	var b strings.Builder
	for i, date := range GenerateYearDates(year) {
		if i > 0 && i%columns == 0 {
			b.WriteByte('\n')
		}
		b.WriteString(palette[DotStatusFor(date, entries, now)])
	}
	return b.String()
}
