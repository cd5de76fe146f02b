package journal

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultAutoSaveDebounce = 500 * time.Millisecond
	justSavedDuration       = 1500 * time.Millisecond
)

// AutoSaver debounces content changes and saves the latest content once
// edits pause. Whitespace-only content is never saved, and content is saved
// at most once per Update.
type AutoSaver struct {
	save     func(content string)
	debounce time.Duration

	mu             sync.Mutex
	content        string
	dirty          bool
	debounceTimer  *time.Timer
	justSavedTimer *time.Timer
	justSaved      bool
	stopped        bool
}

func NewAutoSaver(save func(content string), debounce time.Duration) *AutoSaver {
	if debounce <= 0 {
		debounce = DefaultAutoSaveDebounce
	}
	return &AutoSaver{save: save, debounce: debounce}
}

// Update records new content and restarts the debounce timer.
func (a *AutoSaver) Update(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.content = content
	a.dirty = true
	if a.debounceTimer != nil {
		a.debounceTimer.Stop()
	}
	a.debounceTimer = time.AfterFunc(a.debounce, a.performSave)
}

// SaveNow cancels any pending debounce and saves immediately.
func (a *AutoSaver) SaveNow() {
	a.mu.Lock()
	if a.debounceTimer != nil {
		a.debounceTimer.Stop()
		a.debounceTimer = nil
	}
	a.mu.Unlock()
	a.performSave()
}

// JustSaved is true for a short while after each save.
func (a *AutoSaver) JustSaved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.justSaved
}

// Stop cancels all timers. Pending content is dropped.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.debounceTimer != nil {
		a.debounceTimer.Stop()
	}
	if a.justSavedTimer != nil {
		a.justSavedTimer.Stop()
	}
}

func (a *AutoSaver) performSave() {
	a.mu.Lock()
	content := a.content
	if a.stopped || !a.dirty || strings.TrimSpace(content) == "" {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	a.mu.Unlock()

	a.save(content)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.justSaved = true
	if a.justSavedTimer != nil {
		a.justSavedTimer.Stop()
	}
	a.justSavedTimer = time.AfterFunc(justSavedDuration, func() {
		a.mu.Lock()
		a.justSaved = false
		a.mu.Unlock()
	})
}
