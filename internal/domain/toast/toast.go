// Package toast holds the short-lived confirmation shown after an action,
// optionally with an undo. It is never persisted.
package toast

import (
	"context"
	"sync"
)

// UndoFunc reverts the action a toast announced.
type UndoFunc func(ctx context.Context) error

// State is a snapshot of the toast.
type State struct {
	Visible bool
	Message string
	ToastID int
	HasUndo bool
}

type Store struct {
	mu      sync.Mutex
	visible bool
	message string
	undo    UndoFunc
	toastID int
}

func New() *Store {
	return &Store{}
}

// Show replaces any visible toast and returns the new toast's id.
func (s *Store) Show(message string, undo UndoFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.message = message
	s.undo = undo
	s.toastID++
	return s.toastID
}

func (s *Store) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hideLocked()
}

func (s *Store) hideLocked() {
	s.visible = false
	s.message = ""
	s.undo = nil
}

func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Visible: s.visible, Message: s.message, ToastID: s.toastID, HasUndo: s.undo != nil}
}

// Undo runs the undo action of toast id and hides it. It reports false when
// id is no longer the visible toast or has no undo action.
func (s *Store) Undo(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	if !s.visible || s.toastID != id || s.undo == nil {
		s.mu.Unlock()
		return false, nil
	}
	undo := s.undo
	s.hideLocked()
	s.mu.Unlock()

	return true, undo(ctx)
}
