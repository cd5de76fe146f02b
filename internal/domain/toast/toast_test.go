package toast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowIncrementsIDAndReplaces(t *testing.T) {
	s := New()
	first := s.Show("Checked in with John", nil)
	second := s.Show("Checked in with Jane", func(context.Context) error { return nil })

	assert.Equal(t, first+1, second)
	st := s.Current()
	assert.True(t, st.Visible)
	assert.Equal(t, "Checked in with Jane", st.Message)
	assert.True(t, st.HasUndo)

	s.Hide()
	st = s.Current()
	assert.False(t, st.Visible)
	assert.Empty(t, st.Message)
	assert.Equal(t, second, st.ToastID)
}

func TestUndoRunsOnceForVisibleToast(t *testing.T) {
	s := New()
	calls := 0
	stale := s.Show("old", func(context.Context) error { calls++; return nil })
	id := s.Show("new", func(context.Context) error { calls += 10; return nil })

	ok, err := s.Undo(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Undo(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, calls)

	ok, _ = s.Undo(context.Background(), id)
	assert.False(t, ok)
	assert.Equal(t, 10, calls)
}

func TestUndoPropagatesError(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	id := s.Show("x", func(context.Context) error { return boom })
	ok, err := s.Undo(context.Background(), id)
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}
