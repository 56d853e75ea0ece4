package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/shared-list/pkg/list"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)}
}

// contract runs the behaviour every backend must share.
func contract(t *testing.T, open func(t *testing.T, now func() time.Time) Store) {
	ctx := context.Background()

	t.Run("fresh fetch creates an empty document once", func(t *testing.T) {
		clock := newClock()
		s := open(t, clock.now)

		first, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, list.DocumentID, first.ID)
		assert.NotNil(t, first.Items)
		assert.Empty(t, first.Items)
		assert.False(t, first.UpdatedAt.IsZero())

		second, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, second.Items)
		assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt), "second fetch must not recreate the document")
	})

	t.Run("replace then fetch round trips", func(t *testing.T) {
		s := open(t, newClock().now)
		items := []list.Item{
			{ID: "b", Label: "bread", Done: true},
			{ID: "a", Label: "", Done: false},
			{ID: "c", Label: "cheese"},
		}
		require.NoError(t, s.Replace(ctx, items))

		doc, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, items, doc.Items)
	})

	t.Run("replace overwrites wholesale", func(t *testing.T) {
		s := open(t, newClock().now)
		require.NoError(t, s.Replace(ctx, []list.Item{{ID: "a"}, {ID: "b"}}))
		require.NoError(t, s.Replace(ctx, []list.Item{{ID: "c", Label: "only"}}))

		doc, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []list.Item{{ID: "c", Label: "only"}}, doc.Items)
	})

	t.Run("replace with empty list", func(t *testing.T) {
		s := open(t, newClock().now)
		require.NoError(t, s.Replace(ctx, []list.Item{{ID: "a"}}))
		require.NoError(t, s.Replace(ctx, []list.Item{}))

		doc, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.NotNil(t, doc.Items)
		assert.Empty(t, doc.Items)
	})

	t.Run("replace stamps a fresh time", func(t *testing.T) {
		s := open(t, newClock().now)
		before, err := s.Fetch(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Replace(ctx, []list.Item{{ID: "a"}}))
		after, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	})
}

func TestMemory(t *testing.T) {
	contract(t, func(t *testing.T, now func() time.Time) Store {
		m := NewMemory()
		m.now = now
		return m
	})
}

func TestMemory_Fail(t *testing.T) {
	m := NewMemory()
	m.Fail = errors.New("disk on fire")

	_, err := m.Fetch(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "disk on fire")

	err = m.Replace(context.Background(), nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestBackendError(t *testing.T) {
	inner := errors.New("connection refused")
	err := backendErr("fetch", inner)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "fetch: connection refused", err.Error())
}

func TestOpen(t *testing.T) {
	s, err := Open(t.Context(), "memory", Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(t.Context(), "https://example.firebaseio.com", Options{RemoteToken: "tok"})
	require.NoError(t, err)
	assert.IsType(t, &Remote{}, s)

	s, err = Open(t.Context(), "sqlite:"+filepath.Join(t.TempDir(), "a.sqlite3"), Options{})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(t.Context(), "", Options{})
	require.Error(t, err)
}
