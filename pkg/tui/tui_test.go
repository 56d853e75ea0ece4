package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/shared-list/pkg/client"
	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/session"
)

type memRemote struct {
	mu       sync.Mutex
	items    []list.Item
	replaces int
}

func (r *memRemote) Fetch(_ context.Context, code string) ([]list.Item, error) {
	if code != "131023" {
		return nil, client.ErrUnauthorized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return list.Clone(r.items), nil
}

func (r *memRemote) Replace(_ context.Context, code string, items []list.Item) error {
	if code != "131023" {
		return client.ErrUnauthorized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = list.Clone(items)
	r.replaces++
	return nil
}

func newModel(t *testing.T, remote *memRemote, unlock bool) (Model, *session.Session) {
	t.Helper()
	notes := NewNotifier()
	s := session.New(remote, session.WithDebounce(time.Hour), session.WithNotify(notes.Notify))
	t.Cleanup(s.Close)
	if unlock {
		require.NoError(t, s.Unlock(context.Background(), "131023"))
	}
	m := New(context.Background(), s, notes, "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), s
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestUnlockScreen(t *testing.T) {
	m, s := newModel(t, &memRemote{items: []list.Item{{ID: "a", Label: "milk"}}}, false)
	assert.Contains(t, m.View(), "Shared list")

	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Enter the access code")

	m, cmd = press(t, m, "1", "3", "1", "0", "2", "3", "enter")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.Equal(t, session.Ready, s.Snapshot().State)
	assert.Contains(t, m.View(), "milk")
	assert.Contains(t, m.View(), "0/1")
}

func TestUnlockScreen_WrongCode(t *testing.T) {
	m, _ := newModel(t, &memRemote{}, false)
	m, cmd := press(t, m, "x", "enter")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Contains(t, m.View(), session.MessageAccessDenied)
	assert.True(t, m.input.Focused())
}

func TestAddToggleEdit(t *testing.T) {
	m, s := newModel(t, &memRemote{items: []list.Item{{ID: "a", Label: "bread"}}}, true)

	m, _ = press(t, m, "a", "m", "i", "l", "k", "enter")
	items := s.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "milk", items[0].Label)
	assert.Contains(t, m.View(), "Unsaved changes")

	m, _ = press(t, m, " ")
	assert.True(t, s.Snapshot().Items[0].Done)

	m, _ = press(t, m, "e", "!", "enter")
	assert.Equal(t, "milk!", s.Snapshot().Items[0].Label)

	m, _ = press(t, m, "a", "enter")
	assert.Contains(t, m.View(), "Label cannot be empty")
	m, _ = press(t, m, "esc")
	assert.Len(t, s.Snapshot().Items, 2)
	assert.NotContains(t, m.View(), "Label cannot be empty")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	remote := &memRemote{items: []list.Item{{ID: "a", Label: "bread"}, {ID: "b", Label: "jam"}}}
	m, s := newModel(t, remote, true)

	m, _ = press(t, m, "d")
	assert.Equal(t, session.Pending{ID: "a"}, s.Snapshot().Pending)
	assert.Contains(t, m.View(), "delete? y/n")

	m, _ = press(t, m, "n")
	assert.Len(t, s.Snapshot().Items, 2)
	assert.Equal(t, session.NoPending{}, s.Snapshot().Pending)

	m, _ = press(t, m, "d", "y")
	assert.Equal(t, []list.Item{{ID: "b", Label: "jam"}}, s.Snapshot().Items)
	assert.NotContains(t, m.View(), "bread")
}

func TestQuitFlushes(t *testing.T) {
	remote := &memRemote{}
	m, s := newModel(t, remote, true)
	m, _ = press(t, m, "a", "x", "enter")
	require.True(t, s.Snapshot().FlushScheduled)

	_, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.replaces)
	assert.Equal(t, "x", remote.items[0].Label)
}

func TestNotifierWait(t *testing.T) {
	notes := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	notes.Notify()
	notes.Notify()
	assert.Equal(t, refreshMsg{}, notes.wait(ctx)())

	got := make(chan tea.Msg, 1)
	go func() { got <- notes.wait(ctx)() }()
	cancel()
	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after the context ended")
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[░░░░] 0/0 0%", ProgressBar(list.Progress{}, 4))
	assert.Equal(t, "[██░░] 1/2 50%", ProgressBar(list.Progress{Done: 1, Total: 2, Percent: 50}, 4))
}
