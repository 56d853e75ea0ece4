// Package tui is a terminal editor for the shared list built on a session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	blist "github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/session"
)

// Notifier wakes the program when the session changes. Pass its Notify
// method to session.WithNotify. Wakeups coalesce so Notify never blocks.
type Notifier chan struct{}

func NewNotifier() Notifier {
	return make(Notifier, 1)
}

func (n Notifier) Notify() {
	select {
	case n <- struct{}{}:
	default:
	}
}

// wait returns nil once ctx ends so no goroutine outlives the program.
func (n Notifier) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-n:
			return refreshMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

type refreshMsg struct{}

type unlockedMsg struct {
	err error
}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
)

type row struct {
	item    list.Item
	pending bool
}

func (r row) FilterValue() string { return r.item.Label }

type rowDelegate struct{}

func (d rowDelegate) Height() int                                { return 1 }
func (d rowDelegate) Spacing() int                               { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *blist.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m blist.Model, index int, item blist.Item) {
	r, _ := item.(row)
	line := ItemLine(r.item)
	if r.pending {
		line += " " + ErrorStyle.Render("delete? y/n")
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

var (
	addKey     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editKey    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	toggleKey  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	deleteKey  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	reloadKey  = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload"))
	confirmKey = key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm"))
	cancelKey  = key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel"))
	quitKey    = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
)

type Model struct {
	ctx     context.Context
	session *session.Session
	notes   Notifier

	code     string
	snap     session.Snapshot
	list     blist.Model
	input    textinput.Model
	mode     mode
	editID   string
	inputErr string
}

// New builds the model. A non-empty code is used to unlock straight away.
func New(ctx context.Context, s *session.Session, notes Notifier, code string) Model {
	l := blist.New(nil, rowDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("item", "items")
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.KeyMap.Quit.SetEnabled(false)
	extra := func() []key.Binding {
		return []key.Binding{toggleKey, addKey, editKey, deleteKey, reloadKey}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := Model{
		ctx:     ctx,
		session: s,
		notes:   notes,
		code:    strings.TrimSpace(code),
		list:    l,
		input:   ti,
	}
	m.refresh()
	if m.snap.State != session.Ready {
		m.focusCode()
	}
	return m
}

// Run drives the editor until the user quits or ctx is cancelled. Pending
// edits are flushed on quit.
func Run(ctx context.Context, s *session.Session, notes Notifier, code string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(New(ctx, s, notes, code), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.notes.wait(m.ctx)}
	if m.code != "" {
		cmds = append(cmds, m.unlock(m.code))
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func (m Model) unlock(code string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return unlockedMsg{err: s.Unlock(ctx, code)}
	}
}

func (m Model) quit() tea.Cmd {
	s, ctx, scheduled := m.session, m.ctx, m.snap.FlushScheduled
	return func() tea.Msg {
		if scheduled {
			_ = s.Flush(ctx)
		}
		s.Close()
		return tea.QuitMsg{}
	}
}

func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	pendingID, _ := session.PendingID(m.snap.Pending)
	rows := make([]blist.Item, 0, len(m.snap.Items))
	for _, it := range m.snap.Items {
		rows = append(rows, row{item: it, pending: it.ID == pendingID})
	}
	m.list.SetItems(rows)
}

func (m *Model) focusCode() {
	m.input.SetValue("")
	m.input.Placeholder = "Access code"
	m.input.EchoMode = textinput.EchoPassword
	m.input.Focus()
}

func (m *Model) focusLabel(placeholder, value string) {
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Placeholder = placeholder
	m.input.EchoMode = textinput.EchoNormal
	m.inputErr = ""
	m.input.Focus()
}

func (m *Model) blurInput() {
	m.mode = modeBrowse
	m.editID = ""
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Blur()
}

func (m Model) selected() (list.Item, bool) {
	r, ok := m.list.SelectedItem().(row)
	return r.item, ok
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		wasReady := m.snap.State == session.Ready
		m.refresh()
		if wasReady && m.snap.State != session.Ready {
			m.blurInput()
			m.focusCode()
		}
		return m, m.notes.wait(m.ctx)
	case unlockedMsg:
		m.refresh()
		switch {
		case msg.err == nil:
			m.blurInput()
		case errors.Is(msg.err, session.ErrSuperseded):
		default:
			m.focusCode()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		m.input.Width = msg.Width - 8
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) && (msg.String() == "ctrl+c" || m.mode == modeBrowse && m.snap.State != session.Locked) {
			return m, m.quit()
		}
		switch {
		case m.snap.State == session.Locked:
			return m.updateLocked(msg)
		case m.snap.State == session.Loading:
			return m, nil
		case m.mode == modeAdd || m.mode == modeEdit:
			return m.updateInput(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) updateLocked(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		code := strings.TrimSpace(m.input.Value())
		if code == "" {
			m.inputErr = "Enter the access code"
			return m, nil
		}
		m.inputErr = ""
		m.code = code
		m.input.Blur()
		return m, m.unlock(code)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.blurInput()
		return m, nil
	case tea.KeyEnter:
		label := strings.TrimSpace(m.input.Value())
		if label == "" {
			m.inputErr = "Label cannot be empty"
			return m, nil
		}
		var err error
		adding := m.mode == modeAdd
		if adding {
			_, err = m.session.Add(label)
		} else {
			err = m.session.EditLabel(m.editID, label)
		}
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.blurInput()
		m.refresh()
		if adding {
			m.list.Select(0)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if _, pending := m.snap.Pending.(session.Pending); pending {
		switch {
		case key.Matches(msg, confirmKey):
			_, _ = m.session.ConfirmRemove()
			m.refresh()
			return m, nil
		case key.Matches(msg, cancelKey):
			m.session.CancelRemove()
			m.refresh()
			return m, nil
		}
	}
	switch {
	case key.Matches(msg, toggleKey):
		if it, ok := m.selected(); ok {
			_ = m.session.Toggle(it.ID)
			m.refresh()
		}
		return m, nil
	case key.Matches(msg, addKey):
		m.mode = modeAdd
		m.focusLabel("New item...", "")
		return m, textinput.Blink
	case key.Matches(msg, editKey):
		if it, ok := m.selected(); ok {
			m.mode = modeEdit
			m.editID = it.ID
			m.focusLabel("Edit item...", it.Label)
			return m, textinput.Blink
		}
		return m, nil
	case key.Matches(msg, deleteKey):
		if it, ok := m.selected(); ok {
			_ = m.session.RequestRemove(it.ID)
			m.refresh()
		}
		return m, nil
	case key.Matches(msg, reloadKey):
		if m.code != "" {
			return m, m.unlock(m.code)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.snap.State != session.Ready {
		lines := []string{TitleStyle.Render("Shared list")}
		if m.snap.State == session.Loading {
			lines = append(lines, MutedStyle.Render("Loading..."))
			return Panel(lines...)
		}
		if m.snap.Message != "" {
			lines = append(lines, ErrorStyle.Render(m.snap.Message))
		}
		if m.inputErr != "" {
			lines = append(lines, ErrorStyle.Render(m.inputErr))
		}
		lines = append(lines, m.input.View(), helpStyle.Render("enter unlock • ctrl+c quit"))
		return Panel(lines...)
	}

	header := fmt.Sprintf("%s   %s", TitleStyle.Render("Shared list"), AccentStyle.Render(ProgressBar(m.snap.Progress, 20)))
	lines := []string{header, m.list.View()}
	if m.mode == modeAdd || m.mode == modeEdit {
		title := "Add item"
		if m.mode == modeEdit {
			title = "Edit item"
		}
		if m.inputErr != "" {
			title += " " + ErrorStyle.Render(m.inputErr)
		}
		lines = append(lines, Panel(title, m.input.View()))
	}
	switch {
	case m.snap.Saving:
		lines = append(lines, PendingStyle.Render("Saving..."))
	case m.snap.Message != "":
		lines = append(lines, ErrorStyle.Render(m.snap.Message))
	case m.snap.FlushScheduled:
		lines = append(lines, MutedStyle.Render("Unsaved changes"))
	}
	return Panel(lines...)
}
