// Package session keeps a local, editable copy of the shared list and
// flushes it back to the server once edits go quiet.
//
// A session starts Locked. Unlock fetches the list with an access code and
// moves it to Ready via Loading. Every mutation while Ready cancels the
// pending flush and schedules a new one, so a burst of edits becomes a single
// write of the whole list as it stands when the timer fires. The local copy
// is the source of truth: a failed flush is reported but never rolled back.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/astromechza/shared-list/pkg/client"
	"github.com/astromechza/shared-list/pkg/list"
)

const (
	DefaultDebounce     = 600 * time.Millisecond
	DefaultFlushTimeout = 15 * time.Second
)

const (
	MessageAccessDenied = "Access denied. Check your code."
	MessageLoadFailed   = "Could not load the list."
	MessageSaveFailed   = "Could not save changes."
)

var (
	ErrEmptyCredential = errors.New("empty access code")
	ErrEmptyLabel      = errors.New("empty label")
	ErrLocked          = errors.New("list is not loaded")
	ErrClosed          = errors.New("session closed")
	ErrSuperseded      = errors.New("superseded by a newer unlock")
)

type State int

const (
	Locked State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Remote is the server side of a session. A rejected code must be reported
// with an error matching client.ErrUnauthorized.
type Remote interface {
	Fetch(ctx context.Context, code string) ([]list.Item, error)
	Replace(ctx context.Context, code string, items []list.Item) error
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

// WithAfterFunc replaces the timer source, mostly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Session) { s.afterFunc = fn }
}

// WithNotify registers a callback run after every observable change. It is
// called without the session lock held and may call Snapshot.
func WithNotify(fn func()) Option {
	return func(s *Session) { s.notify = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

func WithFlushTimeout(d time.Duration) Option {
	return func(s *Session) { s.flushTimeout = d }
}

type Session struct {
	remote       Remote
	debounce     time.Duration
	flushTimeout time.Duration
	afterFunc    AfterFunc
	notify       func()
	newID        func() string

	mu      sync.Mutex
	state   State
	code    string
	items   []list.Item
	pending PendingDelete
	message string
	saving  int
	timer   Timer
	// gen invalidates timers and loads that were superseded.
	gen    uint64
	closed bool
}

func New(remote Remote, opts ...Option) *Session {
	s := &Session{
		remote:       remote,
		debounce:     DefaultDebounce,
		flushTimeout: DefaultFlushTimeout,
		afterFunc:    realAfterFunc,
		notify:       func() {},
		newID:        list.NewItemID,
		items:        []list.Item{},
		pending:      NoPending{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unlock loads the list with the given code.
func (s *Session) Unlock(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCredential
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelTimerLocked()
	gen := s.gen
	s.state = Loading
	s.code = code
	s.message = ""
	s.mu.Unlock()
	s.notify()

	items, err := s.remote.Fetch(ctx, code)

	s.mu.Lock()
	if gen != s.gen {
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return ErrClosed
		}
		return ErrSuperseded
	}
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			s.code = ""
			s.message = MessageAccessDenied
		} else {
			s.message = MessageLoadFailed
		}
		s.items = []list.Item{}
		s.state = Locked
		s.mu.Unlock()
		slog.Debug("failed to load list", "err", err)
		s.notify()
		return err
	}
	if items == nil {
		items = []list.Item{}
	}
	s.items = items
	s.pending = NoPending{}
	s.state = Ready
	s.mu.Unlock()
	s.notify()
	return nil
}

// Add prepends a new item and returns it.
func (s *Session) Add(label string) (list.Item, error) {
	label = strings.TrimSpace(label)
	var item list.Item
	err := s.mutate(func() bool {
		if label == "" {
			return false
		}
		item = list.Item{ID: s.newID(), Label: label}
		s.items = append([]list.Item{item}, s.items...)
		return true
	})
	if err == nil && label == "" {
		return list.Item{}, ErrEmptyLabel
	}
	return item, err
}

// Toggle flips done on the matching item. Unknown ids are ignored.
func (s *Session) Toggle(id string) error {
	return s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items[i].Done = !s.items[i].Done
				return true
			}
		}
		return false
	})
}

// EditLabel replaces the label on the matching item. Unknown ids are ignored.
func (s *Session) EditLabel(id, label string) error {
	return s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items[i].Label = label
				return true
			}
		}
		return false
	})
}

// mutate runs fn under the lock with a private copy of the items, so
// snapshots handed out earlier never change. A true result schedules a flush.
func (s *Session) mutate(fn func() bool) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrLocked
	}
	s.items = list.Clone(s.items)
	changed := fn()
	if changed {
		s.scheduleLocked()
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

func (s *Session) scheduleLocked() {
	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.afterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Session) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.state != Ready {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	code, items := s.beginFlushLocked()
	s.mu.Unlock()
	s.notify()

	ctx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
	defer cancel()
	s.finishFlush(s.remote.Replace(ctx, code, items))
}

// Flush sends the current list now, dropping any scheduled flush.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrLocked
	}
	s.cancelTimerLocked()
	code, items := s.beginFlushLocked()
	s.mu.Unlock()
	s.notify()

	err := s.remote.Replace(ctx, code, items)
	s.finishFlush(err)
	return err
}

func (s *Session) beginFlushLocked() (string, []list.Item) {
	s.saving++
	s.message = ""
	return s.code, list.Clone(s.items)
}

func (s *Session) finishFlush(err error) {
	s.mu.Lock()
	s.saving--
	if err != nil {
		slog.Debug("failed to flush list", "err", err)
		if errors.Is(err, client.ErrUnauthorized) {
			s.cancelTimerLocked()
			s.code = ""
			s.state = Locked
			s.message = MessageAccessDenied
		} else {
			s.message = MessageSaveFailed
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Close drops any scheduled flush. A flush already in flight still completes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelTimerLocked()
}

type Snapshot struct {
	State          State
	Items          []list.Item
	Pending        PendingDelete
	Message        string
	Saving         bool
	FlushScheduled bool
	HasCredential  bool
	Progress       list.Progress
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.state,
		Items:          list.Clone(s.items),
		Pending:        s.pending,
		Message:        s.message,
		Saving:         s.saving > 0,
		FlushScheduled: s.timer != nil,
		HasCredential:  s.code != "",
		Progress:       list.ProgressOf(s.items),
	}
}
