package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astromechza/shared-list/pkg/list"
)

// Hub fans accepted writes out to change feed subscribers. A slow
// subscriber only ever sees the newest document.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan list.Document]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan list.Document]struct{})}
}

// Subscribe returns a channel of documents and a func to stop receiving.
// The channel is closed when the hub closes.
func (h *Hub) Subscribe() (<-chan list.Document, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan list.Document, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *Hub) Publish(doc list.Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- doc:
		default:
			// drop the stale one
			select {
			case <-ch:
			default:
			}
			ch <- doc
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

const eventsWriteWait = 10 * time.Second

// streamEvents upgrades to a websocket, sends the current document, then
// every document accepted afterwards. Messages from the client are ignored.
func (s *Server) streamEvents(writer http.ResponseWriter, request *http.Request) {
	// subscribe first so a write landing during the fetch is not missed
	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	current, err := s.store.Fetch(request.Context())
	if err != nil {
		s.writeBackendError(writer, request, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(doc list.Document) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
		if err := conn.WriteJSON(doc); err != nil {
			slog.Error("failed to write message", "err", err)
			return false
		}
		return true
	}

	if !send(current) {
		return
	}
	for {
		select {
		case doc, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
					time.Now().Add(time.Second))
				return
			}
			if !send(doc) {
				return
			}
		case <-gone:
			return
		}
	}
}
