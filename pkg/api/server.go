// Package api serves the shared list over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/astromechza/shared-list/pkg/guard"
	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/store"
)

const (
	ListPath   = "/api/list"
	EventsPath = "/api/list/events"

	maxBodyBytes = 1 << 20
)

type Server struct {
	store store.Store
	guard *guard.Guard
	hub   *Hub
	now   func() time.Time

	// writeMu keeps publishes in the order the store committed them.
	writeMu sync.Mutex
}

func New(st store.Store, g *guard.Guard) *Server {
	return &Server{store: st, guard: g, hub: NewHub(), now: time.Now}
}

// Close ends every open change feed.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(s.requireAccess)
	protected.Methods(http.MethodGet).Path("/list").HandlerFunc(s.getList)
	protected.Methods(http.MethodPost).Path("/list").HandlerFunc(s.postList)
	protected.Methods(http.MethodGet).Path("/list/events").HandlerFunc(s.streamEvents)
	protected.Path("/list").Handler(methodNotAllowed(http.MethodGet, http.MethodPost))
	protected.Path("/list/events").Handler(methodNotAllowed(http.MethodGet))
	return r
}

func methodNotAllowed(allowed ...string) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Allow", strings.Join(allowed, ", "))
		writeJSON(writer, http.StatusMethodNotAllowed, errorBody{Error: "Method Not Allowed"})
	})
}

func accessLog(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, writer, request)
		slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
	})
}

func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !s.guard.VerifyRequest(request) {
			writeJSON(writer, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(writer, request)
	})
}

func (s *Server) health(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = writer.Write([]byte("OK\n"))
}

type errorBody struct {
	Error string `json:"error"`
}

type itemsBody struct {
	Items []list.Item `json:"items"`
}

func (s *Server) getList(writer http.ResponseWriter, request *http.Request) {
	doc, err := s.store.Fetch(request.Context())
	if err != nil {
		s.writeBackendError(writer, request, err)
		return
	}
	writeJSON(writer, http.StatusOK, itemsBody{Items: doc.Items})
}

func (s *Server) postList(writer http.ResponseWriter, request *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxBodyBytes)).Decode(&raw); err != nil {
		slog.Debug("failed to decode body", "err", err)
		writeJSON(writer, http.StatusBadRequest, errorBody{Error: "Invalid body"})
		return
	}

	// anything that isn't an object simply has no items field
	var payload struct {
		Items json.RawMessage `json:"items"`
	}
	_ = json.Unmarshal(raw, &payload)
	items, err := list.DecodeCandidates(payload.Items)
	if err != nil {
		slog.Debug("rejecting write", "err", err)
		writeJSON(writer, http.StatusBadRequest, errorBody{Error: "Invalid items"})
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.Replace(request.Context(), items); err != nil {
		s.writeBackendError(writer, request, err)
		return
	}
	stored, err := s.store.Fetch(request.Context())
	if err != nil {
		slog.Warn("failed to read back the written list", "err", err)
		stored = list.Document{ID: list.DocumentID, Items: items, UpdatedAt: s.now().UTC()}
	}
	s.hub.Publish(stored)
	writeJSON(writer, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) writeBackendError(writer http.ResponseWriter, request *http.Request, err error) {
	slog.Error("store request failed", "method", request.Method, "url", request.URL, "err", err)
	writeJSON(writer, http.StatusInternalServerError, errorBody{Error: "Backend connection failed: " + err.Error()})
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}
