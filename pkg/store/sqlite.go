package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/automerge/automerge-go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/shared-list/pkg/list"
)

// DefaultHistoryLimit is how many changes a stored doc may carry before the
// next replace starts a fresh one.
const DefaultHistoryLimit = 500

// SQLite stores the document as a base64 encoded automerge doc. Every
// replace is one change on that doc, so the row keeps its own recent
// history, up to historyLimit changes.
type SQLite struct {
	database     *sql.DB
	now          func() time.Time
	historyLimit int
}

func OpenSQLite(path string) (*SQLite, error) {
	slog.Info("Opening database", "path", path)
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path))
	if err != nil {
		return nil, backendErr("open", err)
	}
	s := &SQLite{database: db, now: time.Now, historyLimit: DefaultHistoryLimit}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	if _, err := s.database.Exec(
		`CREATE TABLE IF NOT EXISTS lists (
		id text not null primary key,
		content text not null,
		updated_at text not null
		)`,
	); err != nil {
		return backendErr("init", err)
	}
	slog.Info("Ensured initial tables exist")
	return nil
}

func (s *SQLite) Close() error {
	return s.database.Close()
}

func (s *SQLite) Fetch(ctx context.Context) (list.Document, error) {
	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	defer rollback(tx)

	doc, found, err := loadDoc(ctx, tx)
	if err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	if found {
		return documentFrom(doc), nil
	}

	created := list.NewDocument(s.now())
	doc = automerge.New()
	if err := writeDoc(doc, created, "create"); err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	if _, err := tx.ExecContext(
		ctx, `INSERT OR IGNORE INTO lists (id, content, updated_at) VALUES (?, ?, ?)`,
		list.DocumentID, base64.StdEncoding.EncodeToString(doc.Save()), formatTime(created.UpdatedAt),
	); err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	if err := tx.Commit(); err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	slog.Info("created shared document", "id", list.DocumentID)
	return created, nil
}

func (s *SQLite) Replace(ctx context.Context, items []list.Item) error {
	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return backendErr("replace", err)
	}
	defer rollback(tx)

	doc, found, err := loadDoc(ctx, tx)
	if err != nil {
		var decodeErr *decodeError
		if !errors.As(err, &decodeErr) {
			return backendErr("replace", err)
		}
		slog.Warn("stored document unreadable, starting a fresh one", "err", err)
		found = false
	}
	if found && s.historyLimit > 0 {
		if changes, err := doc.Changes(); err == nil && len(changes) >= s.historyLimit {
			slog.Info("compacting document history", "changes", len(changes))
			found = false
		}
	}
	if !found {
		doc = automerge.New()
	}

	next := list.NewDocument(s.now())
	next.Items = items
	if err := writeDoc(doc, next, "replace"); err != nil {
		return backendErr("replace", err)
	}
	if _, err := tx.ExecContext(
		ctx, `INSERT INTO lists (id, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		list.DocumentID, base64.StdEncoding.EncodeToString(doc.Save()), formatTime(next.UpdatedAt),
	); err != nil {
		return backendErr("replace", err)
	}
	if err := tx.Commit(); err != nil {
		return backendErr("replace", err)
	}
	slog.Debug("replaced shared document", "items", len(items), "heads", doc.Heads())
	return nil
}

// Automerge returns the stored doc with its full change history, or nil when
// nothing has been stored yet.
func (s *SQLite) Automerge(ctx context.Context) (*automerge.Doc, error) {
	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, backendErr("load", err)
	}
	defer rollback(tx)
	doc, found, err := loadDoc(ctx, tx)
	if err != nil {
		return nil, backendErr("load", err)
	}
	if !found {
		return nil, nil
	}
	return doc, nil
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "failed to decode stored document: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func loadDoc(ctx context.Context, tx *sql.Tx) (*automerge.Doc, bool, error) {
	var rawContent string
	if err := tx.QueryRowContext(
		ctx, `SELECT content FROM lists WHERE id = ?`, list.DocumentID,
	).Scan(&rawContent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(rawContent)
	if err != nil {
		return nil, false, &decodeError{err}
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, false, &decodeError{err}
	}
	return doc, true, nil
}

func writeDoc(doc *automerge.Doc, d list.Document, message string) error {
	stored := make([]map[string]any, 0, len(d.Items))
	for _, it := range d.Items {
		stored = append(stored, map[string]any{"id": it.ID, "label": it.Label, "done": it.Done})
	}
	if err := doc.Path("_id").Set(list.DocumentID); err != nil {
		return fmt.Errorf("failed to set id: %w", err)
	}
	if err := doc.Path("items").Set(stored); err != nil {
		return fmt.Errorf("failed to set items: %w", err)
	}
	if err := doc.Path("updatedAt").Set(formatTime(d.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to set timestamp: %w", err)
	}
	if _, err := doc.Commit(message); err != nil {
		// Save commits anything pending; only the message is lost
		slog.Debug("failed to commit doc", "message", message, "err", err)
	}
	return nil
}

// documentFrom reads whatever the doc holds. A non-list items value reads as
// an empty list.
func documentFrom(doc *automerge.Doc) list.Document {
	out := list.Document{ID: list.DocumentID, Items: []list.Item{}}
	if v, err := doc.Path("items").Get(); err == nil && v != nil {
		out.Items = list.NormalizeValue(v.Interface())
	}
	if v, err := doc.Path("updatedAt").Get(); err == nil && v != nil {
		if s, ok := v.Interface().(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				out.UpdatedAt = t
			}
		}
	}
	return out
}

// DocumentAt decodes the list as it was at a given change.
func DocumentAt(doc *automerge.Doc, hash automerge.ChangeHash) (list.Document, error) {
	fork, err := doc.Fork(hash)
	if err != nil {
		return list.Document{}, fmt.Errorf("failed to checkout %s: %w", hash, err)
	}
	return documentFrom(fork), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("failed to rollback", "err", err)
	}
}
