// Package store persists the single shared list document.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/astromechza/shared-list/pkg/list"
)

// ErrBackendUnavailable matches every failure of the underlying storage.
var ErrBackendUnavailable = errors.New("backend unavailable")

type Store interface {
	// Fetch returns the shared document, creating an empty one first if
	// none exists.
	Fetch(ctx context.Context) (list.Document, error)
	// Replace overwrites the whole item sequence. Items must already be
	// normalized.
	Replace(ctx context.Context, items []list.Item) error
	Close() error
}

// BackendError carries the underlying storage failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

func backendErr(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// Options apply to backends that need them.
type Options struct {
	// RemoteCredentials is a service account key file for remote stores.
	RemoteCredentials string
	// RemoteToken is an OAuth2 access token for remote stores.
	RemoteToken string
	Now         func() time.Time
}

// Open picks a backend from a dsn: "memory", "http(s)://..." for a remote
// document database, or "sqlite:<path>" / a bare path for sqlite.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	switch {
	case dsn == "memory":
		m := NewMemory()
		if opts.Now != nil {
			m.now = opts.Now
		}
		return m, nil
	case strings.HasPrefix(dsn, "http://"), strings.HasPrefix(dsn, "https://"):
		return NewRemote(ctx, RemoteConfig{
			DatabaseURL:     dsn,
			CredentialsFile: opts.RemoteCredentials,
			Token:           opts.RemoteToken,
			Now:             opts.Now,
		})
	case dsn == "", dsn == "sqlite:":
		return nil, fmt.Errorf("empty store dsn")
	default:
		s, err := OpenSQLite(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, err
		}
		if opts.Now != nil {
			s.now = opts.Now
		}
		return s, nil
	}
}
