package store

import (
	"context"
	"sync"
	"time"

	"github.com/astromechza/shared-list/pkg/list"
)

// Memory keeps the document in process. Used by tests and --store memory.
type Memory struct {
	mu  sync.Mutex
	doc *list.Document
	now func() time.Time

	// Fail, when set, is returned from every operation as a backend error.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Fetch(ctx context.Context) (list.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return list.Document{}, backendErr("fetch", m.Fail)
	}
	if m.doc == nil {
		d := list.NewDocument(m.now())
		m.doc = &d
	}
	out := *m.doc
	out.Items = list.Clone(m.doc.Items)
	return out, nil
}

func (m *Memory) Replace(ctx context.Context, items []list.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return backendErr("replace", m.Fail)
	}
	d := list.NewDocument(m.now())
	d.Items = list.Clone(items)
	m.doc = &d
	return nil
}

func (m *Memory) Close() error {
	return nil
}
