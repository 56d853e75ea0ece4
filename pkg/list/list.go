// Package list holds the shared list model and the lenient decoding rules
// applied to anything a client sends or a backend returns.
package list

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DocumentID is the well-known identifier of the one shared document.
const DocumentID = "shared"

type Item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Document is the persisted record. Items are in display order.
type Document struct {
	ID        string    `json:"_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDocument returns an empty document stamped at the given time.
func NewDocument(now time.Time) Document {
	return Document{ID: DocumentID, Items: []Item{}, UpdatedAt: now.UTC()}
}

// NewItemID returns a time-ordered identifier. Ids are only unique by
// construction; nothing downstream checks them.
func NewItemID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Clone copies the slice so callers can't alias each other's state.
func Clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func ProgressOf(items []Item) Progress {
	p := Progress{Total: len(items)}
	for _, it := range items {
		if it.Done {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Done) / float64(p.Total) * 100))
	}
	return p
}
