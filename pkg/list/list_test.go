package list

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCandidates_RejectsNonArray(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `"items"`, `12`, `{"id":"a"}`} {
		t.Run(raw, func(t *testing.T) {
			_, err := DecodeCandidates(json.RawMessage(raw))
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestDecodeCandidates_Sanitizes(t *testing.T) {
	raw := `[
		{"id":"a","label":"milk","done":true,"extra":1},
		{"id":"b"},
		{"id":3,"label":"numeric id"},
		{"label":"no id"},
		null,
		"string",
		{"id":"c","label":42,"done":"yes"},
		{"id":"d","done":0},
		{"id":"e","done":{}}
	]`
	items, err := DecodeCandidates(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{ID: "a", Label: "milk", Done: true},
		{ID: "b", Label: "", Done: false},
		{ID: "c", Label: "", Done: true},
		{ID: "d", Label: "", Done: false},
		{ID: "e", Label: "", Done: true},
	}, items)
}

func TestDecodeCandidates_EmptyArray(t *testing.T) {
	items, err := DecodeCandidates(json.RawMessage(` [] `))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestNormalizeValue_NotASequence(t *testing.T) {
	assert.Equal(t, []Item{}, NormalizeValue(map[string]any{"id": "a"}))
	assert.Equal(t, []Item{}, NormalizeValue(nil))
	assert.Equal(t, []Item{{ID: "x"}}, NormalizeValue([]any{map[string]any{"id": "x"}}))
}

func TestProgressOf(t *testing.T) {
	assert.Equal(t, Progress{}, ProgressOf(nil))
	assert.Equal(t, Progress{Done: 1, Total: 3, Percent: 33}, ProgressOf([]Item{{Done: true}, {}, {}}))
	assert.Equal(t, Progress{Done: 2, Total: 3, Percent: 67}, ProgressOf([]Item{{Done: true}, {Done: true}, {}}))
}

func TestNewItemID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewItemID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewDocument(t *testing.T) {
	now := time.Date(2024, 2, 14, 10, 0, 0, 0, time.FixedZone("x", 3600))
	doc := NewDocument(now)
	assert.Equal(t, DocumentID, doc.ID)
	assert.Equal(t, []Item{}, doc.Items)
	assert.Equal(t, time.UTC, doc.UpdatedAt.Location())
}
