package list

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when the top-level shape of a write is wrong.
// Individual malformed items never produce it; they are dropped.
var ErrInvalidInput = errors.New("invalid input")

// DecodeCandidates parses a raw JSON value that must be an array of items.
func DecodeCandidates(raw json.RawMessage) ([]Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: items must be an array", ErrInvalidInput)
	}
	var elements []any
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return Normalize(elements), nil
}

// Normalize keeps elements that are objects with a string id, defaults label
// to "" and coerces done with javascript truthiness. Unknown fields are
// dropped.
func Normalize(elements []any) []Item {
	out := make([]Item, 0, len(elements))
	for _, el := range elements {
		if it, ok := normalizeOne(el); ok {
			out = append(out, it)
		}
	}
	return out
}

// NormalizeValue is Normalize for a value that may not be a sequence at all,
// in which case the result is empty.
func NormalizeValue(v any) []Item {
	elements, ok := v.([]any)
	if !ok {
		return []Item{}
	}
	return Normalize(elements)
}

func normalizeOne(el any) (Item, bool) {
	m, ok := el.(map[string]any)
	if !ok {
		return Item{}, false
	}
	id, ok := m["id"].(string)
	if !ok {
		return Item{}, false
	}
	label, _ := m["label"].(string)
	return Item{ID: id, Label: label, Done: truthy(m["done"])}, true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
