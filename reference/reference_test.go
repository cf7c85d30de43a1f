package reference

import (
	"encoding/json"
	"testing"
)

func TestParseFromObject(t *testing.T) {
	ref := Parse(map[string]any{"id": "1043", "type": "defect"})
	if ref == nil {
		t.Fatal("expected reference, got nil")
	}
	if ref.ID != "1043" || ref.Type != "defect" {
		t.Fatalf("unexpected reference: %+v", ref)
	}
}

func TestParseCopiesExistingReference(t *testing.T) {
	orig := New("1043", "defect")
	parsed := Parse(orig)
	if parsed == nil {
		t.Fatal("expected reference, got nil")
	}
	if parsed == orig {
		t.Fatal("expected a distinct instance")
	}
	if parsed.ID != orig.ID || parsed.Type != orig.Type {
		t.Fatalf("copy does not match original: %+v vs %+v", parsed, orig)
	}
}

func TestParseRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"empty object", map[string]any{}},
		{"missing type", map[string]any{"id": "1"}},
		{"missing id", map[string]any{"type": "defect"}},
		{"non-string type", map[string]any{"id": "1", "type": 7}},
		{"scalar", 42},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ref := Parse(tt.raw); ref != nil {
				t.Fatalf("expected nil, got %+v", ref)
			}
		})
	}
}

func TestParseMultiFromArray(t *testing.T) {
	m := ParseMulti([]any{
		map[string]any{"id": "1043", "type": "defect"},
		map[string]any{"id": "1033", "type": "defect"},
	})
	if m == nil {
		t.Fatal("expected multi reference, got nil")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 refs, got %d", m.Len())
	}
}

func TestParseMultiFailsOnFirstBadElement(t *testing.T) {
	m := ParseMulti([]any{
		map[string]any{"id": "1043", "type": "defect"},
		map[string]any{"id": "1033"}, // missing type
		map[string]any{"id": "1020", "type": "defect"},
	})
	if m != nil {
		t.Fatalf("expected nil for array with malformed element, got %+v", m)
	}
}

func TestParseMultiCopiesExisting(t *testing.T) {
	orig := NewMulti(New("1", "defect"), New("2", "defect"))
	parsed := ParseMulti(orig)
	if parsed == nil {
		t.Fatal("expected multi reference, got nil")
	}
	if parsed == orig {
		t.Fatal("expected a distinct instance")
	}
	parsed.Add(New("3", "defect"))
	if orig.Len() != 2 {
		t.Fatalf("mutation leaked into original: %d refs", orig.Len())
	}
}

func TestMultiReferenceJSONShape(t *testing.T) {
	m := ParseMulti([]any{
		map[string]any{"id": "1043", "type": "defect"},
		map[string]any{"id": "1033", "type": "defect"},
	})
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"total_count":2,"data":[{"id":"1043","type":"defect"},{"id":"1033","type":"defect"}]}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestAddChains(t *testing.T) {
	m := NewMulti().Add(New("1", "defect")).Add(New("2", "defect"))
	if m.Len() != 2 {
		t.Fatalf("expected 2 refs, got %d", m.Len())
	}
	if m.Add(nil).Len() != 2 {
		t.Fatal("nil ref should be ignored")
	}
}
