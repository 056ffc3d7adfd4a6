package note

import (
	"strings"
	"testing"
	"time"
)

func sampleNote() *Note {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &Note{
		ID:       "qp-ab12",
		Title:    "Rust question mark",
		Type:     TypeFleeting,
		Created:  created,
		Updated:  created,
		Tags:     []string{"rust", "til"},
		Value:    70,
		HasValue: true,
		Verified: true,
		Summary:  "A short summary",
		Sources:  []Source{{URL: "https://example.com", Title: "Example"}},
		Links:    []Link{{ID: "qp-cd34", Type: "related"}},
		Custom:   map[string]Value{"score": IntValue(3)},
		Body:     "# Heading\n\nBody text.\n",
	}
}

func TestRenderParseRoundtrip(t *testing.T) {
	n := sampleNote()
	data, err := Render(n)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	got, err := Parse(data, "notes/qp-ab12-rust-question-mark.md")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got.ID != n.ID || got.Title != n.Title || got.Type != n.Type {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if !got.Created.Equal(n.Created) || !got.Updated.Equal(n.Updated) {
		t.Errorf("timestamp mismatch: created=%v updated=%v", got.Created, got.Updated)
	}
	if got.Value != 70 || !got.HasValue {
		t.Errorf("value mismatch: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "rust" {
		t.Errorf("tags mismatch: %+v", got.Tags)
	}
	if len(got.Links) != 1 || got.Links[0].ID != "qp-cd34" || got.Links[0].Type != "related" {
		t.Errorf("links mismatch: %+v", got.Links)
	}
	if got.Body != n.Body {
		t.Errorf("body mismatch: %q vs %q", got.Body, n.Body)
	}
	if v, ok := got.Custom["score"]; !ok || v.Int != 3 {
		t.Errorf("custom mismatch: %+v", got.Custom)
	}
}

func TestRenderKeyOrder(t *testing.T) {
	n := sampleNote()
	data, err := Render(n)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	s := string(data)
	order := []string{"id:", "title:", "type:", "created:", "updated:", "value:", "verified:", "tags:", "summary:", "sources:", "links:", "custom:"}
	last := -1
	for _, key := range order {
		idx := strings.Index(s, key)
		if idx == -1 {
			t.Fatalf("missing key %q in output:\n%s", key, s)
		}
		if idx < last {
			t.Errorf("key %q out of order", key)
		}
		last = idx
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	content := "---\nid: qp-1234\ntitle: X\ntype: bogus\ncreated: 2024-01-01T00:00:00Z\nupdated: 2024-01-01T00:00:00Z\n---\nbody"
	if _, err := Parse([]byte(content), "notes/x.md"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestParseRejectsUnknownKey(t *testing.T) {
	content := "---\nid: qp-1234\ntitle: X\ntype: fleeting\ncreated: 2024-01-01T00:00:00Z\nupdated: 2024-01-01T00:00:00Z\nbogus: 1\n---\nbody"
	if _, err := Parse([]byte(content), "notes/x.md"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestParseRejectsUpdatedBeforeCreated(t *testing.T) {
	content := "---\nid: qp-1234\ntitle: X\ntype: fleeting\ncreated: 2024-01-02T00:00:00Z\nupdated: 2024-01-01T00:00:00Z\n---\nbody"
	if _, err := Parse([]byte(content), "notes/x.md"); err == nil {
		t.Error("expected error when updated precedes created")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Rust question mark":    "rust-question-mark",
		"  Leading/Trailing  ":  "leading-trailing",
		"Multiple   spaces--ok": "multiple-spaces-ok",
		"":                      "untitled",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewIDWidensLength(t *testing.T) {
	id, err := NewID(4)
	if err != nil {
		t.Fatalf("NewID() error: %v", err)
	}
	if !IDPattern.MatchString(id) {
		t.Errorf("NewID() = %q does not match pattern", id)
	}
	longer, err := NewID(8)
	if err != nil {
		t.Fatalf("NewID() error: %v", err)
	}
	if len(longer) != len(idPrefix)+8 {
		t.Errorf("NewID(8) length = %d, want %d", len(longer), len(idPrefix)+8)
	}
}
