// Package testutil provides shared test fixtures for building temporary
// qipu stores, modeled on the teacher's internal/testutil/fixtures.go
// (there, maps shaped like Linear API responses; here, notes and links
// shaped like qipu's domain). No test in this module imports it: each
// package's tests build their own temp store.
package testutil

import (
	"testing"
	"time"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/store"
)

// OpenStore initializes a fresh store in a t.TempDir() and closes it on
// test cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Init(t.TempDir())
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NoteOpt mutates a note before it's created, for fixtures that need a
// tag, value, or custom field beyond FixtureNote's defaults.
type NoteOpt func(*note.Note)

// WithValue sets an explicit 0-100 value.
func WithValue(v int) NoteOpt {
	return func(n *note.Note) { n.HasValue = true; n.Value = v }
}

// WithTags sets the note's tags.
func WithTags(tags ...string) NoteOpt {
	return func(n *note.Note) { n.Tags = tags }
}

// WithSummary sets the note's summary (the field compaction=P% sizes are
// computed from).
func WithSummary(s string) NoteOpt {
	return func(n *note.Note) { n.Summary = s }
}

// WithBody sets the note's body.
func WithBody(b string) NoteOpt {
	return func(n *note.Note) { n.Body = b }
}

// WithLinks appends typed outgoing links.
func WithLinks(links ...note.Link) NoteOpt {
	return func(n *note.Note) { n.Links = append(n.Links, links...) }
}

// FixtureNote creates (and indexes) a permanent note titled title in s,
// applying any opts, and returns the note with its store-assigned ID.
func FixtureNote(t *testing.T, s *store.Store, title string, opts ...NoteOpt) *note.Note {
	t.Helper()
	now := time.Now().UTC()
	n := &note.Note{
		Title: title, Type: note.TypePermanent,
		Created: now, Updated: now,
		Summary: "summary of " + title,
		Body:    "body of " + title,
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := s.Create(n); err != nil {
		t.Fatalf("create fixture note %q: %v", title, err)
	}
	return n
}

// Link adds a typed link from `from` to `to` in s, re-reading and
// rewriting `from` via Put so the index picks it up.
func Link(t *testing.T, s *store.Store, from *note.Note, to, linkType string) {
	t.Helper()
	from.Links = append(from.Links, note.Link{ID: to, Type: linkType})
	if err := s.Put(from); err != nil {
		t.Fatalf("link %s --%s--> %s: %v", from.ID, linkType, to, err)
	}
}

// Compact marks digest as the compactor of each of sources, the same way
// `qipu compact apply` does (a "compacts" link on the digest note).
func Compact(t *testing.T, s *store.Store, digest *note.Note, sources ...string) {
	t.Helper()
	for _, src := range sources {
		digest.Links = append(digest.Links, note.Link{ID: src, Type: "compacts"})
	}
	if err := s.Put(digest); err != nil {
		t.Fatalf("compact %v into %s: %v", sources, digest.ID, err)
	}
}
