package pack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadIntoEmptyStoreSkipStrategy(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{ID: "qp-orig", Title: "Incoming", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(), Body: "hello"}
	p := &Pack{Header: BuildHeader([]*note.Note{n}, nil, nil, time.Now()), Notes: []*note.Note{n}}

	report, err := Load(context.Background(), s, p, StrategySkip)
	require.NoError(t, err)
	require.Equal(t, []string{"qp-orig"}, report.Written)

	notes, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Incoming", notes[0].Title)
}

func TestLoadSkipKeepsExistingOnClash(t *testing.T) {
	s := openTestStore(t)
	existing := &note.Note{Title: "Mine", Type: note.TypePermanent, Body: "mine"}
	require.NoError(t, s.Create(existing))

	incoming := &note.Note{ID: existing.ID, Title: "Theirs", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(), Body: "theirs"}
	p := &Pack{Notes: []*note.Note{incoming}}

	report, err := Load(context.Background(), s, p, StrategySkip)
	require.NoError(t, err)
	require.Equal(t, []string{existing.ID}, report.Skipped)

	notes, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Mine", notes[0].Title)
}

func TestLoadOverwriteReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	existing := &note.Note{Title: "Mine", Type: note.TypePermanent, Body: "mine"}
	require.NoError(t, s.Create(existing))

	incoming := &note.Note{ID: existing.ID, Title: "Theirs", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(), Body: "theirs"}
	p := &Pack{Notes: []*note.Note{incoming}}

	_, err := Load(context.Background(), s, p, StrategyOverwrite)
	require.NoError(t, err)

	notes, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Theirs", notes[0].Title)
}

func TestLoadRenameMintsFreshID(t *testing.T) {
	s := openTestStore(t)
	existing := &note.Note{Title: "Mine", Type: note.TypePermanent, Body: "mine"}
	require.NoError(t, s.Create(existing))

	incoming := &note.Note{ID: existing.ID, Title: "Theirs", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(), Body: "theirs"}
	p := &Pack{Notes: []*note.Note{incoming}}

	report, err := Load(context.Background(), s, p, StrategyRename)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	require.NotEqual(t, existing.ID, report.Conflicts[0].NewID)

	notes, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, notes, 2)
}

func TestLoadMergeLinksUnionsLinks(t *testing.T) {
	s := openTestStore(t)
	other := &note.Note{Title: "Other", Type: note.TypePermanent, Body: "other"}
	require.NoError(t, s.Create(other))

	existing := &note.Note{Title: "Mine", Type: note.TypePermanent, Body: "mine",
		Links: []note.Link{{ID: other.ID, Type: "related"}}}
	require.NoError(t, s.Create(existing))

	incoming := &note.Note{ID: existing.ID, Title: "Theirs", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(), Body: "theirs",
		Links: []note.Link{{ID: other.ID, Type: "part-of"}}}
	p := &Pack{
		Notes: []*note.Note{incoming},
		Edges: []Edge{{From: incoming.ID, To: other.ID, Type: "part-of"}},
	}

	_, err := Load(context.Background(), s, p, StrategyMergeLinks)
	require.NoError(t, err)

	notes, err := s.LoadAll()
	require.NoError(t, err)
	var merged *note.Note
	for _, n := range notes {
		if n.ID == existing.ID {
			merged = n
		}
	}
	require.NotNil(t, merged)
	require.Equal(t, "Mine", merged.Title) // target title kept
	require.Len(t, merged.Links, 2)
}
