package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/note"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestOpenRebuildsOnSchemaMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	_, err = store.db.Exec(`DROP TABLE notes`)
	require.NoError(t, err)
	store.Close()

	store2, err := Open(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	var count int
	require.NoError(t, store2.db.QueryRow(`SELECT count(*) FROM notes`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestUpsertAndGetNote(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	n := &note.Note{
		ID: "qp-aaaa", Title: "Hello", Type: note.TypePermanent,
		Created: time.Now(), Updated: time.Now(),
		Tags: []string{"beta", "alpha"}, HasValue: true, Value: 70,
		Summary: "a summary", Path: "notes/qp-aaaa-hello.md", Body: "body text",
	}
	require.NoError(t, UpsertNote(ctx, store.db, n, "hash1", "2026-01-01T00:00:00Z"))

	got, err := GetNote(ctx, store.db, "qp-aaaa")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Hello", got.Title)
	require.Equal(t, 70, got.Value)
	require.Equal(t, []string{"alpha", "beta"}, got.Tags)
}

func TestDeleteNoteRemovesEdges(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := &note.Note{ID: "qp-a", Title: "A", Type: note.TypeFleeting, Created: time.Now(), Updated: time.Now(), Path: "notes/a.md"}
	b := &note.Note{ID: "qp-b", Title: "B", Type: note.TypeFleeting, Created: time.Now(), Updated: time.Now(), Path: "notes/b.md"}
	require.NoError(t, UpsertNote(ctx, store.db, a, "h", "t"))
	require.NoError(t, UpsertNote(ctx, store.db, b, "h", "t"))
	require.NoError(t, ReplaceEdges(ctx, store.db, "qp-a", []EdgeInput{{To: "qp-b", Type: "related", Source: EdgeSourceTyped}}))

	require.NoError(t, DeleteNote(ctx, store.db, "qp-a"))

	edges, err := ListEdges(ctx, store.db)
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestListNotesFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	notes := []*note.Note{
		{ID: "qp-1", Title: "One", Type: note.TypePermanent, Created: now, Updated: now, HasValue: true, Value: 80, Path: "p1"},
		{ID: "qp-2", Title: "Two", Type: note.TypeMOC, Created: now.Add(time.Second), Updated: now, HasValue: true, Value: 20, Path: "p2"},
	}
	for _, n := range notes {
		require.NoError(t, UpsertNote(ctx, store.db, n, "h", "t"))
	}

	out, err := ListNotes(ctx, store.db, NoteFilter{ExcludeMOC: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "qp-1", out[0].ID)

	out, err = ListNotes(ctx, store.db, NoteFilter{MinValue: 50})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "qp-1", out[0].ID)
}

func TestReplaceEdgesTracksUnresolved(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := &note.Note{ID: "qp-a", Title: "A", Type: note.TypeFleeting, Created: time.Now(), Updated: time.Now(), Path: "a.md"}
	require.NoError(t, UpsertNote(ctx, store.db, a, "h", "t"))
	require.NoError(t, ReplaceEdges(ctx, store.db, "qp-a", []EdgeInput{{To: "qp-missing", Type: "related", Source: EdgeSourceInline}}))

	unresolved, err := ListUnresolved(ctx, store.db)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "qp-missing", unresolved[0].To)
}

func TestRefreshCompactors(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	digest := &note.Note{ID: "qp-digest", Title: "Digest", Type: note.TypePermanent, Created: time.Now(), Updated: time.Now(), Path: "d.md"}
	src := &note.Note{ID: "qp-src", Title: "Source", Type: note.TypeFleeting, Created: time.Now(), Updated: time.Now(), Path: "s.md"}
	require.NoError(t, UpsertNote(ctx, store.db, digest, "h", "t"))
	require.NoError(t, UpsertNote(ctx, store.db, src, "h", "t"))
	require.NoError(t, ReplaceEdges(ctx, store.db, "qp-digest", []EdgeInput{{To: "qp-src", Type: "compacts", Source: EdgeSourceTyped}}))
	require.NoError(t, RefreshCompactors(ctx, store.db))

	got, err := GetNote(ctx, store.db, "qp-src")
	require.NoError(t, err)
	require.Equal(t, "qp-digest", got.Compactor)
}

func TestMetaRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetMeta(ctx, "last_sync", "2026-01-01T00:00:00Z"))
	v, err := store.GetMeta(ctx, "last_sync")
	require.NoError(t, err)
	require.Equal(t, "2026-01-01T00:00:00Z", v)

	v, err = store.GetMeta(ctx, "unset")
	require.NoError(t, err)
	require.Equal(t, "", v)
}
