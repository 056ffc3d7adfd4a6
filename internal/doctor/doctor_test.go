package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

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

func TestRunCleanStoreHasNoErrors(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Solo Note", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	report, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
}

func TestRunFlagsOrphan(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Lonely", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	report, err := Run(context.Background(), s)
	require.NoError(t, err)

	var found bool
	for _, i := range report.Issues {
		if i.Check == CheckOrphans && i.NoteID == n.ID {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunFlagsDuplicateIDs(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Original", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	dupPath := filepath.Join(s.NotesDir(), "dup-of-"+n.ID+".md")
	raw, err := os.ReadFile(filepath.Join(s.Root, n.Path))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dupPath, raw, 0o644))

	report, err := Run(context.Background(), s)
	require.NoError(t, err)

	var found bool
	for _, i := range report.Issues {
		if i.Check == CheckDuplicateIDs && i.NoteID == n.ID {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunFlagsIndexDivergenceAfterManualDelete(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Indexed", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	_, err := s.DB.DB().Exec(`DELETE FROM notes WHERE id = ?`, n.ID)
	require.NoError(t, err)

	report, err := Run(context.Background(), s)
	require.NoError(t, err)

	var found bool
	for _, i := range report.Issues {
		if i.Check == CheckIndexDivergence && i.NoteID == n.ID && i.Fixable {
			found = true
		}
	}
	require.True(t, found)
}

func TestFixRebuildsIndex(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Will Reindex", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	_, err := s.DB.DB().Exec(`DELETE FROM notes`)
	require.NoError(t, err)

	require.NoError(t, Fix(context.Background(), s))

	report, err := Run(context.Background(), s)
	require.NoError(t, err)
	for _, i := range report.Issues {
		require.NotEqual(t, CheckIndexDivergence, i.Check)
	}
}

func TestRunFlagsCompactsSelf(t *testing.T) {
	s := openTestStore(t)
	n := &note.Note{Title: "Self Compactor", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))
	n.Links = append(n.Links, note.Link{ID: n.ID, Type: "compacts"})
	rendered, err := note.Render(n)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, n.Path), rendered, 0o644))

	report, err := Run(context.Background(), s)
	require.NoError(t, err)

	var found bool
	for _, i := range report.Issues {
		if i.Check == CheckCompaction && i.NoteID == n.ID {
			found = true
		}
	}
	require.True(t, found)
}
