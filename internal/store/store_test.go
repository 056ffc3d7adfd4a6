package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/note"
)

func TestInitAndOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	defer s.Close()

	require.DirExists(t, filepath.Join(dir, DirName, "notes"))
	require.DirExists(t, filepath.Join(dir, DirName, "mocs"))
	require.FileExists(t, filepath.Join(dir, DirName, "config.toml"))

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, 1, s2.Cfg.StoreVersion)
}

func TestInitRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	s.Close()

	_, err = Init(dir)
	require.Error(t, err)
}

func TestDiscoverFindsStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	s.Close()

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	found, err := Discover(sub)
	require.NoError(t, err)
	require.Equal(t, dir, found)
}

func TestDiscoverStopsAtBoundary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	_, err := Discover(sub)
	require.Error(t, err)
}

func TestCreateAssignsIDAndIndexes(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	defer s.Close()

	n := &note.Note{Title: "My First Note", Type: note.TypeFleeting, Tags: []string{"x"}}
	require.NoError(t, s.Create(n))
	require.NotEmpty(t, n.ID)
	require.FileExists(t, filepath.Join(s.Root, n.Path))

	got, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, n.ID, got[0].ID)
}

func TestRebuildRestoresIndexFromFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir)
	require.NoError(t, err)
	defer s.Close()

	n := &note.Note{Title: "Needs Reindex", Type: note.TypePermanent}
	require.NoError(t, s.Create(n))

	_, err = s.DB.DB().Exec(`DELETE FROM notes`)
	require.NoError(t, err)

	require.NoError(t, s.Rebuild(context.Background()))

	notes, err := s.ListNoteFiles()
	require.NoError(t, err)
	require.Len(t, notes, 1)
}
