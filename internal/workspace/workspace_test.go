package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/pack"
	"github.com/mwaldstein/qipu/internal/store"
)

func openPrimary(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewAndOpen(t *testing.T) {
	primary := openPrimary(t)
	ws, err := New(primary, "scratch")
	require.NoError(t, err)
	ws.Close()

	reopened, err := Open(primary, "scratch")
	require.NoError(t, err)
	reopened.Close()
}

func TestOpenMissingWorkspaceErrors(t *testing.T) {
	primary := openPrimary(t)
	_, err := Open(primary, "nope")
	require.Error(t, err)
}

func TestListWorkspaces(t *testing.T) {
	primary := openPrimary(t)
	names, err := List(primary)
	require.NoError(t, err)
	require.Empty(t, names)

	a, err := New(primary, "a")
	require.NoError(t, err)
	a.Close()
	b, err := New(primary, "b")
	require.NoError(t, err)
	b.Close()

	names, err = List(primary)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}

func TestDeleteWorkspace(t *testing.T) {
	primary := openPrimary(t)
	ws, err := New(primary, "temp")
	require.NoError(t, err)
	ws.Close()

	require.NoError(t, Delete(primary, "temp"))
	names, err := List(primary)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMergeWritesIntoPrimary(t *testing.T) {
	primary := openPrimary(t)
	ws, err := New(primary, "scratch")
	require.NoError(t, err)
	defer ws.Close()

	n := &note.Note{Title: "From Workspace", Type: note.TypePermanent, Body: "hi"}
	require.NoError(t, ws.Create(n))

	report, err := Merge(context.Background(), primary, "scratch", pack.StrategySkip, false)
	require.NoError(t, err)
	require.Equal(t, []string{n.ID}, report.Written)

	notes, err := primary.LoadAll()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "From Workspace", notes[0].Title)
}

func TestMergeDryRunDoesNotMutate(t *testing.T) {
	primary := openPrimary(t)
	ws, err := New(primary, "scratch")
	require.NoError(t, err)
	defer ws.Close()

	n := &note.Note{Title: "From Workspace", Type: note.TypePermanent, Body: "hi"}
	require.NoError(t, ws.Create(n))

	report, err := Merge(context.Background(), primary, "scratch", pack.StrategySkip, true)
	require.NoError(t, err)
	require.True(t, report.DryRun)

	notes, err := primary.LoadAll()
	require.NoError(t, err)
	require.Empty(t, notes)
}
