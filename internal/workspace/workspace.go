// Package workspace implements C9: secondary stores embedded under a
// primary store's workspaces/ directory, and merging a workspace's
// notes back into its primary (spec §4.5).
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/pack"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/store"
)

// dirFor returns the on-disk path a named workspace lives at under primary.
func dirFor(primary *store.Store, name string) string {
	return filepath.Join(primary.Root, "workspaces", name)
}

// New creates and opens a fresh workspace store under primary.
func New(primary *store.Store, name string) (*store.Store, error) {
	if name == "" {
		return nil, qerr.Usage("workspace name must not be empty")
	}
	return store.InitAt(primary.ProjectRoot, dirFor(primary, name))
}

// Open opens an existing workspace by name.
func Open(primary *store.Store, name string) (*store.Store, error) {
	root := dirFor(primary, name)
	if _, err := os.Stat(root); err != nil {
		return nil, qerr.Usagef("workspace %q does not exist", name)
	}
	return store.OpenAt(primary.ProjectRoot, root)
}

// List returns the names of every workspace under primary.
func List(primary *store.Store) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(primary.Root, "workspaces"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, qerr.Runtime("list workspaces", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a workspace's directory entirely. This is destructive
// and unrecoverable; callers are expected to have already confirmed with
// the operator (spec §4.5 says nothing about recovery — a workspace is
// disposable scratch space for a merge cycle).
func Delete(primary *store.Store, name string) error {
	root := dirFor(primary, name)
	if _, err := os.Stat(root); err != nil {
		return qerr.Usagef("workspace %q does not exist", name)
	}
	if err := os.RemoveAll(root); err != nil {
		return qerr.Runtime("remove workspace", err)
	}
	return nil
}

// MergeReport is the result of a merge (or, with DryRun, of a conflict
// preview that changed nothing).
type MergeReport struct {
	DryRun    bool
	Written   []string
	Skipped   []string
	Conflicts []pack.Conflict
}

// Merge copies every note in the named workspace into primary using the
// given conflict strategy, the same strategies pack load uses (spec
// §4.5: "merge ... is defined via the same strategies as load"). With
// dryRun set, no write happens: the conflicts that would occur are
// computed and returned instead.
func Merge(ctx context.Context, primary *store.Store, name string, strategy pack.Strategy, dryRun bool) (*MergeReport, error) {
	ws, err := Open(primary, name)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	notes, err := ws.LoadAll()
	if err != nil {
		return nil, err
	}
	edges := pack.EdgesFromNotes(notes)
	p := &pack.Pack{
		Header: pack.BuildHeader(notes, edges, nil, time.Now().UTC()),
		Notes:  notes,
		Edges:  edges,
	}

	if dryRun {
		existingNotes, err := primary.LoadAll()
		if err != nil {
			return nil, err
		}
		conflicts := pack.Plan(p, toNoteMap(existingNotes), strategy)
		return &MergeReport{DryRun: true, Conflicts: conflicts}, nil
	}

	report, err := pack.Load(ctx, primary, p, strategy)
	if err != nil {
		return nil, err
	}
	return &MergeReport{Written: report.Written, Skipped: report.Skipped, Conflicts: report.Conflicts}, nil
}

func toNoteMap(notes []*note.Note) map[string]*note.Note {
	out := make(map[string]*note.Note, len(notes))
	for _, n := range notes {
		out[n.ID] = n
	}
	return out
}
