package pack

import (
	"context"
	"sort"
	"time"

	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/search"
	"github.com/mwaldstein/qipu/internal/telemetry"
)

// DumpOptions configures a dump (spec §4.5).
type DumpOptions struct {
	Selector      assembler.Selector
	MaxHops       int // 0 = no traversal expansion beyond the selector itself
	NoAttachments bool
}

// Dump resolves a selection (optionally expanded by traversal) against
// corpus and builds a deterministic pack. A note reached by traversal
// within MaxHops is included outright; no filter runs afterward to
// remove it (spec §4.5).
func Dump(ctx context.Context, corpus assembler.Corpus, opts DumpOptions, attachmentsDir string,
	searcher func(context.Context, search.Query) ([]search.Result, error)) (*Pack, error) {
	defer telemetry.Span(ctx, "pack.Dump")()

	ids, err := assembler.Select(ctx, corpus, opts.Selector, searcher)
	if err != nil {
		return nil, err
	}

	if opts.MaxHops > 0 && corpus.Snapshot != nil {
		result, err := corpus.Snapshot.Traverse(graph.TraverseOptions{
			Start:       ids,
			Direction:   graph.Both,
			MaxHops:     opts.MaxHops,
			ResolveView: true,
		})
		if err != nil {
			return nil, err
		}
		ids = mergeIDs(ids, result.Nodes)
	}

	notes := make([]*note.Note, 0, len(ids))
	for _, id := range ids {
		if n, ok := corpus.Notes[id]; ok {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].Created.Equal(notes[j].Created) {
			return notes[i].Created.Before(notes[j].Created)
		}
		return notes[i].ID < notes[j].ID
	})

	edges := EdgesFromNotes(notes)

	var attachments []Attachment
	if !opts.NoAttachments {
		refs := ReferencedAttachments(notes)
		attachments, err = LoadAttachments(attachmentsDir, refs)
		if err != nil {
			return nil, err
		}
	}

	return &Pack{
		Header:      BuildHeader(notes, edges, attachments, time.Now().UTC()),
		Notes:       notes,
		Edges:       edges,
		Attachments: attachments,
	}, nil
}

func mergeIDs(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
