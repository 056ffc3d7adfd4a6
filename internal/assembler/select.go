package assembler

import (
	"context"
	"sort"

	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/search"
)

// Selector describes the union of selection criteria accepted by
// `context`, `export`, and `dump` (spec §4.4/§4.5).
type Selector struct {
	NoteIDs          []string
	Tag              string
	MOC              string // include the MOC itself plus its outgoing-linked notes
	Query            string
	MinValue         int
	CustomFilter     []string
	ResolveCompaction bool // default true: hide compacted sources behind their digest
}

// Corpus is the read surface selection needs: every note plus the
// traversal snapshot used for canonicalization and MOC expansion.
type Corpus struct {
	Notes    map[string]*note.Note
	Snapshot *graph.Snapshot
}

// Select resolves sel against corpus into a deterministically ordered,
// deduplicated list of note IDs (spec §4.4). An empty effective
// selection with no filter criteria at all is a usage error.
func Select(ctx context.Context, corpus Corpus, sel Selector, searcher func(context.Context, search.Query) ([]search.Result, error)) ([]string, error) {
	if len(sel.NoteIDs) == 0 && sel.Tag == "" && sel.MOC == "" && sel.Query == "" &&
		sel.MinValue == 0 && len(sel.CustomFilter) == 0 {
		return nil, qerr.Usage("context selection is empty: provide --note, --tag, --moc, --query, --min-value, or --custom-filter")
	}

	clauses := make([]CustomClause, 0, len(sel.CustomFilter))
	for _, raw := range sel.CustomFilter {
		c, err := ParseCustomClause(raw)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}

	seen := map[string]bool{}
	var union []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			union = append(union, id)
		}
	}

	for _, id := range sel.NoteIDs {
		add(id)
	}

	if sel.MOC != "" {
		add(sel.MOC)
		if corpus.Snapshot != nil {
			for _, e := range corpus.Snapshot.Edges {
				if e.From == sel.MOC {
					add(e.To)
				}
			}
		}
	}

	if sel.Query != "" && searcher != nil {
		results, err := searcher(ctx, search.Query{Text: sel.Query})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			add(r.ID)
		}
	}

	for id, n := range corpus.Notes {
		if sel.Tag != "" && !hasTag(n, sel.Tag) {
			continue
		}
		if sel.MinValue > 0 && n.EffectiveValue() < sel.MinValue {
			continue
		}
		if len(clauses) > 0 && !MatchAll(n, clauses) {
			continue
		}
		if sel.Tag == "" && sel.MinValue == 0 && len(clauses) == 0 {
			continue // these three criteria are the only ones that scan the whole corpus
		}
		add(id)
	}

	resolved := union
	if sel.ResolveCompaction && corpus.Snapshot != nil {
		mapped := make([]string, 0, len(union))
		mappedSeen := map[string]bool{}
		for _, id := range union {
			canon, err := corpus.Snapshot.Canon(id)
			if err != nil {
				return nil, qerr.Dataf("canonicalize %s: %v", id, err)
			}
			if !mappedSeen[canon] {
				mappedSeen[canon] = true
				mapped = append(mapped, canon)
			}
		}
		resolved = mapped
	}

	out := make([]string, 0, len(resolved))
	for _, id := range resolved {
		if _, ok := corpus.Notes[id]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := corpus.Notes[out[i]], corpus.Notes[out[j]]
		if !ni.Created.Equal(nj.Created) {
			return ni.Created.Before(nj.Created)
		}
		return out[i] < out[j]
	})
	return out, nil
}

func hasTag(n *note.Note, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
