package pack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
)

func sampleDumpCorpus() assembler.Corpus {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	notes := map[string]*note.Note{
		"qp-a": {ID: "qp-a", Title: "A", Type: note.TypePermanent, Created: base, Updated: base,
			Links: []note.Link{{ID: "qp-b", Type: "related"}}},
		"qp-b": {ID: "qp-b", Title: "B", Type: note.TypePermanent, Created: base.Add(time.Hour), Updated: base.Add(time.Hour),
			Links: []note.Link{{ID: "qp-c", Type: "related"}}},
		"qp-c": {ID: "qp-c", Title: "C", Type: note.TypePermanent, Created: base.Add(2 * time.Hour), Updated: base.Add(2 * time.Hour)},
	}
	snap := &graph.Snapshot{
		Nodes: map[string]graph.NodeInfo{"qp-a": {ID: "qp-a"}, "qp-b": {ID: "qp-b"}, "qp-c": {ID: "qp-c"}},
		Edges: []graph.Edge{
			{From: "qp-a", To: "qp-b", Type: "related", Source: graph.EdgeSourceTyped},
			{From: "qp-b", To: "qp-c", Type: "related", Source: graph.EdgeSourceTyped},
		},
	}
	return assembler.Corpus{Notes: notes, Snapshot: snap}
}

func TestDumpSelectorOnly(t *testing.T) {
	corpus := sampleDumpCorpus()
	p, err := Dump(context.Background(), corpus, DumpOptions{
		Selector:      assembler.Selector{NoteIDs: []string{"qp-a"}},
		NoAttachments: true,
	}, "", nil)
	require.NoError(t, err)
	require.Len(t, p.Notes, 1)
	require.Equal(t, "qp-a", p.Notes[0].ID)
}

func TestDumpExpandsByTraversal(t *testing.T) {
	corpus := sampleDumpCorpus()
	p, err := Dump(context.Background(), corpus, DumpOptions{
		Selector:      assembler.Selector{NoteIDs: []string{"qp-a"}},
		MaxHops:       2,
		NoAttachments: true,
	}, "", nil)
	require.NoError(t, err)
	require.Len(t, p.Notes, 3)
}

func TestDumpEdgesRestrictedToIncluded(t *testing.T) {
	corpus := sampleDumpCorpus()
	p, err := Dump(context.Background(), corpus, DumpOptions{
		Selector:      assembler.Selector{NoteIDs: []string{"qp-a", "qp-b"}},
		NoAttachments: true,
	}, "", nil)
	require.NoError(t, err)
	require.Len(t, p.Edges, 1)
	require.Equal(t, "qp-a", p.Edges[0].From)
	require.Equal(t, "qp-b", p.Edges[0].To)
}
