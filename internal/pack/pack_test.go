package pack

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwaldstein/qipu/internal/note"
)

func sampleNote() *note.Note {
	return &note.Note{
		ID: "qp-aaaa", Title: "Sample", Type: note.TypePermanent,
		Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Updated: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Tags:    []string{"a", "b"},
		Value:   70, HasValue: true, Verified: true,
		Summary: "a short summary",
		Source:  "https://example.com",
		Sources: []note.Source{{URL: "https://example.com", Title: "Example"}},
		Custom:  map[string]note.Value{"score": note.IntValue(9)},
		Body:    "line one\nline two\n",
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	n := sampleNote()
	edges := []Edge{{From: n.ID, To: "qp-bbbb", Type: "related"}}
	p := &Pack{
		Header: BuildHeader([]*note.Note{n}, edges, nil, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)),
		Notes:  []*note.Note{n},
		Edges:  edges,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	require.Equal(t, n.ID, got.Notes[0].ID)
	require.Equal(t, n.Title, got.Notes[0].Title)
	require.Equal(t, n.Tags, got.Notes[0].Tags)
	require.Equal(t, n.Value, got.Notes[0].Value)
	require.True(t, got.Notes[0].HasValue)
	require.True(t, got.Notes[0].Verified)
	require.Equal(t, n.Summary, got.Notes[0].Summary)
	require.Equal(t, n.Source, got.Notes[0].Source)
	require.Equal(t, n.Sources, got.Notes[0].Sources)
	require.Equal(t, n.Body, got.Notes[0].Body)
	require.Equal(t, int64(9), got.Notes[0].Custom["score"].Int)
	require.Len(t, got.Edges, 1)
	require.Equal(t, edges[0], got.Edges[0])
}

func TestReadRejectsMissingEnd(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("HEADER version=1 store_version=1 created=2026-01-01T00:00:00Z notes=0 links=0 attachments=0\n")
	_, err := Read(&buf)
	require.Error(t, err)
}

func TestReadRejectsNewerVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("HEADER version=99 store_version=1 created=2026-01-01T00:00:00Z notes=0 links=0 attachments=0\nEND\n")
	_, err := Read(&buf)
	require.Error(t, err)
}

func TestEdgesFromNotesRestrictsToIncluded(t *testing.T) {
	a := &note.Note{ID: "qp-a", Links: []note.Link{{ID: "qp-b", Type: "related"}, {ID: "qp-missing", Type: "related"}}}
	b := &note.Note{ID: "qp-b"}
	edges := EdgesFromNotes([]*note.Note{a, b})
	require.Len(t, edges, 1)
	require.Equal(t, "qp-a", edges[0].From)
	require.Equal(t, "qp-b", edges[0].To)
}

func TestReferencedAttachments(t *testing.T) {
	n := &note.Note{Body: "See ![diagram](attachments/diagram.png) and [sheet](../attachments/sheet.csv)."}
	refs := ReferencedAttachments([]*note.Note{n})
	require.Equal(t, []string{"diagram.png", "sheet.csv"}, refs)
}
