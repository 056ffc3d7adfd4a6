package db

import (
	"context"
	"database/sql"

	"github.com/mwaldstein/qipu/internal/linkextract"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/telemetry"
)

// SyncNote writes one note's row, tags, FTS document, and outgoing edges
// (typed links plus inline links extracted from its body) in a single
// transaction, and refreshes compactor resolution in that same
// transaction. Batch rebuilds go through FullSync, which refreshes
// compactors once after all notes are written.
func (s *Store) SyncNote(ctx context.Context, n *note.Note, bodyHash, indexedAt string) error {
	defer telemetry.Span(ctx, "db.SyncNote")()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := UpsertNote(ctx, tx, n, bodyHash, indexedAt); err != nil {
			return err
		}
		edges := noteEdges(n)
		if err := ReplaceEdges(ctx, tx, n.ID, edges); err != nil {
			return err
		}
		return RefreshCompactors(ctx, tx)
	})
}

func noteEdges(n *note.Note) []EdgeInput {
	edges := make([]EdgeInput, 0, len(n.Links))
	for _, l := range n.Links {
		edges = append(edges, EdgeInput{To: l.ID, Type: l.Type, Source: EdgeSourceTyped})
	}
	for _, id := range linkextract.Extract(n.Body) {
		edges = append(edges, EdgeInput{To: id, Type: "related", Source: EdgeSourceInline})
	}
	return edges
}

// FullSync rewrites the index from scratch for the given notes: every
// note row, its tags/FTS document, and its outgoing edges, followed by a
// single compactor refresh pass. This is the "rebuild from source of
// truth" path used by `qipu index` and doctor's repair mode (spec
// §5/§7) — the note files are authoritative, this call makes the index
// agree with them.
func (s *Store) FullSync(ctx context.Context, notes []*note.Note, bodyHash func(*note.Note) string, indexedAt string) error {
	defer telemetry.Span(ctx, "db.FullSync")()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM notes`, `DELETE FROM tags`, `DELETE FROM notes_fts`,
			`DELETE FROM edges`, `DELETE FROM unresolved`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		for _, n := range notes {
			if err := UpsertNote(ctx, tx, n, bodyHash(n), indexedAt); err != nil {
				return err
			}
		}
		for _, n := range notes {
			if err := ReplaceEdges(ctx, tx, n.ID, noteEdges(n)); err != nil {
				return err
			}
		}
		return RefreshCompactors(ctx, tx)
	})
}
