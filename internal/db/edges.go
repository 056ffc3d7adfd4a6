package db

import (
	"context"

	"github.com/mwaldstein/qipu/internal/graph"
)

// EdgeInput is one outgoing edge to record for a note, prior to knowing
// whether its target resolves to a known note.
type EdgeInput struct {
	To     string
	Type   string
	Source string // db.EdgeSourceTyped | db.EdgeSourceInline
}

const (
	EdgeSourceTyped  = graph.EdgeSourceTyped
	EdgeSourceInline = graph.EdgeSourceInline
)

// ReplaceEdges overwrites all outgoing edges recorded for fromID, split
// between edges (resolved) and unresolved (dangling), per spec §4.2's
// broken-link accounting.
func ReplaceEdges(ctx context.Context, x execer, fromID string, edges []EdgeInput) error {
	if _, err := x.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ?`, fromID); err != nil {
		return err
	}
	if _, err := x.ExecContext(ctx, `DELETE FROM unresolved WHERE from_id = ?`, fromID); err != nil {
		return err
	}

	for _, e := range edges {
		resolved, err := noteExists(ctx, x, e.To)
		if err != nil {
			return err
		}
		if resolved {
			if _, err := x.ExecContext(ctx, `
				INSERT OR IGNORE INTO edges (from_id, to_id, link_type, source) VALUES (?, ?, ?, ?)
			`, fromID, e.To, e.Type, e.Source); err != nil {
				return err
			}
		} else {
			if _, err := x.ExecContext(ctx, `
				INSERT OR IGNORE INTO unresolved (from_id, to_id, link_type, source) VALUES (?, ?, ?, ?)
			`, fromID, e.To, e.Type, e.Source); err != nil {
				return err
			}
		}
	}
	return nil
}

func noteExists(ctx context.Context, x execer, id string) (bool, error) {
	var one int
	err := x.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RefreshCompactors recomputes notes.compactor for every note from the
// current edges table: a note's compactor is the from_id of its
// (lexicographically first, if several) "compacts" edge. Run after a
// batch of ReplaceEdges calls, once the full edge set is known.
func RefreshCompactors(ctx context.Context, x execer) error {
	_, err := x.ExecContext(ctx, `
		UPDATE notes SET compactor = COALESCE((
			SELECT from_id FROM edges
			WHERE edges.to_id = notes.id AND edges.link_type = 'compacts'
			ORDER BY from_id ASC LIMIT 1
		), '')
	`)
	return err
}

// ListEdges returns every typed+inline edge, for building a graph.Snapshot.
func ListEdges(ctx context.Context, x execer) ([]graph.Edge, error) {
	rows, err := x.QueryContext(ctx, `SELECT from_id, to_id, link_type, source FROM edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Type, &e.Source); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UnresolvedEdge is a dangling outgoing link, surfaced by doctor's
// broken-link check (spec §7).
type UnresolvedEdge struct {
	From   string
	To     string
	Type   string
	Source string
}

// ListUnresolved returns every edge whose target does not resolve to a
// known note.
func ListUnresolved(ctx context.Context, x execer) ([]UnresolvedEdge, error) {
	rows, err := x.QueryContext(ctx, `SELECT from_id, to_id, link_type, source FROM unresolved`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnresolvedEdge
	for rows.Next() {
		var e UnresolvedEdge
		if err := rows.Scan(&e.From, &e.To, &e.Type, &e.Source); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
