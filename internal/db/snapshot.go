package db

import (
	"context"

	"github.com/mwaldstein/qipu/internal/graph"
)

// BuildSnapshot loads the full node/edge set from the index into an
// in-memory graph.Snapshot, the read model internal/graph traverses
// (spec §5: "traversal and search produce deterministic output given
// the snapshot").
func (s *Store) BuildSnapshot(ctx context.Context, linkTypeCost func(string) float64) (*graph.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, has_value, compactor, summary FROM notes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make(map[string]graph.NodeInfo)
	for rows.Next() {
		var id, compactor, summary string
		var value, hasValue int
		if err := rows.Scan(&id, &value, &hasValue, &compactor, &summary); err != nil {
			return nil, err
		}
		nodes[id] = graph.NodeInfo{
			ID:        id,
			Value:     value,
			HasValue:  hasValue != 0,
			Compactor: compactor,
			Size:      len([]rune(summary)),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edges, err := ListEdges(ctx, s.db)
	if err != nil {
		return nil, err
	}

	return &graph.Snapshot{
		Edges:        edges,
		Nodes:        nodes,
		LinkTypeCost: linkTypeCost,
	}, nil
}
