package search

import (
	"context"
	"database/sql"

	"github.com/mwaldstein/qipu/internal/graph"
)

// ResolveView rewrites a result found inside a compacted source so it
// points at the source's canonical digest, carrying Via as the original
// matching source id (spec §4.2: "the emitted result points to the
// canonical digest and carries via=<matching-source-id>"). Several
// sources resolving to the same digest collapse into one result, keeping
// whichever had the higher score.
func ResolveView(ctx context.Context, x interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, snap *graph.Snapshot, results []Result) ([]Result, error) {
	seen := make(map[string]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		canon, err := snap.Canon(r.ID)
		if err != nil {
			canon = r.ID
		}
		if canon == r.ID {
			out = append(out, r)
			continue
		}
		if idx, ok := seen[canon]; ok {
			if r.Score > out[idx].Score {
				out[idx].Score, out[idx].BM25, out[idx].Recency, out[idx].Via = r.Score, r.BM25, r.Recency, r.ID
			}
			continue
		}
		title, typ, summary, err := lookupNote(ctx, x, canon)
		if err != nil {
			return nil, err
		}
		seen[canon] = len(out)
		out = append(out, Result{
			ID: canon, Title: title, Type: typ, Summary: summary,
			Score: r.Score, BM25: r.BM25, Recency: r.Recency, Via: r.ID,
		})
	}
	sortByScoreDesc(out)
	return out, nil
}

func lookupNote(ctx context.Context, x interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, id string) (title, typ, summary string, err error) {
	rows, err := x.QueryContext(ctx, `SELECT title, type, summary FROM notes WHERE id = ?`, id)
	if err != nil {
		return "", "", "", err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&title, &typ, &summary); err != nil {
			return "", "", "", err
		}
	}
	return title, typ, summary, rows.Err()
}
