package search

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"
)

// Query describes a full-text search request (spec §4.3).
type Query struct {
	Text       string
	Types      []string
	Tag        string
	ExcludeMOC bool
	MinValue   int
	Limit      int
	Now        time.Time // snapshot-relative "now" for the recency boost
}

// Result is one ranked hit.
type Result struct {
	ID      string
	Title   string
	Type    string
	Score   float64
	BM25    float64
	Recency float64
	Summary string
	// Via names the compacted source whose body actually matched, when
	// resolve view rewrote this result to its canonical digest
	// (spec §4.2: "carries via=<matching-source-id>"). Empty otherwise.
	Via string `json:"via,omitempty"`
}

// field weights for bm25(notes_fts, ...), one per column in schema order:
// id (unindexed), title, tags, summary, body.
const bm25Weights = "bm25(notes_fts, 0.0, 2.0, 1.5, 1.0, 1.0)"

// Search runs a BM25-ranked full-text query against the index, applying
// filters and a deterministic recency boost (spec §4.3). db is anything
// exposing QueryContext, so callers can pass *sql.DB or *sql.Tx.
func Search(ctx context.Context, x interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, q Query) ([]Result, error) {
	terms := Tokenize(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}
	matchExpr := strings.Join(quoteTerms(terms), " OR ")

	sqlQuery := `
		SELECT notes.id, notes.title, notes.type, notes.summary, notes.created, ` + bm25Weights + ` AS rank
		FROM notes_fts
		JOIN notes ON notes.id = notes_fts.id
		WHERE notes_fts MATCH ?`
	args := []any{matchExpr}

	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		sqlQuery += " AND notes.type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if q.ExcludeMOC {
		sqlQuery += " AND notes.type != 'moc'"
	}
	if q.MinValue > 0 {
		sqlQuery += " AND notes.value >= ?"
		args = append(args, q.MinValue)
	}
	if q.Tag != "" {
		sqlQuery += " AND notes.id IN (SELECT note_id FROM tags WHERE tag = ?)"
		args = append(args, q.Tag)
	}
	sqlQuery += " ORDER BY rank LIMIT 500"

	rows, err := x.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out []Result
	for rows.Next() {
		var r Result
		var created string
		// bm25() returns more-negative-is-better; normalize to positive.
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.Summary, &created, &r.BM25); err != nil {
			return nil, err
		}
		r.BM25 = -r.BM25
		r.Recency = recencyBoost(created, now)
		r.Score = r.BM25 * (1 + r.Recency)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByScoreDesc(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func quoteTerms(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return out
}

// recencyBoost returns a small deterministic bonus in [0, 0.2] that
// decays over a 180-day half-life, so recent notes edge out equally
// relevant old ones without dominating the ranking (spec §4.3).
func recencyBoost(created string, now time.Time) float64 {
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return 0
	}
	ageDays := now.Sub(t).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	const halfLifeDays = 180.0
	const maxBoost = 0.2
	return maxBoost * math.Pow(2, -ageDays/halfLifeDays)
}

func sortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
