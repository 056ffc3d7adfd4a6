package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting index-write
// helpers run either standalone or inside Store.WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IndexedNote is one row of the notes table, the index's view of a note
// (spec §5: every field here is reconstructible from the file).
type IndexedNote struct {
	ID        string
	Title     string
	Type      string
	Created   string
	Updated   string
	Value     int
	HasValue  bool
	Verified  bool
	Tags      []string
	Summary   string
	Compactor string
	Path      string
	BodyHash  string
}

// UpsertNote writes or replaces a note's row, tag rows, and FTS document
// in one call. It does not touch edges; callers index links separately
// via ReplaceEdges so link resolution can see the full note set first.
func UpsertNote(ctx context.Context, x execer, n *note.Note, bodyHash, indexedAt string) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO notes (id, title, type, created, updated, value, has_value, verified, summary, compactor, path, body_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, type = excluded.type, created = excluded.created,
			updated = excluded.updated, value = excluded.value, has_value = excluded.has_value,
			verified = excluded.verified, summary = excluded.summary, path = excluded.path,
			body_hash = excluded.body_hash, indexed_at = excluded.indexed_at
	`, n.ID, n.Title, string(n.Type), n.Created.Format(timeLayout), n.Updated.Format(timeLayout),
		n.EffectiveValue(), boolToInt(n.HasValue), boolToInt(n.Verified), n.Summary, n.Path, bodyHash, indexedAt)
	if err != nil {
		return err
	}

	if _, err := x.ExecContext(ctx, `DELETE FROM tags WHERE note_id = ?`, n.ID); err != nil {
		return err
	}
	for _, tag := range n.Tags {
		if _, err := x.ExecContext(ctx, `INSERT OR IGNORE INTO tags (note_id, tag) VALUES (?, ?)`, n.ID, tag); err != nil {
			return err
		}
	}

	if _, err := x.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, n.ID); err != nil {
		return err
	}
	_, err = x.ExecContext(ctx, `
		INSERT INTO notes_fts (id, title, tags, summary, body) VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.Title, strings.Join(n.Tags, " "), n.Summary, n.Body)
	return err
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeleteNote removes a note's row, tags, FTS document, and any edges
// touching it.
func DeleteNote(ctx context.Context, x execer, id string) error {
	for _, stmt := range []string{
		`DELETE FROM notes WHERE id = ?`,
		`DELETE FROM tags WHERE note_id = ?`,
		`DELETE FROM notes_fts WHERE id = ?`,
		`DELETE FROM edges WHERE from_id = ? OR to_id = ?`,
		`DELETE FROM unresolved WHERE from_id = ? OR to_id = ?`,
	} {
		args := []any{id}
		if strings.Count(stmt, "?") == 2 {
			args = append(args, id)
		}
		if _, err := x.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

// GetNote returns one indexed note row, or (nil, nil) if not found.
func GetNote(ctx context.Context, x execer, id string) (*IndexedNote, error) {
	row := x.QueryRowContext(ctx, `
		SELECT id, title, type, created, updated, value, has_value, verified, summary, compactor, path, body_hash
		FROM notes WHERE id = ?
	`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.Tags, err = listTags(ctx, x, id)
	return n, err
}

func scanNote(row *sql.Row) (*IndexedNote, error) {
	var n IndexedNote
	var hasValue, verified int
	if err := row.Scan(&n.ID, &n.Title, &n.Type, &n.Created, &n.Updated, &n.Value, &hasValue, &verified, &n.Summary, &n.Compactor, &n.Path, &n.BodyHash); err != nil {
		return nil, err
	}
	n.HasValue = hasValue != 0
	n.Verified = verified != 0
	return &n, nil
}

func listTags(ctx context.Context, x execer, noteID string) ([]string, error) {
	rows, err := x.QueryContext(ctx, `SELECT tag FROM tags WHERE note_id = ? ORDER BY tag`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// NoteFilter restricts ListNotes (spec §4.3's selection predicates).
type NoteFilter struct {
	Types      []string
	Tag        string
	ExcludeMOC bool
	MinValue   int
}

// ListNotes returns notes matching filter, ordered (created asc, id asc)
// for deterministic downstream assembly (spec §4.3/§7).
func ListNotes(ctx context.Context, x execer, filter NoteFilter) ([]IndexedNote, error) {
	query := `SELECT DISTINCT notes.id, notes.title, notes.type, notes.created, notes.updated,
		notes.value, notes.has_value, notes.verified, notes.summary, notes.compactor, notes.path, notes.body_hash
		FROM notes`
	var conds []string
	var args []any

	if filter.Tag != "" {
		query += ` JOIN tags ON tags.note_id = notes.id`
		conds = append(conds, `tags.tag = ?`)
		args = append(args, filter.Tag)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conds = append(conds, `notes.type IN (`+strings.Join(placeholders, ",")+`)`)
	}
	if filter.ExcludeMOC {
		conds = append(conds, `notes.type != 'moc'`)
	}
	if filter.MinValue > 0 {
		conds = append(conds, `notes.value >= ?`)
		args = append(args, filter.MinValue)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY notes.created ASC, notes.id ASC`

	rows, err := x.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexedNote
	for rows.Next() {
		var n IndexedNote
		var hasValue, verified int
		if err := rows.Scan(&n.ID, &n.Title, &n.Type, &n.Created, &n.Updated, &n.Value, &hasValue, &verified, &n.Summary, &n.Compactor, &n.Path, &n.BodyHash); err != nil {
			return nil, err
		}
		n.HasValue = hasValue != 0
		n.Verified = verified != 0
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		tags, err := listTags(ctx, x, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}
