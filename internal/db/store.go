// Package db implements C3: the SQLite-backed operational index that
// caches notes, tags, edges and full-text postings derived from the
// Markdown note files. Every row here is disposable — on schema
// mismatch or corruption the index is rebuilt from the note tree,
// never the other way around (spec §5).
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is bumped whenever schema.sql changes shape; a stored
// value that disagrees triggers a full rebuild rather than a migration,
// mirroring the "derived, never authoritative" contract of spec §5.
const SchemaVersion = 1

const metaKeySchemaVersion = "schema_version"

// Store wraps the operational index database for a single qipu store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the index at dbPath. If the existing database
// has an incompatible schema (missing table/column, or a recorded
// schema_version that disagrees with SchemaVersion) it is deleted and
// rebuilt empty; the caller is expected to then run a full sync from
// the note tree.
func Open(dbPath string) (*Store, error) {
	store, err := openDB(dbPath)
	if err != nil {
		if isSchemaError(err) {
			if rmErr := removeDBFiles(dbPath); rmErr != nil {
				return nil, fmt.Errorf("remove incompatible index: %w", rmErr)
			}
			return openDB(dbPath)
		}
		return nil, err
	}

	version, err := store.getMeta(context.Background(), metaKeySchemaVersion)
	if err != nil {
		store.Close()
		return nil, err
	}
	if version != "" && version != fmt.Sprintf("%d", SchemaVersion) {
		store.Close()
		if rmErr := removeDBFiles(dbPath); rmErr != nil {
			return nil, fmt.Errorf("remove stale index: %w", rmErr)
		}
		return openDB(dbPath)
	}
	if version == "" {
		if err := store.setMeta(context.Background(), metaKeySchemaVersion, fmt.Sprintf("%d", SchemaVersion)); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func isSchemaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "SQL logic error")
}

func removeDBFiles(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func openDB(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	connStr := "file:" + escapedPath + "?_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DB exposes the underlying connection for ad-hoc read queries (search,
// doctor) that don't warrant a dedicated wrapper method.
func (s *Store) DB() *sql.DB {
	return s.db
}
