// Package store implements C1: locating and initializing a qipu store
// (the .qipu directory alongside a project) and orchestrating reads and
// writes across the note files, the codec, and the operational index.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mwaldstein/qipu/internal/cache"
	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/db"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/telemetry"
)

// parsedNoteTTL bounds how long a parsed note is trusted in fileCache.
// A qipu invocation is a single short-lived process, so this only needs
// to outlive one command's worth of repeated LoadAll calls (doctor
// --fix's run/fix/run, sync's stale check plus rebuild, workspace
// merge's dry-run plan) — not to survive across invocations.
const parsedNoteTTL = 30 * time.Second

// DirName is the store directory created alongside a project.
const DirName = ".qipu"

// boundaryMarkers mark a project root; discovery stops ascending past
// the first directory that contains one of these, even without a store.
var boundaryMarkers = []string{".git", ".hg", ".svn", "Cargo.toml", "package.json", "go.mod", "pyproject.toml"}

// Store is an open handle on a qipu store: its config and operational
// index, rooted at <projectRoot>/.qipu.
type Store struct {
	ProjectRoot string
	Root        string // ProjectRoot/.qipu
	Cfg         *config.Config
	DB          *db.Store

	fileCache *cache.Cache[*note.Note]
}

// Discover walks upward from start looking for a .qipu directory,
// stopping at the first project-boundary marker or filesystem root
// (spec §4 store discovery contract).
func Discover(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		if hasBoundaryMarker(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", qerr.Usagef("no qipu store found searching upward from %s", start)
}

func hasBoundaryMarker(dir string) bool {
	for _, m := range boundaryMarkers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}

// Init creates a new store at projectRoot/.qipu with the standard
// subdirectories and default config, then returns it open.
func Init(projectRoot string) (*Store, error) {
	return InitAt(projectRoot, filepath.Join(projectRoot, DirName))
}

// InitAt creates a new store rooted exactly at root (rather than at
// projectRoot/.qipu) and returns it open. projectRoot is recorded on the
// returned Store but plays no role in where files are written; this is
// the primitive Init builds on, and the one a workspace store (a
// self-contained store embedded under a primary store's workspaces/
// directory, spec §4.5) uses directly since its root is not a
// project-adjacent .qipu directory.
func InitAt(projectRoot, root string) (*Store, error) {
	if _, err := os.Stat(root); err == nil {
		return nil, qerr.Usagef("store already exists at %s", root)
	}

	for _, sub := range []string{"", "notes", "mocs", "attachments", "templates", "workspaces"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, qerr.Runtime("create store directories", err)
		}
	}

	cfg := config.DefaultConfig()
	if err := config.Save(root, cfg); err != nil {
		return nil, qerr.Runtime("write default config", err)
	}

	return OpenAt(projectRoot, root)
}

// Open loads the config and index for an already-initialized store.
func Open(projectRoot string) (*Store, error) {
	return OpenAt(projectRoot, filepath.Join(projectRoot, DirName))
}

// OpenAt loads the config and index for a store rooted exactly at root.
func OpenAt(projectRoot, root string) (*Store, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, qerr.Dataf("load config: %v", err)
	}
	if cfg.StoreVersion != config.StoreVersion {
		return nil, qerr.Data(fmt.Sprintf(
			"store version %d is not supported by this binary (expects %d)",
			cfg.StoreVersion, config.StoreVersion))
	}

	index, err := db.Open(filepath.Join(root, "index.db"))
	if err != nil {
		return nil, qerr.Runtime("open index", err)
	}

	return &Store{
		ProjectRoot: projectRoot, Root: root, Cfg: cfg, DB: index,
		fileCache: cache.New[*note.Note](parsedNoteTTL, 0),
	}, nil
}

// Close releases the index handle and stops the note-parse cache's
// background eviction goroutine.
func (s *Store) Close() error {
	s.fileCache.Stop()
	return s.DB.Close()
}

// lockPath is the advisory single-writer lock file (spec §5): WAL mode
// serializes writers to the index file itself. The lock is taken by the
// `index` and `sync` commands around a full rebuild; single-note writes
// through Create and Put do not take it.
func (s *Store) lockPath() string { return filepath.Join(s.Root, ".qipu.lock") }

// Unlock releases a lock acquired by Lock.
type Unlock func() error

// Lock acquires the store's single-writer advisory lock, blocking until
// it is free or ctx is done. The lock is a plain exclusive-create file:
// sufficient for the single-machine, single-process-at-a-time contract
// this store targets, and symmetric with the teacher's pattern of a
// small sentinel file guarding a shared resource.
func (s *Store) Lock(ctx context.Context) (Unlock, error) {
	path := s.lockPath()
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() error { return os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, qerr.Runtime("acquire store lock", err)
		}
		select {
		case <-ctx.Done():
			return nil, qerr.Interrupted()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// NotesDir and MOCsDir are the on-disk homes for the two file-backed
// note directories (spec §3).
func (s *Store) NotesDir() string       { return filepath.Join(s.Root, "notes") }
func (s *Store) MOCsDir() string        { return filepath.Join(s.Root, "mocs") }
func (s *Store) AttachmentsDir() string { return filepath.Join(s.Root, "attachments") }
func (s *Store) TemplatesDir() string   { return filepath.Join(s.Root, "templates") }

// DirFor returns the directory a note of type t belongs in.
func (s *Store) DirFor(t note.Type) string {
	if t == note.TypeMOC {
		return s.MOCsDir()
	}
	return s.NotesDir()
}

// ListNoteFiles walks notes/ and mocs/ and returns every .md path.
func (s *Store) ListNoteFiles() ([]string, error) {
	var out []string
	for _, dir := range []string{s.NotesDir(), s.MOCsDir()} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".md" {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LoadAll parses every note file in the store.
func (s *Store) LoadAll() ([]*note.Note, error) {
	paths, err := s.ListNoteFiles()
	if err != nil {
		return nil, err
	}
	notes := make([]*note.Note, 0, len(paths))
	for _, p := range paths {
		n, err := s.loadFile(p)
		if err != nil {
			return nil, qerr.Dataf("parse %s: %v", p, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// loadFile parses a note file, serving from fileCache when the file's
// mtime hasn't moved since the cached parse (spec §4 imposes no
// invalidation contract here; this cache only spans one process's
// repeated LoadAll calls, e.g. doctor --fix's run/fix/run cycle).
func (s *Store) loadFile(path string) (*note.Note, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	cacheKey := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if cached, ok := s.fileCache.Get(cacheKey); ok {
		return cached, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		rel = path
	}
	n, err := note.Parse(raw, rel)
	if err != nil {
		return nil, err
	}
	s.fileCache.Set(cacheKey, n)
	return n, nil
}

// Create writes a new note file to disk and indexes it, generating a
// collision-free ID (spec §4.1's widening rule).
func (s *Store) Create(n *note.Note) error {
	id, err := s.newUniqueID()
	if err != nil {
		return err
	}
	n.ID = id

	dir := s.DirFor(n.Type)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return qerr.Runtime("create note directory", err)
	}
	filename := note.Filename(n.ID, n.Title)
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err == nil {
		return qerr.Usagef("note file already exists: %s", path)
	}

	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		rel = path
	}
	n.Path = rel

	raw, err := note.Render(n)
	if err != nil {
		return qerr.Dataf("render note: %v", err)
	}
	if err := atomicWriteFile(path, raw, 0o644); err != nil {
		return qerr.Runtime("write note file", err)
	}

	return s.DB.SyncNote(context.Background(), n, bodyHash(raw), time.Now().UTC().Format(time.RFC3339))
}

// Put writes n, which must already carry a non-empty ID, to disk and
// (re)indexes it. If a file for that ID already exists elsewhere in the
// store it is removed first, so Put can move a note between type
// directories and so pack load's overwrite/rename/merge-links
// strategies can materialize an incoming note without leaving a stale
// duplicate behind.
func (s *Store) Put(n *note.Note) error {
	if n.ID == "" {
		return qerr.Runtime("put note", fmt.Errorf("note has no id"))
	}

	dir := s.DirFor(n.Type)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return qerr.Runtime("create note directory", err)
	}
	filename := note.Filename(n.ID, n.Title)
	path := filepath.Join(dir, filename)

	if existing, err := db.GetNote(context.Background(), s.DB.DB(), n.ID); err == nil && existing != nil {
		existingPath := filepath.Join(s.Root, existing.Path)
		if existingPath != path {
			_ = os.Remove(existingPath)
		}
	}

	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		rel = path
	}
	n.Path = rel

	raw, err := note.Render(n)
	if err != nil {
		return qerr.Dataf("render note: %v", err)
	}
	if err := atomicWriteFile(path, raw, 0o644); err != nil {
		return qerr.Runtime("write note file", err)
	}

	return s.DB.SyncNote(context.Background(), n, bodyHash(raw), time.Now().UTC().Format(time.RFC3339))
}

// NewUniqueID mints a collision-free ID using the same widening rule as
// Create (spec §4.1), for callers that must assign an ID before they
// have a full note to hand to Create (e.g. pack load's rename strategy).
func (s *Store) NewUniqueID() (string, error) { return s.newUniqueID() }

func (s *Store) newUniqueID() (string, error) {
	hexLen := 4
	for attempt := 0; attempt < 8; attempt++ {
		id, err := note.NewID(hexLen)
		if err != nil {
			return "", qerr.Runtime("generate id", err)
		}
		existing, err := db.GetNote(context.Background(), s.DB.DB(), id)
		if err != nil {
			return "", qerr.Runtime("check id collision", err)
		}
		if existing == nil {
			return id, nil
		}
		hexLen++ // widen on collision, per spec §4.1
	}
	return "", qerr.Runtime("generate id", fmt.Errorf("could not find a free id after widening"))
}

func bodyHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// atomicWriteFile writes data to a sibling temp file, then renames it
// into place. A rename within the same directory is atomic on every
// filesystem qipu targets, so a signal or crash mid-write leaves either
// the old file untouched or the new one fully written — never a torn
// note (spec §5: "no torn writes"). The temp name carries a uuid suffix
// so concurrent writers to the same path never collide on the
// intermediate file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Rebuild drops and rewrites the entire index from the note files on
// disk, the authoritative source (spec §5/§7).
func (s *Store) Rebuild(ctx context.Context) error {
	defer telemetry.Span(ctx, "store.Rebuild")()

	notes, err := s.LoadAll()
	if err != nil {
		return err
	}
	hashOf := map[string]string{}
	for _, n := range notes {
		path := filepath.Join(s.Root, n.Path)
		raw, err := os.ReadFile(path)
		if err != nil {
			return qerr.Runtime("read note for hashing", err)
		}
		hashOf[n.ID] = bodyHash(raw)
	}
	return s.DB.FullSync(ctx, notes, func(n *note.Note) string { return hashOf[n.ID] }, time.Now().UTC().Format(time.RFC3339))
}
