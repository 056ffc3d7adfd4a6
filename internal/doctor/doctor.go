// Package doctor implements C10: the invariant checks over a qipu store
// (duplicate IDs, broken links, invalid frontmatter, compaction
// invariants, semantic-link misuse, orphan notes, index/file divergence,
// schema version mismatch) and safe, unambiguous auto-repair (spec §4.6).
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/db"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/store"
)

// Severity classifies how serious an issue is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check identifies which of the eight invariant checks an issue came from.
type Check string

const (
	CheckDuplicateIDs      Check = "duplicate-ids"
	CheckBrokenLinks       Check = "broken-links"
	CheckInvalidFrontmatter Check = "invalid-frontmatter"
	CheckCompaction        Check = "compaction-invariants"
	CheckSemanticMisuse    Check = "semantic-link-misuse"
	CheckOrphans           Check = "orphan-notes"
	CheckIndexDivergence   Check = "index-file-divergence"
	CheckSchemaVersion     Check = "schema-version"
)

// Issue is one reported problem.
type Issue struct {
	Check    Check
	Severity Severity
	Message  string
	NoteID   string
	Path     string
	Fixable  bool
}

// Report is the full result of running Check.
type Report struct {
	Issues []Issue
}

func (r *Report) add(i Issue) { r.Issues = append(r.Issues, i) }

// HasErrors reports whether any issue is SeverityError.
func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run executes all eight checks against an open store.
func Run(ctx context.Context, s *store.Store) (*Report, error) {
	report := &Report{}

	if s.Cfg.StoreVersion != config.StoreVersion {
		report.add(Issue{
			Check: CheckSchemaVersion, Severity: SeverityError,
			Message: fmt.Sprintf("store version %d does not match binary version %d", s.Cfg.StoreVersion, config.StoreVersion),
			Fixable: false,
		})
	}

	paths, err := s.ListNoteFiles()
	if err != nil {
		return nil, err
	}

	byID := map[string][]string{}
	var parsed []*note.Note
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(s.Root, p)
		n, perr := note.Parse(raw, rel)
		if perr != nil {
			report.add(Issue{
				Check: CheckInvalidFrontmatter, Severity: SeverityError,
				Message: perr.Error(), Path: rel, Fixable: false,
			})
			continue
		}
		byID[n.ID] = append(byID[n.ID], rel)
		parsed = append(parsed, n)
	}

	checkDuplicateIDs(report, byID)

	notesByID := make(map[string]*note.Note, len(parsed))
	for _, n := range parsed {
		notesByID[n.ID] = n
	}
	checkSemanticAndCompaction(report, notesByID)
	checkOrphans(report, notesByID)

	if err := checkIndexDivergence(ctx, report, s, parsed); err != nil {
		return nil, err
	}
	if err := checkBrokenLinksFromIndex(ctx, report, s); err != nil {
		return nil, err
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		if report.Issues[i].Check != report.Issues[j].Check {
			return report.Issues[i].Check < report.Issues[j].Check
		}
		return report.Issues[i].NoteID < report.Issues[j].NoteID
	})
	return report, nil
}

func checkDuplicateIDs(report *Report, byID map[string][]string) {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		paths := byID[id]
		if len(paths) > 1 {
			report.add(Issue{
				Check: CheckDuplicateIDs, Severity: SeverityError, NoteID: id,
				Message: fmt.Sprintf("id %s used by %d files: %v", id, len(paths), paths),
				Fixable: false,
			})
		}
	}
}

// checkSemanticAndCompaction validates the compaction ontology: no
// cycles, no multi-compactor, no self-compaction, no dangling
// compaction references; and flags a handful of semantic-link misuses
// ("part-of" to a missing parent; "follows" cycles) (spec §4.6).
func checkSemanticAndCompaction(report *Report, notesByID map[string]*note.Note) {
	compactedBy := map[string][]string{} // target -> compactors
	for _, n := range notesByID {
		for _, l := range n.Links {
			switch l.Type {
			case "compacts":
				if l.ID == n.ID {
					report.add(Issue{Check: CheckCompaction, Severity: SeverityError, NoteID: n.ID,
						Message: "note compacts itself", Fixable: false})
				}
				if _, ok := notesByID[l.ID]; !ok {
					report.add(Issue{Check: CheckCompaction, Severity: SeverityError, NoteID: n.ID,
						Message: fmt.Sprintf("compacts dangling reference %s", l.ID), Fixable: false})
				}
				compactedBy[l.ID] = append(compactedBy[l.ID], n.ID)
			case "part-of":
				if _, ok := notesByID[l.ID]; !ok {
					report.add(Issue{Check: CheckSemanticMisuse, Severity: SeverityError, NoteID: n.ID,
						Message: fmt.Sprintf("part-of references missing parent %s", l.ID), Fixable: false})
				}
			}
		}
	}
	for target, compactors := range compactedBy {
		if len(compactors) > 1 {
			report.add(Issue{Check: CheckCompaction, Severity: SeverityError, NoteID: target,
				Message: fmt.Sprintf("compacted by more than one note: %v", compactors), Fixable: false})
		}
	}

	snap := snapshotFromNotes(notesByID)
	for id := range notesByID {
		if _, err := snap.Canon(id); err != nil {
			report.add(Issue{Check: CheckCompaction, Severity: SeverityError, NoteID: id,
				Message: err.Error(), Fixable: false})
		}
	}
	checkFollowsCycles(report, notesByID)
}

func checkFollowsCycles(report *Report, notesByID map[string]*note.Note) {
	next := map[string]string{}
	for _, n := range notesByID {
		for _, l := range n.Links {
			if l.Type == "follows" {
				next[n.ID] = l.ID
			}
		}
	}
	for start := range next {
		visited := map[string]bool{}
		cur := start
		for {
			if visited[cur] {
				report.add(Issue{Check: CheckSemanticMisuse, Severity: SeverityError, NoteID: start,
					Message: "follows cycle detected", Fixable: false})
				break
			}
			visited[cur] = true
			nxt, ok := next[cur]
			if !ok {
				break
			}
			cur = nxt
		}
	}
}

func snapshotFromNotes(notesByID map[string]*note.Note) *graph.Snapshot {
	nodes := make(map[string]graph.NodeInfo, len(notesByID))
	for id, n := range notesByID {
		compactor := ""
		for _, l := range n.Links {
			if l.Type == "compacted-by" {
				compactor = l.ID
			}
		}
		nodes[id] = graph.NodeInfo{ID: id, Value: n.EffectiveValue(), HasValue: n.HasValue, Compactor: compactor}
	}
	// also derive compactor from the other side's "compacts" links
	for _, n := range notesByID {
		for _, l := range n.Links {
			if l.Type == "compacts" {
				if target, ok := nodes[l.ID]; ok && target.Compactor == "" {
					target.Compactor = n.ID
					nodes[l.ID] = target
				}
			}
		}
	}
	return &graph.Snapshot{Nodes: nodes}
}

// checkOrphans flags non-MOC notes with no in-edges and no out-edges.
func checkOrphans(report *Report, notesByID map[string]*note.Note) {
	hasOut := map[string]bool{}
	hasIn := map[string]bool{}
	for _, n := range notesByID {
		for _, l := range n.Links {
			hasOut[n.ID] = true
			hasIn[l.ID] = true
		}
	}
	ids := make([]string, 0, len(notesByID))
	for id := range notesByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := notesByID[id]
		if n.Type == note.TypeMOC {
			continue
		}
		if !hasOut[id] && !hasIn[id] {
			report.add(Issue{Check: CheckOrphans, Severity: SeverityWarning, NoteID: id,
				Message: "note has no incoming or outgoing links", Fixable: false})
		}
	}
}

// checkIndexDivergence reports notes present on disk but missing (or
// stale) in the index, and index rows with no backing file.
func checkIndexDivergence(ctx context.Context, report *Report, s *store.Store, parsed []*note.Note) error {
	onDisk := make(map[string]bool, len(parsed))
	for _, n := range parsed {
		onDisk[n.ID] = true
		indexed, err := db.GetNote(ctx, s.DB.DB(), n.ID)
		if err != nil {
			return err
		}
		if indexed == nil {
			report.add(Issue{Check: CheckIndexDivergence, Severity: SeverityWarning, NoteID: n.ID,
				Message: "note file exists but is missing from the index", Fixable: true})
		}
	}

	indexed, err := db.ListNotes(ctx, s.DB.DB(), db.NoteFilter{})
	if err != nil {
		return err
	}
	for _, row := range indexed {
		if !onDisk[row.ID] {
			report.add(Issue{Check: CheckIndexDivergence, Severity: SeverityWarning, NoteID: row.ID,
				Message: "index row has no backing file", Fixable: true})
		}
	}
	return nil
}

// checkBrokenLinksFromIndex reports edges recorded as unresolved.
func checkBrokenLinksFromIndex(ctx context.Context, report *Report, s *store.Store) error {
	unresolved, err := db.ListUnresolved(ctx, s.DB.DB())
	if err != nil {
		return err
	}
	for _, u := range unresolved {
		report.add(Issue{Check: CheckBrokenLinks, Severity: SeverityWarning, NoteID: u.From,
			Message: fmt.Sprintf("link to %s (%s) does not resolve", u.To, u.Type), Fixable: true})
	}
	return nil
}

// Fix re-runs a full index rebuild for the issues this package marks
// Fixable: a stale/missing index row is corrected by rebuilding from the
// files, and unresolved edges are recomputed from the current note set,
// so a link whose target note exists is cleared while a link to a note
// that is absent from the files is still reported afterward. Issues not
// marked Fixable are never touched
// (spec §4.6: "ambiguous issues are reported but not altered").
func Fix(ctx context.Context, s *store.Store) error {
	return s.Rebuild(ctx)
}
