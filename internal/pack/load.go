package pack

import (
	"context"

	"github.com/mwaldstein/qipu/internal/doctor"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/store"
	"github.com/mwaldstein/qipu/internal/telemetry"
)

// Strategy is a conflict-resolution mode shared by `load` and workspace
// `merge` (spec §4.5).
type Strategy string

const (
	StrategySkip       Strategy = "skip"
	StrategyOverwrite  Strategy = "overwrite"
	StrategyMergeLinks Strategy = "merge-links"
	StrategyRename     Strategy = "rename"
)

// Conflict describes one ID clash found during a dry-run or a load.
type Conflict struct {
	IncomingID string
	Resolution string // "skip" | "overwrite" | "merge-links" | "rename"
	NewID      string // set when Resolution == "rename"
}

// LoadReport summarizes what a load did.
type LoadReport struct {
	Written   []string // IDs actually written (post-rename, if applicable)
	Skipped   []string
	Conflicts []Conflict
}

// Plan computes the conflict resolution for every note in p against an
// already-loaded map of existing note IDs, without mutating anything
// (used by workspace merge's --dry-run; Load resolves conflicts itself).
func Plan(p *Pack, existing map[string]*note.Note, strategy Strategy) []Conflict {
	var conflicts []Conflict
	for _, n := range p.Notes {
		if _, clash := existing[n.ID]; !clash {
			continue
		}
		conflicts = append(conflicts, Conflict{IncomingID: n.ID, Resolution: string(strategy)})
	}
	return conflicts
}

// Load materializes p into dest according to strategy, then validates
// the result with the doctor invariant checks (spec §4.5: "Load must
// validate target consistency afterward").
func Load(ctx context.Context, dest *store.Store, p *Pack, strategy Strategy) (*LoadReport, error) {
	defer telemetry.Span(ctx, "pack.Load")()

	existingNotes, err := dest.LoadAll()
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*note.Note, len(existingNotes))
	for _, n := range existingNotes {
		existing[n.ID] = n
	}

	report := &LoadReport{}
	rename := map[string]string{} // old incoming ID -> new ID, for link rewriting

	for _, n := range p.Notes {
		target, clash := existing[n.ID]
		switch {
		case !clash:
			if err := writeIncoming(dest, n); err != nil {
				return nil, err
			}
			report.Written = append(report.Written, n.ID)

		case strategy == StrategySkip:
			report.Skipped = append(report.Skipped, n.ID)
			report.Conflicts = append(report.Conflicts, Conflict{IncomingID: n.ID, Resolution: "skip"})

		case strategy == StrategyOverwrite:
			if err := writeIncoming(dest, n); err != nil {
				return nil, err
			}
			report.Written = append(report.Written, n.ID)
			report.Conflicts = append(report.Conflicts, Conflict{IncomingID: n.ID, Resolution: "overwrite"})

		case strategy == StrategyMergeLinks:
			merged := mergeLinks(target, n, p.Edges)
			if err := dest.Put(merged); err != nil {
				return nil, err
			}
			report.Written = append(report.Written, n.ID)
			report.Conflicts = append(report.Conflicts, Conflict{IncomingID: n.ID, Resolution: "merge-links"})

		case strategy == StrategyRename:
			newID, err := dest.NewUniqueID()
			if err != nil {
				return nil, err
			}
			rename[n.ID] = newID
			renamed := *n
			renamed.ID = newID
			if err := writeIncoming(dest, &renamed); err != nil {
				return nil, err
			}
			report.Written = append(report.Written, newID)
			report.Conflicts = append(report.Conflicts, Conflict{IncomingID: n.ID, Resolution: "rename", NewID: newID})

		default:
			return nil, qerr.Usagef("unknown load strategy %q", strategy)
		}
	}

	if len(rename) > 0 {
		if err := rewriteRenamedLinks(dest, rename); err != nil {
			return nil, err
		}
	}

	if len(p.Attachments) > 0 {
		if err := WriteAttachments(dest.AttachmentsDir(), p.Attachments); err != nil {
			return nil, err
		}
	}

	if err := dest.Rebuild(ctx); err != nil {
		return nil, err
	}
	result, err := doctor.Run(ctx, dest)
	if err != nil {
		return nil, err
	}
	if result.HasErrors() {
		return report, qerr.Dataf("load produced %d doctor error(s); inspect with `doctor`", countErrors(result))
	}
	return report, nil
}

func countErrors(r *doctor.Report) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == doctor.SeverityError {
			n++
		}
	}
	return n
}

func writeIncoming(dest *store.Store, n *note.Note) error {
	copied := *n
	return dest.Put(&copied)
}

// mergeLinks keeps the target's title/body and unions its links with the
// incoming note's links, restricted to edges the pack actually carries
// for this note (spec §4.5).
func mergeLinks(target, incoming *note.Note, edges []Edge) *note.Note {
	merged := *target
	seen := map[string]bool{}
	for _, l := range target.Links {
		seen[l.ID+"|"+l.Type] = true
	}
	var unioned []note.Link
	unioned = append(unioned, target.Links...)
	for _, e := range edges {
		if e.From != incoming.ID {
			continue
		}
		key := e.To + "|" + e.Type
		if !seen[key] {
			seen[key] = true
			unioned = append(unioned, note.Link{ID: e.To, Type: e.Type})
		}
	}
	merged.Links = unioned
	return &merged
}

// rewriteRenamedLinks updates every note currently in dest whose links
// point at a pack note ID that got renamed, so internal pack references
// stay consistent (spec §4.5: "rewrite links internal to the pack").
func rewriteRenamedLinks(dest *store.Store, rename map[string]string) error {
	notes, err := dest.LoadAll()
	if err != nil {
		return err
	}
	for _, n := range notes {
		changed := false
		for i, l := range n.Links {
			if newID, ok := rename[l.ID]; ok {
				n.Links[i].ID = newID
				changed = true
			}
		}
		if changed {
			if err := dest.Put(n); err != nil {
				return err
			}
		}
	}
	return nil
}
