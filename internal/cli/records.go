package cli

import (
	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
)

// recordsForNotes renders the records format (spec §6) for notes, with
// edges supplied from snap (nil snap means no E lines are emitted).
func recordsForNotes(storeRoot string, notes []*note.Note, snap *graph.Snapshot, maxChars int) (string, bool, error) {
	edgesFor := func(id string) []string { return nil }
	if snap != nil {
		edgesFor = func(id string) []string {
			var lines []string
			for _, e := range snap.Edges {
				if e.From == id {
					lines = append(lines, "E "+id+" "+e.Type+" "+e.To+" "+e.Source)
				}
			}
			return lines
		}
	}
	return assembler.Records(storeRoot, "list", notes, edgesFor, maxChars)
}
