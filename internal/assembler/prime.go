package assembler

import (
	"fmt"
	"sort"

	"github.com/mwaldstein/qipu/internal/note"
)

// commandReference is the short command list shown in `prime` output.
var commandReference = []string{
	"qipu list --tag <tag>         list notes by tag",
	"qipu search <query>           full-text search",
	"qipu show <id>                print one note",
	"qipu link tree <id>           traverse links from a note",
	"qipu context --note <id>      assemble a context bundle",
}

// DefaultPrimeBudget targets the middle of the spec's ~4-8k character
// window (spec §4.4).
const DefaultPrimeBudget = 6000

// Prime renders the session-opener: header, command reference, top MOCs
// by updated, and recent notes by updated, bounded by maxChars.
func Prime(storePath string, allNotes []*note.Note, maxChars int) (string, bool) {
	if maxChars <= 0 {
		maxChars = DefaultPrimeBudget
	}
	sink := NewSink(maxChars)

	sink.TryWrite(fmt.Sprintf("# Qipu Session\n\nStore: %s\n\n## Commands\n\n", storePath))
	for _, c := range commandReference {
		sink.TryWrite("- " + c + "\n")
	}

	mocs := byUpdatedDesc(filterType(allNotes, note.TypeMOC))
	sink.TryWrite("\n## Top MOCs\n\n")
	for _, n := range top(mocs, 10) {
		if !sink.TryWrite(fmt.Sprintf("- %s (%s)\n", n.Title, n.ID)) {
			break
		}
	}

	recent := byUpdatedDesc(allNotes)
	sink.TryWrite("\n## Recent Notes\n\n")
	for _, n := range top(recent, 15) {
		if !sink.TryWrite(fmt.Sprintf("- %s (%s, %s)\n", n.Title, n.ID, n.Type)) {
			break
		}
	}

	return sink.String(), sink.Truncated()
}

func filterType(notes []*note.Note, t note.Type) []*note.Note {
	var out []*note.Note
	for _, n := range notes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func byUpdatedDesc(notes []*note.Note) []*note.Note {
	out := append([]*note.Note{}, notes...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Updated.Equal(out[j].Updated) {
			return out[i].Updated.After(out[j].Updated)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func top(notes []*note.Note, n int) []*note.Note {
	if len(notes) > n {
		return notes[:n]
	}
	return notes
}
