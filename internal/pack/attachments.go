package pack

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
)

// attachmentRefPattern matches Markdown image/link targets under an
// attachments/ path, e.g. "![diagram](attachments/diagram.png)" or
// "[sheet](../attachments/sheet.csv)".
var attachmentRefPattern = regexp.MustCompile(`\]\(([^)]*attachments/[^)]+)\)`)

// ReferencedAttachments returns the attachments/-relative paths a set of
// notes reference in their bodies, deduplicated and sorted.
func ReferencedAttachments(notes []*note.Note) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range notes {
		for _, m := range attachmentRefPattern.FindAllStringSubmatch(n.Body, -1) {
			target := m[1]
			if idx := strings.Index(target, "attachments/"); idx >= 0 {
				target = target[idx+len("attachments/"):]
			}
			target = strings.TrimSpace(target)
			if target == "" || seen[target] {
				continue
			}
			seen[target] = true
			out = append(out, target)
		}
	}
	sort.Strings(out)
	return out
}

// LoadAttachments reads the named attachments/-relative paths from dir.
func LoadAttachments(dir string, paths []string) ([]Attachment, error) {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(dir, p))
		if err != nil {
			return nil, err
		}
		out = append(out, Attachment{Path: p, Data: data})
	}
	return out, nil
}

// WriteAttachments writes each attachment to dir, creating parent
// directories as needed. Existing files are overwritten, matching the
// load conflict strategy already chosen for the notes that reference
// them.
func WriteAttachments(dir string, attachments []Attachment) error {
	for _, a := range attachments {
		dest := filepath.Join(dir, a.Path)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, a.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
