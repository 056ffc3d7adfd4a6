// Package linkextract pulls inline wiki/Markdown links out of a note body
// (spec §3/§4/§6); merging them with typed frontmatter links happens in
// the index (db's noteEdges). Inline links always carry type "related";
// external URLs are ignored.
package linkextract

import (
	"regexp"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
)

// wikiLinkPattern matches [[id]] and [[id|label]].
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)

// mdLinkPattern matches [label](target.md) style Markdown links. The
// target may be a bare ID ("qp-ab12.md") or a relative path ending in
// "<id>.md"; external URLs (scheme present) are excluded by requiring a
// ".md" suffix and the absence of "://".
var mdLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)]+\.md)\)`)

// Extract returns the inline-link IDs found in body, deduplicated and
// order-preserving on first occurrence.
func Extract(body string) []string {
	seen := map[string]bool{}
	var out []string

	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, m := range wikiLinkPattern.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, m := range mdLinkPattern.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if strings.Contains(target, "://") {
			continue
		}
		// Take the final path segment, strip ".md", treat as an ID.
		target = strings.TrimSuffix(target, ".md")
		if idx := strings.LastIndexByte(target, '/'); idx >= 0 {
			target = target[idx+1:]
		}
		add(target)
	}
	return out
}

// InlineLinks converts extracted IDs into note.Link values of type
// "related", the fixed type for inline/body-derived edges (spec §3).
func InlineLinks(body string) []note.Link {
	ids := Extract(body)
	out := make([]note.Link, 0, len(ids))
	for _, id := range ids {
		out = append(out, note.Link{ID: id, Type: "related"})
	}
	return out
}
