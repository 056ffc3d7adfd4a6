// Package pack implements C8: the deterministic single-file dump/load
// artifact for a slice of a store (spec §4.5), and the conflict
// strategies used both by `load` and by workspace `merge`.
package pack

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/note"
)

// FormatVersion is the pack file format version this binary writes and
// the minimum version it can read.
const FormatVersion = 1

// Attachment is one file under the store's attachments/ directory
// referenced by at least one packed note.
type Attachment struct {
	Path string // relative to the store's attachments/ directory
	Data []byte
}

// Edge mirrors a frontmatter link as it appears in the pack, independent
// of the graph engine's inline-derived edges (only typed links travel
// in a pack; inline links are re-derived from body text on load).
type Edge struct {
	From string
	To   string
	Type string
}

// Header carries the summary counts written at the top of a pack file.
type Header struct {
	Version          int
	StoreVersion     int
	Created          time.Time
	NotesCount       int
	LinksCount       int
	AttachmentsCount int
}

// Pack is the decoded in-memory form of a pack file.
type Pack struct {
	Header      Header
	Notes       []*note.Note
	Edges       []Edge
	Attachments []Attachment
}

// Write serializes p to w in the line-oriented pack format (spec §4.5):
// a header line, then N/L/B/A/D record blocks, then END.
func Write(w io.Writer, p *Pack) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "HEADER version=%d store_version=%d created=%s notes=%d links=%d attachments=%d\n",
		p.Header.Version, p.Header.StoreVersion, p.Header.Created.UTC().Format(time.RFC3339),
		len(p.Notes), len(p.Edges), len(p.Attachments))

	for _, n := range p.Notes {
		writeNoteRecord(bw, n)
	}
	for _, e := range p.Edges {
		fmt.Fprintf(bw, "L %s %s %s\n", e.From, e.To, e.Type)
	}
	for _, a := range p.Attachments {
		fmt.Fprintf(bw, "A %s %d\n", quoteField(a.Path), len(a.Data))
		encoded := base64.StdEncoding.EncodeToString(a.Data)
		fmt.Fprintf(bw, "D %s\n", encoded)
	}
	fmt.Fprintln(bw, "END")
	return bw.Flush()
}

func writeNoteRecord(bw *bufio.Writer, n *note.Note) {
	fmt.Fprintf(bw, "N %s %s %s tags=%s value=%d has_value=%t verified=%t created=%s updated=%s summary=%s source=%s sources=%s custom=%s\n",
		n.ID, n.Type, quoteField(n.Title), strings.Join(n.Tags, ","),
		n.Value, n.HasValue, n.Verified,
		n.Created.UTC().Format(time.RFC3339), n.Updated.UTC().Format(time.RFC3339),
		quoteField(n.Summary), quoteField(n.Source),
		encodeJSON(n.Sources), encodeJSON(customNative(n.Custom)))
	encoded := base64.StdEncoding.EncodeToString([]byte(n.Body))
	fmt.Fprintf(bw, "B %s %s\n", n.ID, encoded)
}

// customNative converts a note's custom-value map to plain Go data so it
// round-trips through JSON without a bespoke Value marshaler.
func customNative(m map[string]note.Value) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Native()
	}
	return out
}

// encodeJSON base64-wraps a JSON encoding of v so the result is always a
// single whitespace-free pack field, regardless of what v contains.
func encodeJSON(v any) string {
	if v == nil {
		return "-"
	}
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return "-"
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// quoteField quotes a field containing whitespace, matching the records
// grammar's quoting rule (spec §6) so pack lines stay single-line and
// tokenizable by split-on-whitespace plus a quote-aware scanner.
func quoteField(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// BuildHeader derives a Header from the contents being packed.
func BuildHeader(notes []*note.Note, edges []Edge, attachments []Attachment, created time.Time) Header {
	return Header{
		Version:          FormatVersion,
		StoreVersion:     config.StoreVersion,
		Created:          created,
		NotesCount:       len(notes),
		LinksCount:       len(edges),
		AttachmentsCount: len(attachments),
	}
}

// EdgesFromNotes extracts the typed frontmatter links among the given
// notes, restricted to edges whose target is also included (spec §4.5:
// pack links are "restricted to edges referenced in the pack").
func EdgesFromNotes(notes []*note.Note) []Edge {
	included := make(map[string]bool, len(notes))
	for _, n := range notes {
		included[n.ID] = true
	}
	var out []Edge
	for _, n := range notes {
		for _, l := range n.Links {
			if included[l.ID] {
				out = append(out, Edge{From: n.ID, To: l.ID, Type: l.Type})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func parseBool(s string) bool {
	v, _ := strconv.ParseBool(s)
	return v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
