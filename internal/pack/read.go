package pack

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
)

// Read parses a pack file written by Write.
func Read(r io.Reader) (*Pack, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	if !sc.Scan() {
		return nil, qerr.Data("empty pack: missing header")
	}
	header, err := parseHeader(sc.Text())
	if err != nil {
		return nil, err
	}
	if header.Version > FormatVersion {
		return nil, qerr.Dataf("pack format version %d is newer than this binary understands (%d)", header.Version, FormatVersion)
	}

	p := &Pack{Header: header}
	var pendingNote *note.Note

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := splitQuoted(line)
		switch fields[0] {
		case "N":
			n, err := parseNoteRecord(fields)
			if err != nil {
				return nil, err
			}
			pendingNote = n
		case "B":
			if pendingNote == nil || len(fields) < 3 || fields[1] != pendingNote.ID {
				return nil, qerr.Data("pack body record does not follow its note record")
			}
			body, err := base64.StdEncoding.DecodeString(fields[2])
			if err != nil {
				return nil, qerr.Dataf("decode note body: %v", err)
			}
			pendingNote.Body = string(body)
			p.Notes = append(p.Notes, pendingNote)
			pendingNote = nil
		case "L":
			if len(fields) < 4 {
				return nil, qerr.Data("malformed L record")
			}
			p.Edges = append(p.Edges, Edge{From: fields[1], To: fields[2], Type: fields[3]})
		case "A":
			if len(fields) < 3 {
				return nil, qerr.Data("malformed A record")
			}
			if !sc.Scan() {
				return nil, qerr.Data("pack ends mid-attachment")
			}
			dLine := splitQuoted(sc.Text())
			if len(dLine) < 2 || dLine[0] != "D" {
				return nil, qerr.Data("attachment header not followed by D record")
			}
			data, err := base64.StdEncoding.DecodeString(dLine[1])
			if err != nil {
				return nil, qerr.Dataf("decode attachment %s: %v", fields[1], err)
			}
			p.Attachments = append(p.Attachments, Attachment{Path: unquoteField(fields[1]), Data: data})
		case "END":
			return p, nil
		default:
			return nil, qerr.Dataf("unrecognized pack record: %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, qerr.Runtime("read pack", err)
	}
	return nil, qerr.Data("pack is missing its END record")
}

func parseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "HEADER" {
		return Header{}, qerr.Data("pack is missing its header")
	}
	kv := map[string]string{}
	for _, f := range fields[1:] {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			kv[parts[0]] = parts[1]
		}
	}
	return Header{
		Version:          mustInt(kv["version"]),
		StoreVersion:     mustInt(kv["store_version"]),
		Created:          parseTime(kv["created"]),
		NotesCount:       mustInt(kv["notes"]),
		LinksCount:       mustInt(kv["links"]),
		AttachmentsCount: mustInt(kv["attachments"]),
	}, nil
}

func parseNoteRecord(fields []string) (*note.Note, error) {
	if len(fields) < 4 {
		return nil, qerr.Data("malformed N record")
	}
	n := &note.Note{
		ID:    fields[1],
		Type:  note.Type(fields[2]),
		Title: unquoteField(fields[3]),
	}
	for _, f := range fields[4:] {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], unquoteField(parts[1])
		switch key {
		case "tags":
			if val != "" {
				n.Tags = strings.Split(val, ",")
			}
		case "value":
			n.Value, _ = strconv.Atoi(val)
		case "has_value":
			n.HasValue = parseBool(val)
		case "verified":
			n.Verified = parseBool(val)
		case "created":
			n.Created = parseTime(val)
		case "updated":
			n.Updated = parseTime(val)
		case "summary":
			n.Summary = val
		case "source":
			n.Source = val
		case "sources":
			if val != "" && val != "-" {
				var sources []note.Source
				if raw, err := base64.StdEncoding.DecodeString(val); err == nil {
					_ = json.Unmarshal(raw, &sources)
				}
				n.Sources = sources
			}
		case "custom":
			if val != "" && val != "-" {
				raw, err := base64.StdEncoding.DecodeString(val)
				if err == nil {
					native, ok := decodeJSONNative(raw).(map[string]any)
					if ok && len(native) > 0 {
						n.Custom = make(map[string]note.Value, len(native))
						for k, v := range native {
							n.Custom[k] = note.ValueFromNative(v)
						}
					}
				}
			}
		}
	}
	return n, nil
}

// splitQuoted splits on whitespace, but treats a double-quoted run
// (with backslash-escaped quotes) as one field, matching the quoting
// rule writeNoteRecord and quoteField apply on the way out.
func splitQuoted(line string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	escaped := false
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
	}
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case (r == ' ' || r == '\t') && !inQuotes:
			if cur.Len() > 0 {
				flush()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		flush()
	}
	return out
}

// decodeJSONNative decodes raw with json.Number enabled so integers
// survive the round trip as int64 instead of collapsing to float64, the
// way the plain encoding/json map[string]any decode otherwise would.
func decodeJSONNative(raw []byte) any {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return normalizeJSONNumbers(v)
}

func normalizeJSONNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeJSONNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeJSONNumbers(e)
		}
		return out
	default:
		return v
	}
}

func unquoteField(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
