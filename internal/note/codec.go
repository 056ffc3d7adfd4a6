package note

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mwaldstein/qipu/internal/marshal"
)

// knownKeys is the strict set of top-level frontmatter keys the core
// schema accepts; anything else is a write-time data error (spec §9).
var knownKeys = map[string]bool{
	"id": true, "title": true, "type": true, "created": true, "updated": true,
	"value": true, "verified": true, "tags": true, "summary": true,
	"sources": true, "source": true, "links": true, "custom": true,
}

// frontmatterOrder is the fixed emission order from spec §6.
var frontmatterOrder = []string{
	"id", "title", "type", "created", "updated", "value", "verified",
	"tags", "summary", "sources", "links", "custom",
}

const timeLayout = time.RFC3339

// Parse decodes a Markdown+YAML-frontmatter document into a Note. path is
// stored verbatim as Note.Path (derived, not serialized).
func Parse(content []byte, path string) (*Note, error) {
	doc, err := marshal.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	for k := range doc.Frontmatter {
		if !knownKeys[k] {
			return nil, fmt.Errorf("unknown frontmatter key %q", k)
		}
	}

	n := &Note{Path: path, Body: doc.Body}

	if v, ok := doc.Frontmatter["id"].(string); ok {
		n.ID = v
	}
	if v, ok := doc.Frontmatter["title"].(string); ok {
		n.Title = v
	}
	if n.Title == "" {
		return nil, fmt.Errorf("note %s: title is required", path)
	}
	if v, ok := doc.Frontmatter["type"].(string); ok {
		n.Type = Type(v)
	}
	if !n.Type.Valid() {
		return nil, fmt.Errorf("note %s: unknown type %q", path, n.Type)
	}

	if v, err := parseTimeField(doc.Frontmatter, "created"); err != nil {
		return nil, fmt.Errorf("note %s: %w", path, err)
	} else {
		n.Created = v
	}
	if v, err := parseTimeField(doc.Frontmatter, "updated"); err != nil {
		return nil, fmt.Errorf("note %s: %w", path, err)
	} else {
		n.Updated = v
	}
	if n.Updated.Before(n.Created) {
		return nil, fmt.Errorf("note %s: updated %s is before created %s", path, n.Updated, n.Created)
	}

	if raw, ok := doc.Frontmatter["value"]; ok {
		iv, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: value: %w", path, err)
		}
		if iv < 0 || iv > 100 {
			return nil, fmt.Errorf("note %s: value %d out of range [0,100]", path, iv)
		}
		n.Value = iv
		n.HasValue = true
	}

	if v, ok := doc.Frontmatter["verified"].(bool); ok {
		n.Verified = v
	}

	if raw, ok := doc.Frontmatter["tags"]; ok {
		tags, err := toStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: tags: %w", path, err)
		}
		n.Tags = tags
	}

	if v, ok := doc.Frontmatter["summary"].(string); ok {
		n.Summary = v
	}
	if v, ok := doc.Frontmatter["source"].(string); ok {
		n.Source = v
	}

	if raw, ok := doc.Frontmatter["sources"]; ok {
		sources, err := toSources(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: sources: %w", path, err)
		}
		n.Sources = sources
	}

	if raw, ok := doc.Frontmatter["links"]; ok {
		links, err := toLinks(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: links: %w", path, err)
		}
		n.Links = links
	}

	if raw, ok := doc.Frontmatter["custom"]; ok {
		v := ValueFromNative(raw)
		if v.Kind != KindMap {
			return nil, fmt.Errorf("note %s: custom must be a mapping", path)
		}
		n.Custom = v.Map
	}

	return n, nil
}

// Render serializes a Note back to Markdown+YAML-frontmatter, emitting
// frontmatter keys in the fixed order from spec §6 and omitting empty
// fields.
func Render(n *Note) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	put := func(key string, value *yaml.Node) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			value,
		)
	}
	scalar := func(tag, v string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v}
	}

	for _, key := range frontmatterOrder {
		switch key {
		case "id":
			if n.ID != "" {
				put(key, scalar("!!str", n.ID))
			}
		case "title":
			put(key, scalar("!!str", n.Title))
		case "type":
			put(key, scalar("!!str", string(n.Type)))
		case "created":
			put(key, scalar("!!str", n.Created.UTC().Format(timeLayout)))
		case "updated":
			put(key, scalar("!!str", n.Updated.UTC().Format(timeLayout)))
		case "value":
			if n.HasValue {
				put(key, scalar("!!int", strconv.Itoa(n.Value)))
			}
		case "verified":
			if n.Verified {
				put(key, scalar("!!bool", "true"))
			}
		case "tags":
			if len(n.Tags) > 0 {
				put(key, seqOfStrings(n.Tags))
			}
		case "summary":
			if n.Summary != "" {
				put(key, scalar("!!str", n.Summary))
			}
		case "sources":
			if len(n.Sources) > 0 {
				node, err := sourcesNode(n.Sources)
				if err != nil {
					return nil, err
				}
				put(key, node)
			}
		case "links":
			if len(n.Links) > 0 {
				node, err := linksNode(n.Links)
				if err != nil {
					return nil, err
				}
				put(key, node)
			}
		case "custom":
			if len(n.Custom) > 0 {
				node, err := nodeFromValue(MapValue(n.Custom))
				if err != nil {
					return nil, err
				}
				put(key, node)
			}
		}
	}
	if n.Source != "" {
		put("source", scalar("!!str", n.Source))
	}

	fmBytes, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n")
	buf.WriteString(n.Body)
	return buf.Bytes(), nil
}

func seqOfStrings(vals []string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range vals {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
	}
	return node
}

func sourcesNode(sources []Source) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, s := range sources {
		var entry yaml.Node
		if err := entry.Encode(s); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &entry)
	}
	return node, nil
}

func linksNode(links []Link) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, l := range links {
		entry := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		entry.Content = append(entry.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.Type},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "id"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: l.ID},
		)
		node.Content = append(node.Content, entry)
	}
	return node, nil
}

func nodeFromValue(v Value) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(v.Native()); err != nil {
		return nil, err
	}
	return &node, nil
}

func parseTimeField(fm map[string]any, key string) (time.Time, error) {
	raw, ok := fm[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%s must be a string", key)
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid timestamp %q: %w", key, s, err)
	}
	return t, nil
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func toStringSlice(raw any) ([]string, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a sequence")
	}
	out := make([]string, 0, len(seq))
	for _, e := range seq {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected string elements")
		}
		out = append(out, s)
	}
	return out, nil
}

func toSources(raw any) ([]Source, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a sequence")
	}
	out := make([]Source, 0, len(seq))
	for _, e := range seq {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected mapping elements")
		}
		var s Source
		if v, ok := m["url"].(string); ok {
			s.URL = v
		}
		if v, ok := m["title"].(string); ok {
			s.Title = v
		}
		if v, ok := m["accessed"].(string); ok {
			s.Accessed = v
		}
		out = append(out, s)
	}
	return out, nil
}

func toLinks(raw any) ([]Link, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a sequence")
	}
	out := make([]Link, 0, len(seq))
	for _, e := range seq {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected mapping elements")
		}
		var l Link
		if v, ok := m["id"].(string); ok {
			l.ID = v
		}
		if v, ok := m["type"].(string); ok {
			l.Type = v
		}
		if l.ID == "" || l.Type == "" {
			return nil, fmt.Errorf("link requires id and type")
		}
		out = append(out, l)
	}
	return out, nil
}

// SortTagsStable returns a sorted copy of tags, leaving the input slice
// unchanged.
func SortTagsStable(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	return out
}
