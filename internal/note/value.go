package note

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ValueKind tags which branch of the custom-value sum type is populated.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindSeq
	KindMap
)

// Value is the recursive sum type backing `custom` (spec §9): a core
// field is strict, but custom is opaque and may hold any YAML/JSON shape.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
	Seq  []Value
	Map  map[string]Value
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Flt: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func SeqValue(v []Value) Value    { return Value{Kind: KindSeq, Seq: v} }
func MapValue(v map[string]Value) Value { return Value{Kind: KindMap, Map: v} }

// Native converts a Value back into plain Go data (map[string]any,
// []any, string, int64, float64, bool, nil) for JSON emission.
func (v Value) Native() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	case KindBool:
		return v.Bool
	case KindSeq:
		out := make([]any, len(v.Seq))
		for i, e := range v.Seq {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Native()
		}
		return out
	default:
		return nil
	}
}

// ValueFromNative converts data produced by yaml.Unmarshal (map[string]any,
// []any, string, int, int64, float64, bool, nil) into a Value.
func ValueFromNative(in any) Value {
	switch t := in.(type) {
	case nil:
		return Value{Kind: KindNull}
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float64:
		// yaml.v3 decodes whole numbers as int, so a float64 here is
		// genuinely fractional.
		return FloatValue(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = ValueFromNative(e)
		}
		return SeqValue(out)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = ValueFromNative(e)
		}
		return MapValue(out)
	case map[any]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = ValueFromNative(e)
		}
		return MapValue(out)
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// MarshalYAML implements yaml.Marshaler so Value round-trips cleanly
// inside a note's `custom` frontmatter block.
func (v Value) MarshalYAML() (any, error) {
	return v.Native(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var native any
	if err := node.Decode(&native); err != nil {
		return err
	}
	*v = ValueFromNative(native)
	return nil
}
