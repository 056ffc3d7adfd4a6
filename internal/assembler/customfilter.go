// Package assembler implements C7: selection (note/tag/MOC/query/custom
// union), canonicalization, exact character-budget truncation, and the
// Markdown/JSON/records output formats used by `context`, `export`, and
// `prime` (spec §4.4).
package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
)

// CustomClause is one parsed `--custom-filter` argument (spec §6 grammar).
type CustomClause struct {
	Key string
	Op  string // "=", "exists", "!exists", ">", ">=", "<", "<="
	Val string
}

var cmpOps = []string{">=", "<=", ">", "<", "="}

// ParseCustomClause parses one raw `--custom-filter` value.
func ParseCustomClause(raw string) (CustomClause, error) {
	if raw == "" {
		return CustomClause{}, qerr.Usage("empty custom filter clause")
	}
	if strings.HasPrefix(raw, "!") {
		return CustomClause{Key: raw[1:], Op: "!exists"}, nil
	}
	for _, op := range cmpOps {
		if idx := strings.Index(raw, op); idx > 0 {
			key := raw[:idx]
			val := raw[idx+len(op):]
			opName := op
			if op == "=" {
				opName = "="
			}
			return CustomClause{Key: key, Op: opName, Val: val}, nil
		}
	}
	return CustomClause{Key: raw, Op: "exists"}, nil
}

// Match reports whether n's custom fields satisfy the clause.
func (c CustomClause) Match(n *note.Note) bool {
	v, ok := n.Custom[c.Key]
	switch c.Op {
	case "exists":
		return ok
	case "!exists":
		return !ok
	}
	if !ok {
		return false
	}
	switch c.Op {
	case "=":
		return fmt.Sprint(v.Native()) == c.Val
	case ">", ">=", "<", "<=":
		return compareOrdered(v, c.Val, c.Op)
	}
	return false
}

// compareOrdered handles numeric and ISO-8601-date comparisons; dates
// compare lexicographically per spec §6, numbers compare numerically.
func compareOrdered(v note.Value, rhs, op string) bool {
	if lf, rf, ok := asFloats(v, rhs); ok {
		switch op {
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		}
	}

	lhs := fmt.Sprint(v.Native())
	switch op {
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	}
	return false
}

func asFloats(v note.Value, rhs string) (float64, float64, bool) {
	rf, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return 0, 0, false
	}
	switch n := v.Native().(type) {
	case int:
		return float64(n), rf, true
	case int64:
		return float64(n), rf, true
	case float64:
		return n, rf, true
	}
	return 0, 0, false
}

// MatchAll reports whether n satisfies every clause (AND composition).
func MatchAll(n *note.Note, clauses []CustomClause) bool {
	for _, c := range clauses {
		if !c.Match(n) {
			return false
		}
	}
	return true
}
