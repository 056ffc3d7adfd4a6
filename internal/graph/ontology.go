// Package graph implements C5: weighted traversal (BFS + value-weighted
// Dijkstra), pathfinding, semantic link inversion, and cycle-safe
// compaction/canonicalization (spec §4.2).
package graph

import "fmt"

// inverse is the standard ontology table from spec §4.2.
var inverse = map[string]string{
	"related":      "related",
	"part-of":      "has-part",
	"has-part":     "part-of",
	"follows":      "precedes",
	"precedes":     "follows",
	"supports":     "supported-by",
	"supported-by": "supports",
	"contradicts":  "contradicted-by",
	"contradicted-by": "contradicts",
	"answers":      "answered-by",
	"answered-by":  "answers",
	"refines":      "refined-by",
	"refined-by":   "refines",
	"derived-from": "derived-by",
	"derived-by":   "derived-from",
	"same-as":      "same-as",
	"alias-of":     "has-alias",
	"has-alias":    "alias-of",
	"compacts":     "compacted-by",
	"compacted-by": "compacts",
}

// Inverse returns the semantic inverse of a link type. Unknown types get
// the fallback "inverse-<T>" (spec §4.2).
func Inverse(linkType string) string {
	if inv, ok := inverse[linkType]; ok {
		return inv
	}
	return fmt.Sprintf("inverse-%s", linkType)
}

// IsStandardType reports whether linkType is part of the built-in ontology.
func IsStandardType(linkType string) bool {
	_, ok := inverse[linkType]
	return ok
}
