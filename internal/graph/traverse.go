package graph

import (
	"container/heap"
	"sort"
)

// Direction controls which edges a traversal follows from a node.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

// Filter restricts which edges a traversal will follow (spec §4.2).
type Filter struct {
	IncludeTypes []string // empty = all
	ExcludeTypes []string
	TypedOnly    bool
	InlineOnly   bool
}

func (f Filter) allows(e Edge) bool {
	if f.TypedOnly && e.Source != EdgeSourceTyped {
		return false
	}
	if f.InlineOnly && e.Source != EdgeSourceInline {
		return false
	}
	if len(f.IncludeTypes) > 0 && !containsStr(f.IncludeTypes, e.Type) {
		return false
	}
	if containsStr(f.ExcludeTypes, e.Type) {
		return false
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// TraverseOptions configures a traversal (spec §4.2).
type TraverseOptions struct {
	Start             []string
	Direction         Direction
	MaxHops           int // 0 = unlimited
	Filter            Filter
	MaxNodes          int // 0 = unlimited
	MaxEdges          int // 0 = unlimited
	MaxFanout         int // 0 = unlimited
	Weighted          bool
	ResolveView       bool
	SuppressInversion bool
}

// VisitedEdge is one edge emitted by a traversal, with the presented
// (possibly inverted) type.
type VisitedEdge struct {
	From, To string
	Type     string // presented type (post-inversion if applicable)
	Source   string
	Depth    int
	Cost     float64
	Inverted bool
}

// SpanEntry records each node's predecessor for tree renderings
// (spec §4.2): the first-discovery parent in unweighted traversal, the
// parent on the cheapest path in weighted traversal.
type SpanEntry struct {
	Parent string
	Child  string
	Depth  int
}

// TraverseResult is the deterministic output of a traversal.
type TraverseResult struct {
	Nodes        []string
	Edges        []VisitedEdge
	SpanningTree []SpanEntry
	Truncated    bool
}

type neighbor struct {
	target   string
	ptype    string // presented type
	rawType  string
	source   string
	inverted bool
}

// neighbors enumerates the neighbors of node under the given options,
// resolving canon() when ResolveView is set. Returned in no particular
// order; callers sort before emission for determinism.
func (s *Snapshot) neighbors(node string, opts TraverseOptions) ([]neighbor, error) {
	canon := func(id string) (string, error) {
		if !opts.ResolveView {
			return id, nil
		}
		return s.Canon(id)
	}

	var out []neighbor
	for _, e := range s.Edges {
		if !opts.Filter.allows(e) {
			continue
		}
		cf, err := canon(e.From)
		if err != nil {
			return nil, err
		}
		ct, err := canon(e.To)
		if err != nil {
			return nil, err
		}
		if opts.ResolveView && cf == ct {
			continue // self-loop introduced by contraction
		}

		if (opts.Direction == Out || opts.Direction == Both) && cf == node {
			out = append(out, neighbor{target: ct, ptype: e.Type, rawType: e.Type, source: e.Source})
		}
		if (opts.Direction == In || opts.Direction == Both) && ct == node {
			pt := e.Type
			inv := false
			if !opts.SuppressInversion {
				pt = Inverse(e.Type)
				inv = true
			}
			out = append(out, neighbor{target: cf, ptype: pt, rawType: e.Type, source: e.Source, inverted: inv})
		}
	}
	return out, nil
}

func sortNeighbors(ns []neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].ptype != ns[j].ptype {
			return ns[i].ptype < ns[j].ptype
		}
		return ns[i].target < ns[j].target
	})
}

// Traverse runs BFS (unweighted) or value-weighted Dijkstra (weighted)
// from the start set, per spec §4.2.
func (s *Snapshot) Traverse(opts TraverseOptions) (*TraverseResult, error) {
	if opts.Weighted {
		return s.traverseWeighted(opts)
	}
	return s.traverseUnweighted(opts)
}

func startCanon(s *Snapshot, opts TraverseOptions) ([]string, error) {
	starts := make([]string, 0, len(opts.Start))
	seen := map[string]bool{}
	for _, id := range opts.Start {
		c := id
		if opts.ResolveView {
			var err error
			c, err = s.Canon(id)
			if err != nil {
				return nil, err
			}
		}
		if !seen[c] {
			seen[c] = true
			starts = append(starts, c)
		}
	}
	return starts, nil
}

func (s *Snapshot) traverseUnweighted(opts TraverseOptions) (*TraverseResult, error) {
	starts, err := startCanon(s, opts)
	if err != nil {
		return nil, err
	}

	result := &TraverseResult{}
	visited := map[string]bool{}
	predecessor := map[string]SpanEntry{}
	type queued struct {
		id    string
		depth int
	}
	var queue []queued
	for _, st := range starts {
		if !visited[st] {
			visited[st] = true
			result.Nodes = append(result.Nodes, st)
			queue = append(queue, queued{id: st, depth: 0})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if opts.MaxHops > 0 && cur.depth >= opts.MaxHops {
			continue
		}
		if opts.MaxNodes > 0 && len(result.Nodes) >= opts.MaxNodes {
			result.Truncated = true
			break
		}

		ns, err := s.neighbors(cur.id, opts)
		if err != nil {
			return nil, err
		}
		sortNeighbors(ns)

		fanout := 0
		for _, n := range ns {
			if opts.MaxFanout > 0 && fanout >= opts.MaxFanout {
				result.Truncated = true
				break
			}
			if opts.MaxEdges > 0 && len(result.Edges) >= opts.MaxEdges {
				result.Truncated = true
				break
			}
			result.Edges = append(result.Edges, VisitedEdge{
				From: cur.id, To: n.target, Type: n.ptype, Source: n.source,
				Depth: cur.depth + 1, Inverted: n.inverted,
			})
			fanout++

			if !visited[n.target] {
				if opts.MaxNodes > 0 && len(result.Nodes) >= opts.MaxNodes {
					result.Truncated = true
					continue
				}
				visited[n.target] = true
				result.Nodes = append(result.Nodes, n.target)
				predecessor[n.target] = SpanEntry{Parent: cur.id, Child: n.target, Depth: cur.depth + 1}
				queue = append(queue, queued{id: n.target, depth: cur.depth + 1})
			}
		}
	}

	for _, id := range result.Nodes {
		if sp, ok := predecessor[id]; ok {
			result.SpanningTree = append(result.SpanningTree, sp)
		}
	}
	sort.Strings(result.Nodes)
	return result, nil
}

// heapItem is a min-heap entry keyed on accumulated cost, tie-broken by
// (depth, link_type, target_id) per spec §4.2.
type heapItem struct {
	id       string
	cost     float64
	depth    int
	linkType string
	index    int
}

type priorityQueue []*heapItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	if a.linkType != b.linkType {
		return a.linkType < b.linkType
	}
	return a.id < b.id
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func (s *Snapshot) traverseWeighted(opts TraverseOptions) (*TraverseResult, error) {
	starts, err := startCanon(s, opts)
	if err != nil {
		return nil, err
	}

	result := &TraverseResult{}
	best := map[string]float64{}
	finalized := map[string]bool{}
	predecessor := map[string]SpanEntry{}
	depths := map[string]int{}

	pq := &priorityQueue{}
	heap.Init(pq)
	for _, st := range starts {
		best[st] = 0
		depths[st] = 0
		heap.Push(pq, &heapItem{id: st, cost: 0, depth: 0})
	}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*heapItem)
		if finalized[item.id] {
			continue
		}
		finalized[item.id] = true
		result.Nodes = append(result.Nodes, item.id)
		if sp, ok := predecessor[item.id]; ok {
			result.SpanningTree = append(result.SpanningTree, sp)
		}

		if opts.MaxNodes > 0 && len(result.Nodes) >= opts.MaxNodes {
			result.Truncated = true
			break
		}
		if opts.MaxHops > 0 && item.depth >= opts.MaxHops {
			continue
		}

		ns, err := s.neighbors(item.id, opts)
		if err != nil {
			return nil, err
		}
		sortNeighbors(ns)

		fanout := 0
		for _, n := range ns {
			if opts.MaxFanout > 0 && fanout >= opts.MaxFanout {
				result.Truncated = true
				break
			}
			if opts.MaxEdges > 0 && len(result.Edges) >= opts.MaxEdges {
				result.Truncated = true
				break
			}
			c := item.cost + s.Cost(n.rawType, n.target)
			result.Edges = append(result.Edges, VisitedEdge{
				From: item.id, To: n.target, Type: n.ptype, Source: n.source,
				Depth: item.depth + 1, Cost: c, Inverted: n.inverted,
			})
			fanout++

			if finalized[n.target] {
				continue
			}
			if prev, ok := best[n.target]; !ok || c < prev {
				best[n.target] = c
				depths[n.target] = item.depth + 1
				predecessor[n.target] = SpanEntry{Parent: item.id, Child: n.target, Depth: item.depth + 1}
				heap.Push(pq, &heapItem{id: n.target, cost: c, depth: item.depth + 1, linkType: n.ptype})
			}
		}
	}

	sort.Strings(result.Nodes)
	return result, nil
}
