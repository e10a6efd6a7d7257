package revset

import (
	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
)

// Revset is the materialised result of evaluating a resolved expression
// against an index (spec §4.7).
type Revset struct {
	ids []objectid.CommitID
	idx *index.ReadonlyIndex
}

// IsEmpty reports whether the revset contains no commits.
func (r *Revset) IsEmpty() bool { return len(r.ids) == 0 }

// Len returns the number of commits in the revset.
func (r *Revset) Len() int { return len(r.ids) }

// Iter returns the revset's commits in topological order, children before
// parents (the reverse of the index's natural oldest-first TopoOrder).
func (r *Revset) Iter() []objectid.CommitID {
	ordered := r.idx.TopoOrder(r.ids)
	out := make([]objectid.CommitID, len(ordered))
	for i, id := range ordered {
		out[len(ordered)-1-i] = id
	}
	return out
}

// GraphEdgeKind classifies one edge in a RevsetGraphEdge.
type GraphEdgeKind int

const (
	EdgeMissing GraphEdgeKind = iota
	EdgeDirect
	EdgeIndirect
)

// RevsetGraphEdge is one edge out of a commit in the revset's graph view.
type RevsetGraphEdge struct {
	Target objectid.CommitID
	Kind   GraphEdgeKind
}

// RevsetGraphEntry pairs a commit with its (possibly synthesised) edges.
type RevsetGraphEntry struct {
	CommitID objectid.CommitID
	Edges    []RevsetGraphEdge
}

// IterGraph returns (commit_id, edges) pairs in the same children-before-
// parents order as Iter. An edge to a parent inside the revset is Direct;
// an edge to the nearest ancestor inside the revset, skipping parents
// outside it, is Indirect; a commit with no ancestor left in the revset at
// all gets a single Missing edge (spec §4.7).
func (r *Revset) IterGraph() []RevsetGraphEntry {
	within := toSet(r.ids)
	order := r.Iter()
	out := make([]RevsetGraphEntry, 0, len(order))
	for _, id := range order {
		e, ok := r.idx.Entry(id)
		if !ok {
			out = append(out, RevsetGraphEntry{CommitID: id, Edges: []RevsetGraphEdge{{Kind: EdgeMissing}}})
			continue
		}
		var edges []RevsetGraphEdge
		for _, p := range e.Parents {
			if within[p] {
				edges = append(edges, RevsetGraphEdge{Target: p, Kind: EdgeDirect})
				continue
			}
			if anc, ok := nearestAncestorWithin(r.idx, p, within); ok {
				edges = append(edges, RevsetGraphEdge{Target: anc, Kind: EdgeIndirect})
			}
		}
		if len(edges) == 0 && len(e.Parents) > 0 {
			edges = append(edges, RevsetGraphEdge{Kind: EdgeMissing})
		}
		out = append(out, RevsetGraphEntry{CommitID: id, Edges: edges})
	}
	return out
}

// nearestAncestorWithin walks up from start (exclusive) until it finds a
// commit present in within, BFS so ties prefer the closest ancestor.
func nearestAncestorWithin(idx *index.ReadonlyIndex, start objectid.CommitID, within map[objectid.CommitID]bool) (objectid.CommitID, bool) {
	visited := map[objectid.CommitID]bool{start: true}
	queue := []objectid.CommitID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if within[cur] {
			return cur, true
		}
		e, ok := idx.Entry(cur)
		if !ok {
			continue
		}
		for _, p := range e.Parents {
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return objectid.CommitID{}, false
}

// ChangeIDIndex builds a ChangeIdIndex limited to this revset's commits.
func (r *Revset) ChangeIDIndex() *index.ChangeIDIndex {
	return index.NewChangeIDIndex(r.idx, r.ids)
}

// ReverseRevsetGraphIterator replays IterGraph's entries in the opposite
// order (parents before children), with every edge direction inverted to
// match: since the underlying graph has already been fully computed, this
// buffers all entries up front and pops them back off in reverse (spec
// §4.7's ReverseRevsetGraphIterator).
type ReverseRevsetGraphIterator struct {
	entries []RevsetGraphEntry
	pos     int
}

// NewReverseRevsetGraphIterator buffers and inverts r's graph view.
func NewReverseRevsetGraphIterator(r *Revset) *ReverseRevsetGraphIterator {
	forward := r.IterGraph()
	childrenOf := map[objectid.CommitID][]RevsetGraphEdge{}
	for _, entry := range forward {
		for _, edge := range entry.Edges {
			if edge.Kind == EdgeMissing {
				continue
			}
			childrenOf[edge.Target] = append(childrenOf[edge.Target], RevsetGraphEdge{Target: entry.CommitID, Kind: edge.Kind})
		}
	}
	reversed := make([]RevsetGraphEntry, len(forward))
	for i, entry := range forward {
		reversed[len(forward)-1-i] = RevsetGraphEntry{CommitID: entry.CommitID, Edges: childrenOf[entry.CommitID]}
	}
	return &ReverseRevsetGraphIterator{entries: reversed}
}

// Next returns the next entry (parents before children) or false when
// exhausted.
func (it *ReverseRevsetGraphIterator) Next() (RevsetGraphEntry, bool) {
	if it.pos >= len(it.entries) {
		return RevsetGraphEntry{}, false
	}
	e := it.entries[it.pos]
	it.pos++
	return e, true
}
