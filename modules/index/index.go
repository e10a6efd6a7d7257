// Package index implements the topological commit index: O(log n)-or-better
// answers to ancestry, heads/roots and hex-prefix-disambiguation queries,
// adapted from the reference VCS's commit-walker iterators
// (commit_walker_topo_order.go's emirpasic/gods binaryheap-driven walk) and
// its generation-number-free ancestry checks generalised with an explicit
// generation number for a fast common-case short circuit.
package index

import (
	"sort"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/jjvcs/opgraph/modules/objectid"
)

func idComparator(a, b any) int {
	ai, bi := a.(objectid.CommitID), b.(objectid.CommitID)
	switch {
	case ai.AsID().Less(bi.AsID()):
		return -1
	case bi.AsID().Less(ai.AsID()):
		return 1
	default:
		return 0
	}
}

// ReadonlyIndex is an immutable snapshot of the commit index.
type ReadonlyIndex struct {
	entries  map[objectid.CommitID]Entry
	children map[objectid.CommitID][]objectid.CommitID
	// sorted is a red-black tree over commit ids, used for O(log n)
	// hex-prefix disambiguation (the reference VCS's gods dependency,
	// repurposed here from priority-queue commit walking to sorted-key
	// lookup).
	sorted *redblacktree.Tree
}

func newEmpty() *ReadonlyIndex {
	return &ReadonlyIndex{
		entries:  map[objectid.CommitID]Entry{},
		children: map[objectid.CommitID][]objectid.CommitID{},
		sorted:   redblacktree.NewWith(idComparator),
	}
}

// HasID reports whether id is indexed.
func (idx *ReadonlyIndex) HasID(id objectid.CommitID) bool {
	_, ok := idx.entries[id]
	return ok
}

func (idx *ReadonlyIndex) Entry(id objectid.CommitID) (Entry, bool) {
	e, ok := idx.entries[id]
	return e, ok
}

func (idx *ReadonlyIndex) Len() int { return len(idx.entries) }

// AllIDs returns every indexed commit id, in no particular order.
func (idx *ReadonlyIndex) AllIDs() []objectid.CommitID {
	out := make([]objectid.CommitID, 0, len(idx.entries))
	for id := range idx.entries {
		out = append(out, id)
	}
	return out
}

// Children returns the direct children of id among the indexed commits.
func (idx *ReadonlyIndex) Children(id objectid.CommitID) []objectid.CommitID {
	return append([]objectid.CommitID(nil), idx.children[id]...)
}

// IsAncestor reports whether a is a strict ancestor of b in the
// commit-parent DAG.
func (idx *ReadonlyIndex) IsAncestor(a, b objectid.CommitID) bool {
	if a == b {
		return false
	}
	ea, ok := idx.entries[a]
	if !ok {
		return false
	}
	eb, ok := idx.entries[b]
	if !ok || eb.Generation <= ea.Generation {
		return false
	}
	visited := map[objectid.CommitID]bool{b: true}
	stack := []objectid.CommitID{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e := idx.entries[cur]
		for _, p := range e.Parents {
			if p == a {
				return true
			}
			if visited[p] {
				continue
			}
			if pe, ok := idx.entries[p]; ok && pe.Generation >= ea.Generation {
				visited[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false
}

// Heads drops every id in ids that is a (strict) ancestor of another id in
// ids, returning the minimal head set.
func (idx *ReadonlyIndex) Heads(ids []objectid.CommitID) []objectid.CommitID {
	set := make(map[objectid.CommitID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []objectid.CommitID
	for id := range set {
		isAncestor := false
		for other := range set {
			if other != id && idx.IsAncestor(id, other) {
				isAncestor = true
				break
			}
		}
		if !isAncestor {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsID().Less(out[j].AsID()) })
	return out
}

// Roots drops every id in ids that is a (strict) descendant of another id
// in ids.
func (idx *ReadonlyIndex) Roots(ids []objectid.CommitID) []objectid.CommitID {
	set := make(map[objectid.CommitID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	var out []objectid.CommitID
	for id := range set {
		isDescendant := false
		for other := range set {
			if other != id && idx.IsAncestor(other, id) {
				isDescendant = true
				break
			}
		}
		if !isDescendant {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsID().Less(out[j].AsID()) })
	return out
}

// TopoOrder returns ids (plus any id reachable transitively isn't added --
// only the given ids are returned) in an order where every parent among ids
// precedes its children among ids, i.e. any valid topological order.
func (idx *ReadonlyIndex) TopoOrder(ids []objectid.CommitID) []objectid.CommitID {
	out := append([]objectid.CommitID(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		gi, gj := idx.entries[out[i]].Generation, idx.entries[out[j]].Generation
		if gi != gj {
			return gi < gj
		}
		return out[i].AsID().Less(out[j].AsID())
	})
	return out
}

// Ancestors returns every id reachable from heads by following parent edges
// within the generation interval [minGen, maxGen) measured as "distance
// from heads" (0 = the heads themselves), matching the revset
// Ancestors{generation} shape (spec §4.6.1).
func (idx *ReadonlyIndex) Ancestors(heads []objectid.CommitID, minGen, maxGen uint64) []objectid.CommitID {
	type frontierEntry struct {
		id  objectid.CommitID
		gen uint64
	}
	seen := map[objectid.CommitID]bool{}
	var out []objectid.CommitID
	queue := make([]frontierEntry, 0, len(heads))
	for _, h := range heads {
		queue = append(queue, frontierEntry{h, 0})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.id] {
			continue
		}
		seen[cur.id] = true
		if cur.gen >= minGen && cur.gen < maxGen {
			out = append(out, cur.id)
		}
		if cur.gen+1 >= maxGen {
			continue
		}
		e, ok := idx.entries[cur.id]
		if !ok {
			continue
		}
		for _, p := range e.Parents {
			queue = append(queue, frontierEntry{p, cur.gen + 1})
		}
	}
	return idx.TopoOrder(out)
}

// Descendants returns every id reachable from roots by following child
// edges (the DagRange{roots, heads: visible_heads()} shape resolves
// Descendants, spec §4.6.7).
func (idx *ReadonlyIndex) Descendants(roots []objectid.CommitID) []objectid.CommitID {
	seen := map[objectid.CommitID]bool{}
	var out []objectid.CommitID
	stack := append([]objectid.CommitID(nil), roots...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		stack = append(stack, idx.children[cur]...)
	}
	return idx.TopoOrder(out)
}

// DagRange returns commits on some path from roots to heads (inclusive):
// ancestors of heads intersected with descendants of roots.
func (idx *ReadonlyIndex) DagRange(roots, heads []objectid.CommitID) []objectid.CommitID {
	anc := idx.Ancestors(heads, 0, ^uint64(0))
	ancSet := map[objectid.CommitID]bool{}
	for _, id := range anc {
		ancSet[id] = true
	}
	desc := idx.Descendants(roots)
	var out []objectid.CommitID
	for _, id := range desc {
		if ancSet[id] {
			out = append(out, id)
		}
	}
	return idx.TopoOrder(out)
}

// ResolvePrefix disambiguates a commit-id hex prefix. Because the red-black
// tree orders ids the same way their hex strings order lexicographically,
// every id matching p forms one contiguous run; Ceiling seeks straight to
// its start so the common case costs O(log n + matches) rather than a full
// scan.
func (idx *ReadonlyIndex) ResolvePrefix(p objectid.HexPrefix) objectid.PrefixResolution[objectid.CommitID] {
	lowBound := prefixLowerBound(p)
	node, _ := idx.sorted.Ceiling(lowBound)
	var matches []objectid.CommitID
	for node != nil {
		id := node.Key.(objectid.CommitID)
		if !p.IsPrefixOf(id.AsID()) {
			break
		}
		matches = append(matches, id)
		if len(matches) > 1 {
			return objectid.AmbiguousResolution[objectid.CommitID]()
		}
		node, _ = idx.sorted.Ceiling(nextID(id))
	}
	if len(matches) == 0 {
		return objectid.NoMatchResolution[objectid.CommitID]()
	}
	return objectid.SingleMatchResolution(matches[0])
}

// prefixLowerBound returns the smallest possible id whose hex form starts
// with p (padding the unspecified suffix with zero bytes/nibbles).
func prefixLowerBound(p objectid.HexPrefix) objectid.CommitID {
	var id objectid.ID
	full, half := p.Bytes()
	copy(id[:], full)
	if half != nil {
		id[len(full)] = *half << 4
	}
	return objectid.CommitID(id)
}

// nextID returns the id immediately following id in byte order, used to
// advance past a just-consumed match without rescanning it.
func nextID(id objectid.CommitID) objectid.CommitID {
	next := id
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] != 0xff {
			next[i]++
			return next
		}
		next[i] = 0
	}
	return next
}
