package index

import (
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// ChangeIDIndex answers change-id prefix queries over a fixed set of
// "visible" commits (the revset or repo heads it was built from). Because
// several visible commits can share a change id (divergence, spec §3), a
// prefix can resolve to more than one commit even when it is otherwise
// unambiguous.
type ChangeIDIndex struct {
	byChange map[objectid.ChangeID][]objectid.CommitID
	trie     *trieNode
}

// NewChangeIDIndex builds an index over the given visible commits (as
// resolved from the underlying ReadonlyIndex).
func NewChangeIDIndex(idx *ReadonlyIndex, visible []objectid.CommitID) *ChangeIDIndex {
	c := &ChangeIDIndex{byChange: map[objectid.ChangeID][]objectid.CommitID{}, trie: newTrieNode()}
	seen := map[objectid.ChangeID]bool{}
	for _, id := range visible {
		e, ok := idx.Entry(id)
		if !ok {
			continue
		}
		c.byChange[e.ChangeID] = append(c.byChange[e.ChangeID], id)
		if !seen[e.ChangeID] {
			seen[e.ChangeID] = true
			c.trie.insert(e.ChangeID.AsID())
		}
	}
	for cid := range c.byChange {
		ids := c.byChange[cid]
		sort.Slice(ids, func(i, j int) bool { return ids[i].AsID().Less(ids[j].AsID()) })
		c.byChange[cid] = ids
	}
	return c
}

// ResolvePrefix disambiguates a change-id hex prefix (note: prefixes of
// change ids are expressed and parsed in the reverse-hex display alphabet
// by callers; this method itself works on the raw byte prefix, matching
// HexPrefix's byte-oriented IsPrefixOf).
func (c *ChangeIDIndex) ResolvePrefix(p objectid.HexPrefix) objectid.PrefixResolution[[]objectid.CommitID] {
	var matched []objectid.ChangeID
	for cid := range c.byChange {
		if p.IsPrefixOf(cid.AsID()) {
			matched = append(matched, cid)
			if len(matched) > 1 {
				return objectid.AmbiguousResolution[[]objectid.CommitID]()
			}
		}
	}
	if len(matched) == 0 {
		return objectid.NoMatchResolution[[]objectid.CommitID]()
	}
	return objectid.SingleMatchResolution(c.byChange[matched[0]])
}

// ShortestUniquePrefixLen returns the smallest hex-digit length that
// disambiguates id within the visible set. If the full id is itself a
// prefix of some other indexed key (only possible with malformed/duplicate
// input in a real system, but well-defined here), len+1 is returned per
// spec Open Question 4.
func (c *ChangeIDIndex) ShortestUniquePrefixLen(id objectid.ChangeID) int {
	return c.trie.shortestUniquePrefixLen(id.AsID())
}

// trieNode is a simple per-nibble (16-way) trie over id bytes, used
// as the "reference trie" spec Open Question 4 asks implementers to verify
// shortestUniquePrefixLen against.
type trieNode struct {
	children [16]*trieNode
	count    int // number of ids passing through this node
}

func newTrieNode() *trieNode { return &trieNode{} }

func (t *trieNode) insert(id objectid.ID) {
	node := t
	node.count++
	for _, b := range id {
		for _, nibble := range [2]byte{b >> 4, b & 0x0f} {
			if node.children[nibble] == nil {
				node.children[nibble] = newTrieNode()
			}
			node = node.children[nibble]
			node.count++
		}
	}
}

// shortestUniquePrefixLen walks id's nibbles until the node's count drops to
// 1 (this id is the only one left under that prefix); the walk depth at
// that point is the answer. If the full id's node still has count > 1 (a
// true duplicate key in the index, or id is itself a prefix of a longer
// indexed key), the full length plus one is returned.
func (t *trieNode) shortestUniquePrefixLen(id objectid.ID) int {
	node := t
	depth := 0
	maxDepth := len(id) * 2
	for depth < maxDepth {
		if node.count == 1 {
			return depth
		}
		hi := id[depth/2] >> 4
		lo := id[depth/2] & 0x0f
		var nibble byte
		if depth%2 == 0 {
			nibble = hi
		} else {
			nibble = lo
		}
		child := node.children[nibble]
		if child == nil {
			return depth
		}
		node = child
		depth++
	}
	if node.count == 1 {
		return depth
	}
	return depth + 1
}
