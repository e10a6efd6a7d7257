// Package refview implements the View over repository references: the
// tri-valued RefTarget conflict algebra and the View type that ties
// together heads, per-workspace working-copy pointers, branches, tags and
// git refs, adapted from the reference VCS's plumbing.Reference model to
// the spec's richer, mergeable ref-target representation.
package refview

import (
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// RefTarget is a tri-valued branch/tag/git-ref target. The zero value is
// Absent. A Normal target points at exactly one commit. A Conflict records
// the commits "removed" and "added" by the concurrent updates that produced
// it; conflicts are always kept normalised (see normalize).
type RefTarget struct {
	removes []objectid.CommitID
	adds    []objectid.CommitID
}

// Absent is the empty ref target.
func Absent() RefTarget { return RefTarget{} }

// Normal returns a target pointing unambiguously at id.
func Normal(id objectid.CommitID) RefTarget {
	return RefTarget{adds: []objectid.CommitID{id}}
}

// Conflict builds a conflicted target from removes and adds, normalised
// (matched pairs cancelled, ids sorted) before it is returned.
func Conflict(removes, adds []objectid.CommitID) RefTarget {
	return normalize(removes, adds)
}

// IsAbsent reports whether the target points at nothing.
func (t RefTarget) IsAbsent() bool { return len(t.removes) == 0 && len(t.adds) == 0 }

// IsNormal reports whether the target points unambiguously at one commit.
func (t RefTarget) IsNormal() bool { return len(t.removes) == 0 && len(t.adds) == 1 }

// IsConflict reports whether the target represents unresolved concurrent
// updates.
func (t RefTarget) IsConflict() bool { return len(t.removes) != 0 || len(t.adds) > 1 }

// AsNormal returns (id, true) iff t is a Normal target.
func (t RefTarget) AsNormal() (objectid.CommitID, bool) {
	if t.IsNormal() {
		return t.adds[0], true
	}
	return objectid.CommitID{}, false
}

// Adds returns the commits this target resolves to (the "winning" side of a
// conflict, sorted by id as normalisation leaves them).
func (t RefTarget) Adds() []objectid.CommitID { return append([]objectid.CommitID(nil), t.adds...) }

// Removes returns the commits a conflict records as removed.
func (t RefTarget) Removes() []objectid.CommitID { return append([]objectid.CommitID(nil), t.removes...) }

// counts builds a signed per-id tally: +1 for every occurrence in adds, -1
// for every occurrence in removes.
func (t RefTarget) counts() map[objectid.CommitID]int {
	m := make(map[objectid.CommitID]int, len(t.adds)+len(t.removes))
	for _, id := range t.adds {
		m[id]++
	}
	for _, id := range t.removes {
		m[id]--
	}
	return m
}

// normalize cancels ids that appear equally often on both sides and rebuilds
// the removes/adds slices in a deterministic (id-sorted) order so that two
// structurally-equivalent conflicts compare equal.
func normalize(removes, adds []objectid.CommitID) RefTarget {
	counts := make(map[objectid.CommitID]int, len(removes)+len(adds))
	for _, id := range adds {
		counts[id]++
	}
	for _, id := range removes {
		counts[id]--
	}
	return fromCounts(counts)
}

func fromCounts(counts map[objectid.CommitID]int) RefTarget {
	var t RefTarget
	ids := make([]objectid.CommitID, 0, len(counts))
	for id, c := range counts {
		if c != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].AsID().Less(ids[j].AsID()) })
	for _, id := range ids {
		c := counts[id]
		if c > 0 {
			for i := 0; i < c; i++ {
				t.adds = append(t.adds, id)
			}
		} else {
			for i := 0; i < -c; i++ {
				t.removes = append(t.removes, id)
			}
		}
	}
	return t
}

// Equal reports structural equality after normalisation.
func (t RefTarget) Equal(o RefTarget) bool {
	return sliceEqual(t.removes, o.removes) && sliceEqual(t.adds, o.adds)
}

func sliceEqual(a, b []objectid.CommitID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge computes the three-way merge of t ("self") and other against base,
// per spec §3: two trivial shortcuts (only one side changed) are applied
// first so that an unrelated concurrent change never manufactures a
// conflict; only when both sides diverged from base does the result become
// a genuine multiset-difference conflict "self ⊎ other ⊖ base".
func (t RefTarget) Merge(base, other RefTarget) RefTarget {
	if other.Equal(base) {
		return t
	}
	if t.Equal(base) {
		return other
	}
	if t.Equal(other) {
		return t
	}
	counts := t.counts()
	for id, c := range other.counts() {
		counts[id] += c
	}
	for id, c := range base.counts() {
		counts[id] -= c
	}
	return fromCounts(counts)
}

// MapRemap rewrites every commit id referenced by t through f (used when a
// rewrite rebases descendants and ref targets must follow old ids to their
// replacements; see package repo's new_parents).
func (t RefTarget) MapRemap(f func(objectid.CommitID) []objectid.CommitID) RefTarget {
	var removes, adds []objectid.CommitID
	for _, id := range t.removes {
		removes = append(removes, f(id)...)
	}
	for _, id := range t.adds {
		adds = append(adds, f(id)...)
	}
	return normalize(removes, adds)
}
