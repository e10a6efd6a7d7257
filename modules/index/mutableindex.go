package index

import (
	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
)

// MutableIndex accumulates entries in memory before being frozen into a
// ReadonlyIndex; MutableRepo.AddHead(s) (spec §4.5.4) uses it to index newly
// discovered ancestors in parent-first order before extending the view's
// head set.
type MutableIndex struct {
	base *ReadonlyIndex
}

// NewMutable starts a mutable index layered on top of base (which may be
// empty).
func NewMutable(base *ReadonlyIndex) *MutableIndex {
	if base == nil {
		base = newEmpty()
	}
	clone := newEmpty()
	for id, e := range base.entries {
		clone.entries[id] = e
		clone.sorted.Put(id, struct{}{})
	}
	for id, cs := range base.children {
		clone.children[id] = append([]objectid.CommitID(nil), cs...)
	}
	return &MutableIndex{base: clone}
}

// AddCommit indexes c. Parents must already be indexed (the caller is
// responsible for adding ancestors in parent-first order, per spec §4.5.4).
func (m *MutableIndex) AddCommit(c *commit.Commit) {
	if m.base.HasID(c.ID) {
		return
	}
	var gen uint64
	for _, p := range c.Parents {
		if pe, ok := m.base.entries[p]; ok && pe.Generation+1 > gen {
			gen = pe.Generation + 1
		}
	}
	m.base.entries[c.ID] = Entry{
		ID:                 c.ID,
		ChangeID:           c.ChangeID,
		Parents:            append([]objectid.CommitID(nil), c.Parents...),
		CommitterTimestamp: c.Committer.When.Unix(),
		Generation:         gen,
	}
	m.base.sorted.Put(c.ID, struct{}{})
	for _, p := range c.Parents {
		m.base.children[p] = append(m.base.children[p], c.ID)
	}
}

// HasID reports whether id is already indexed.
func (m *MutableIndex) HasID(id objectid.CommitID) bool {
	return m.base.HasID(id)
}

// MergeIn folds every entry of other into m (commits already present are
// left untouched, matching the spec's idempotent merge_in).
func (m *MutableIndex) MergeIn(other *ReadonlyIndex) {
	for id, e := range other.entries {
		if _, ok := m.base.entries[id]; ok {
			continue
		}
		m.base.entries[id] = e
		m.base.sorted.Put(id, struct{}{})
	}
	for id, cs := range other.children {
		existing := map[objectid.CommitID]bool{}
		for _, c := range m.base.children[id] {
			existing[c] = true
		}
		for _, c := range cs {
			if !existing[c] {
				m.base.children[id] = append(m.base.children[id], c)
				existing[c] = true
			}
		}
	}
}

// Freeze returns an immutable snapshot of the current contents. The
// returned index shares no mutable state with m.
func (m *MutableIndex) Freeze() *ReadonlyIndex {
	frozen := newEmpty()
	for id, e := range m.base.entries {
		frozen.entries[id] = e
		frozen.sorted.Put(id, struct{}{})
	}
	for id, cs := range m.base.children {
		frozen.children[id] = append([]objectid.CommitID(nil), cs...)
	}
	return frozen
}

// Readonly exposes the current contents without copying, for read-only
// queries issued while the index is still being built (MutableRepo reads
// its own in-progress index constantly).
func (m *MutableIndex) Readonly() *ReadonlyIndex {
	return m.base
}
