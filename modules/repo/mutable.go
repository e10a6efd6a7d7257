package repo

import (
	"context"
	"fmt"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// RewriteKind classifies why MutableRepo.NewParents would substitute an old
// commit id for something else (spec §4.5.2 "Rewrite bookkeeping").
type RewriteKind int

const (
	rewriteNone RewriteKind = iota
	RewriteRewritten
	RewriteDivergent
	RewriteAbandoned
)

type rewriteEntry struct {
	Kind   RewriteKind
	NewIDs []objectid.CommitID
}

// MutableRepo is the sole mutation surface for a repository view: every
// rewrite, abandon, rebase and merge goes through it, and its dirty state is
// only ever exposed to other operations via Transaction (spec §4.5).
type MutableRepo struct {
	base    *ReadonlyRepo
	commits store.CommitStore
	view    *refview.View
	mutIdx  *index.MutableIndex

	parentMapping map[objectid.CommitID]rewriteEntry
	divergent     map[objectid.ChangeID][]objectid.CommitID
}

// New starts a mutable session forked from base: its own copy of the view
// and index, so edits never alias the snapshot it came from.
func New(ctx context.Context, base *ReadonlyRepo) (*MutableRepo, error) {
	idx, err := base.Index(ctx)
	if err != nil {
		return nil, err
	}
	return &MutableRepo{
		base:          base,
		commits:       base.stores.Commits,
		view:          base.View().Clone(),
		mutIdx:        index.NewMutable(idx),
		parentMapping: map[objectid.CommitID]rewriteEntry{},
		divergent:     map[objectid.ChangeID][]objectid.CommitID{},
	}, nil
}

func (m *MutableRepo) Base() *ReadonlyRepo { return m.base }
func (m *MutableRepo) View() *refview.View { return m.view }
func (m *MutableRepo) Index() *index.ReadonlyIndex { return m.mutIdx.Readonly() }

// SetLocalBranch, SetTag, SetGitRef, SetGitHead, SetRemoteBranch and
// SetWorkingCopy simply delegate to the forked view; they exist on
// MutableRepo so callers never need to reach into View() directly during a
// transaction, matching the reference VCS's mutable-wrapper-hides-the-data
// convention.
func (m *MutableRepo) SetLocalBranch(name string, t refview.RefTarget)        { m.view.SetLocalBranch(name, t) }
func (m *MutableRepo) SetTag(name string, t refview.RefTarget)                { m.view.SetTag(name, t) }
func (m *MutableRepo) SetGitRef(name string, t refview.RefTarget)             { m.view.SetGitRef(name, t) }
func (m *MutableRepo) SetGitHead(t refview.RefTarget)                         { m.view.SetGitHead(t) }
func (m *MutableRepo) SetRemoteBranch(name, remote string, r refview.RemoteRef) {
	m.view.SetRemoteBranch(name, remote, r)
}
func (m *MutableRepo) SetWorkingCopy(ws objectid.WorkspaceID, id objectid.CommitID) {
	m.view.SetWorkingCopy(ws, id)
}

// SetRewritten records that old was rewritten into new (spec §4.5.2). A
// second, different rewrite of the same old commit promotes the entry to
// Divergent rather than overwriting it, since both replacements are equally
// "the" successor until a user resolves the divergence.
func (m *MutableRepo) SetRewritten(old, new objectid.CommitID) {
	if old == new {
		return
	}
	if e, ok := m.parentMapping[old]; ok {
		switch e.Kind {
		case RewriteRewritten:
			if !containsID(e.NewIDs, new) {
				m.parentMapping[old] = rewriteEntry{Kind: RewriteDivergent, NewIDs: append(e.NewIDs, new)}
			}
			return
		case RewriteDivergent:
			if !containsID(e.NewIDs, new) {
				e.NewIDs = append(e.NewIDs, new)
				m.parentMapping[old] = e
			}
			return
		case RewriteAbandoned:
			// A later rewrite of a commit already marked abandoned wins: the
			// caller changed its mind and this is now the live replacement.
		}
	}
	m.parentMapping[old] = rewriteEntry{Kind: RewriteRewritten, NewIDs: []objectid.CommitID{new}}
}

// SetDivergent records old as having diverged into exactly newIDs, bypassing
// the incremental promotion SetRewritten performs (used when a caller
// already knows the full divergent set, e.g. two racing rewrites of the
// same commit resolved in one step).
func (m *MutableRepo) SetDivergent(old objectid.CommitID, newIDs ...objectid.CommitID) {
	m.parentMapping[old] = rewriteEntry{Kind: RewriteDivergent, NewIDs: append([]objectid.CommitID(nil), newIDs...)}
}

// markDivergentChange records that changeID currently has more than one
// visible head commit; unlike SetDivergent this never feeds NewParents
// substitution -- the commits are all still individually valid, merely
// sharing a change id (spec §3 "Divergence").
func (m *MutableRepo) markDivergentChange(changeID objectid.ChangeID, commits []objectid.CommitID) {
	m.divergent[changeID] = append([]objectid.CommitID(nil), commits...)
}

// DivergentChanges returns every change id with more than one current head
// commit, keyed for deterministic iteration by callers that render it.
func (m *MutableRepo) DivergentChanges() map[objectid.ChangeID][]objectid.CommitID {
	out := make(map[objectid.ChangeID][]objectid.CommitID, len(m.divergent))
	for k, v := range m.divergent {
		out[k] = append([]objectid.CommitID(nil), v...)
	}
	return out
}

// RecordAbandoned records that old no longer exists and should be replaced
// by its own parents wherever it is referenced as a parent. A commit already
// rewritten or previously abandoned keeps its existing mapping.
func (m *MutableRepo) RecordAbandoned(old objectid.CommitID) {
	if _, ok := m.parentMapping[old]; ok {
		return
	}
	m.parentMapping[old] = rewriteEntry{Kind: RewriteAbandoned}
}

func containsID(ids []objectid.CommitID, id objectid.CommitID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// NewParents resolves old through the rewrite mapping, following chains of
// rewrites/abandonments to their final commit ids, leaving a divergently
// rewritten id in place, and de-duplicating the result. A cycle in the mapping (a
// caller accidentally rewriting A into a descendant of A's own replacement)
// panics rather than looping forever, matching spec §4.5.2's stated
// behaviour: this is a programming error in the caller, not a recoverable
// runtime condition.
func (m *MutableRepo) NewParents(ctx context.Context, old []objectid.CommitID) ([]objectid.CommitID, error) {
	var out []objectid.CommitID
	seen := map[objectid.CommitID]bool{}
	for _, id := range old {
		resolved, err := m.resolve(ctx, id, map[objectid.CommitID]bool{})
		if err != nil {
			return nil, err
		}
		for _, r := range resolved {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *MutableRepo) resolve(ctx context.Context, id objectid.CommitID, visiting map[objectid.CommitID]bool) ([]objectid.CommitID, error) {
	e, ok := m.parentMapping[id]
	if !ok {
		return []objectid.CommitID{id}, nil
	}
	if visiting[id] {
		panic(fmt.Sprintf("repo: cycle in rewrite mapping at %s", id))
	}
	visiting[id] = true
	switch e.Kind {
	case RewriteAbandoned:
		c, err := m.commits.GetCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("repo: resolve abandoned %s: %w", id, err)
		}
		var out []objectid.CommitID
		for _, p := range c.Parents {
			r, err := m.resolve(ctx, p, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, r...)
		}
		return out, nil
	case RewriteDivergent:
		// Divergent entries are left intact: the child keeps the old
		// parent id. Descendants of a divergently-rewritten commit are
		// not rebased; the conflict surfaces on the ref that points at
		// it, not in parent substitution.
		return []objectid.CommitID{id}, nil
	default: // RewriteRewritten
		var out []objectid.CommitID
		for _, nid := range e.NewIDs {
			r, err := m.resolve(ctx, nid, visiting)
			if err != nil {
				return nil, err
			}
			out = append(out, r...)
		}
		return out, nil
	}
}

// ensureIndexed walks parent edges from id, adding every not-yet-indexed
// ancestor to the mutable index in parent-first order (spec §4.5.4).
func (m *MutableRepo) ensureIndexed(ctx context.Context, id objectid.CommitID) error {
	if m.mutIdx.HasID(id) {
		return nil
	}
	c, err := m.commits.GetCommit(ctx, id)
	if err != nil {
		return fmt.Errorf("repo: load commit %s: %w", id, err)
	}
	for _, p := range c.Parents {
		if err := m.ensureIndexed(ctx, p); err != nil {
			return err
		}
	}
	m.mutIdx.AddCommit(c)
	return nil
}

// AddHead indexes id (and any not-yet-indexed ancestors) and adds it to the
// view's head set, dropping it as a no-op if some existing head already
// has it as an ancestor, and minimizing away any existing head that id
// makes redundant (spec §4.5.4, testable property 6).
func (m *MutableRepo) AddHead(ctx context.Context, id objectid.CommitID) error {
	return m.AddHeads(ctx, []objectid.CommitID{id})
}

// AddHeads is the batch form of AddHead: it indexes every id up front, then
// minimizes the whole head set once, which is both the fast path (one
// minimization pass instead of len(ids)) and the semantics spec §4.5.4
// describes for "adding several heads at once".
func (m *MutableRepo) AddHeads(ctx context.Context, ids []objectid.CommitID) error {
	for _, id := range ids {
		if err := m.ensureIndexed(ctx, id); err != nil {
			return err
		}
	}
	idx := m.mutIdx.Readonly()
	candidates := append([]objectid.CommitID(nil), m.view.Heads()...)
	candidates = append(candidates, ids...)
	minimized := idx.Heads(candidates)
	keep := map[objectid.CommitID]bool{}
	for _, id := range minimized {
		keep[id] = true
	}
	for _, h := range m.view.Heads() {
		if !keep[h] {
			m.view.RemoveHeadRaw(h)
		}
	}
	for id := range keep {
		m.view.AddHeadRaw(id)
	}
	return nil
}

// rebasedCommit clones c with new parents and a fresh id, leaving every
// other field (tree, change id, author, description) untouched -- tree
// recomputation across a rebase is out of this module's scope (spec §1
// Non-goals: "tree-level merge algorithms"), so a rebased commit keeps its
// original content and only its parent pointers move.
func rebasedCommit(c *commit.Commit, newParents []objectid.CommitID) *commit.Commit {
	cp := *c
	cp.ID = objectid.CommitID{}
	cp.Parents = append([]objectid.CommitID(nil), newParents...)
	return &cp
}
