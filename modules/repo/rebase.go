package repo

import (
	"context"
	"fmt"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// RebaseDescendants walks every descendant of a rewritten or abandoned
// commit (in parent-first order) and reattaches it under its new parents,
// recording each reattachment as its own rewrite so that further
// descendants see a consistent chain (spec §4.5.3 "rebase_descendants").
//
// A descendant that becomes discardable purely as a result of the rebase
// (same tree as its single new parent, empty description, and it did not
// already carry a description of its own) is abandoned instead of
// recommitted, and its own descendants are rebased past it in turn -- this
// is the "automatic collapse of now-empty merge commits" special case spec
// §4.5.3 calls out.
func (m *MutableRepo) RebaseDescendants(ctx context.Context, signer store.Signer) (map[objectid.CommitID]objectid.CommitID, error) {
	idx := m.mutIdx.Readonly()
	var roots []objectid.CommitID
	for id := range m.parentMapping {
		roots = append(roots, id)
	}
	if len(roots) == 0 {
		return map[objectid.CommitID]objectid.CommitID{}, nil
	}
	order := idx.Descendants(roots)

	rebased := map[objectid.CommitID]objectid.CommitID{}
	for _, old := range order {
		if _, isRoot := m.parentMapping[old]; isRoot {
			continue
		}
		c, err := m.commits.GetCommit(ctx, old)
		if err != nil {
			return nil, fmt.Errorf("repo: rebase: load %s: %w", old, err)
		}
		newParents, err := m.NewParents(ctx, c.Parents)
		if err != nil {
			return nil, err
		}
		if sameIDs(c.Parents, newParents) {
			continue
		}

		if len(newParents) == 1 {
			parentCommit, err := m.commits.GetCommit(ctx, newParents[0])
			if err != nil {
				return nil, fmt.Errorf("repo: rebase: load new parent %s: %w", newParents[0], err)
			}
			if c.Discardable(parentCommit.Tree) {
				m.parentMapping[old] = rewriteEntry{Kind: RewriteAbandoned}
				continue
			}
		}

		rc := rebasedCommit(c, newParents)
		newID, err := m.commits.WriteCommit(ctx, rc, signer)
		if err != nil {
			return nil, fmt.Errorf("repo: rebase: write %s: %w", old, err)
		}
		rc.ID = newID
		m.mutIdx.AddCommit(rc)
		m.parentMapping[old] = rewriteEntry{Kind: RewriteRewritten, NewIDs: []objectid.CommitID{newID}}
		rebased[old] = newID
	}

	if err := m.updateRefsAfterRebase(ctx); err != nil {
		return nil, err
	}
	return rebased, nil
}

func sameIDs(a, b []objectid.CommitID) bool {
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

// updateRefsAfterRebase pushes every recorded rewrite through the view:
// heads, branches, tags and git refs all follow old commit ids to their
// replacements (or drop an abandoned commit with no replacement), and the
// per-workspace working-copy pointer moves forward the same way (spec
// §4.5.3's closing step, "updating every reference that named a rewritten
// commit").
func (m *MutableRepo) updateRefsAfterRebase(ctx context.Context) error {
	remap := func(id objectid.CommitID) []objectid.CommitID {
		ids, err := m.NewParents(ctx, []objectid.CommitID{id})
		if err != nil {
			return []objectid.CommitID{id}
		}
		return ids
	}

	var newHeads []objectid.CommitID
	changed := false
	for _, h := range m.view.Heads() {
		mapped := remap(h)
		if len(mapped) != 1 || mapped[0] != h {
			changed = true
		}
		newHeads = append(newHeads, mapped...)
	}
	if changed {
		for _, h := range m.view.Heads() {
			m.view.RemoveHeadRaw(h)
		}
		for _, id := range newHeads {
			if err := m.ensureIndexed(ctx, id); err != nil {
				return err
			}
		}
		minimized := m.mutIdx.Readonly().Heads(newHeads)
		for _, id := range minimized {
			m.view.AddHeadRaw(id)
		}
	}

	for _, name := range m.view.LocalBranchNames() {
		m.view.SetLocalBranch(name, m.view.LocalBranch(name).MapRemap(remap))
	}
	for _, name := range m.view.TagNames() {
		m.view.SetTag(name, m.view.Tag(name).MapRemap(remap))
	}
	for _, name := range m.view.GitRefNames() {
		m.view.SetGitRef(name, m.view.GitRef(name).MapRemap(remap))
	}
	m.view.SetGitHead(m.view.GitHead().MapRemap(remap))

	for _, ws := range m.view.WorkspaceIDs() {
		id, _ := m.view.WorkingCopy(ws)
		mapped := remap(id)
		if len(mapped) > 0 && mapped[0] != id {
			m.view.SetWorkingCopy(ws, mapped[0])
		}
	}
	return nil
}
