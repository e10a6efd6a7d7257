package repo

import (
	"context"
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
)

// Merge folds other's view into m, three-way against base (the common
// ancestor operation's view), and records any same-change-id divergence the
// merge produces (spec §4.5.7 "resolving concurrent operations"). m must
// already equal self's view going in -- callers build m with New(ctx, self)
// and then call Merge(ctx, base, other).
func (m *MutableRepo) Merge(ctx context.Context, base, other *ReadonlyRepo) error {
	if err := m.mergeHeads(ctx, base, other); err != nil {
		return err
	}
	if err := m.recordRewritesFromHeads(ctx, base); err != nil {
		return err
	}
	m.mergeRefNamespace(base.View(), other.View())
	m.mergeWorkingCopies(base.View(), other.View())
	return m.recordDivergenceFromHeads(ctx)
}

// recordRewritesFromHeads implements spec §4.5.5's "auto-recorded rewrites":
// it walks every commit reachable from the just-merged head set but not from
// base's heads (newly visible since the common ancestor operation) and every
// commit reachable from base's heads but not from the merged head set (no
// longer visible -- this must run after mergeHeads, since mergeHeads' own
// self/other/base occurrence algebra is what correctly drops a head one side
// abandoned even though the other side never touched it). A no-longer-visible
// commit whose change id matches one or more newly-visible commits was
// rewritten (Rewritten if one match, Divergent if several); one with no
// match was abandoned. This is what lets RebaseDescendants move a side's
// descendants onto the other side's concurrent rewrite instead of leaving
// them parented on a commit that dropped out of both heads.
func (m *MutableRepo) recordRewritesFromHeads(ctx context.Context, base *ReadonlyRepo) error {
	for _, id := range base.View().Heads() {
		if err := m.ensureIndexed(ctx, id); err != nil {
			return err
		}
	}
	idx := m.mutIdx.Readonly()

	live := idx.Ancestors(m.view.Heads(), 0, ^uint64(0))
	baseAncestors := idx.Ancestors(base.View().Heads(), 0, ^uint64(0))

	liveSet := map[objectid.CommitID]bool{}
	for _, id := range live {
		liveSet[id] = true
	}
	baseSet := map[objectid.CommitID]bool{}
	for _, id := range baseAncestors {
		baseSet[id] = true
	}

	newByChange := map[objectid.ChangeID][]objectid.CommitID{}
	for _, id := range live {
		if baseSet[id] {
			continue
		}
		if e, ok := idx.Entry(id); ok {
			newByChange[e.ChangeID] = append(newByChange[e.ChangeID], id)
		}
	}

	for _, id := range baseAncestors {
		if liveSet[id] {
			continue
		}
		e, ok := idx.Entry(id)
		if !ok {
			continue
		}
		matches := newByChange[e.ChangeID]
		switch len(matches) {
		case 0:
			m.RecordAbandoned(id)
		case 1:
			m.SetRewritten(id, matches[0])
		default:
			m.SetDivergent(id, matches...)
		}
	}
	return nil
}

// mergeHeads applies the same "self ⊎ other ⊖ base" occurrence algebra
// RefTarget.Merge uses to ref targets, to the head set itself: a head
// present in self or other but absent from base was added by that side; one
// present in base but dropped by a side was removed by it.
func (m *MutableRepo) mergeHeads(ctx context.Context, base, other *ReadonlyRepo) error {
	counts := map[objectid.CommitID]int{}
	for _, h := range m.view.Heads() {
		counts[h]++
	}
	for _, h := range other.View().Heads() {
		counts[h]++
	}
	for _, h := range base.View().Heads() {
		counts[h]--
	}
	var merged []objectid.CommitID
	for id, c := range counts {
		if c > 0 {
			merged = append(merged, id)
		}
	}
	if len(merged) == 0 {
		merged = []objectid.CommitID{m.base.RootCommitID()}
	}
	for _, id := range merged {
		if err := m.ensureIndexed(ctx, id); err != nil {
			return err
		}
	}
	minimized := m.mutIdx.Readonly().Heads(merged)
	for _, h := range m.view.Heads() {
		m.view.RemoveHeadRaw(h)
	}
	for _, id := range minimized {
		m.view.AddHeadRaw(id)
	}
	return nil
}

// mergeRefNamespace three-way merges every local branch, tag, git ref and
// git HEAD by name, reusing RefTarget.Merge per spec §4.3.
func (m *MutableRepo) mergeRefNamespace(base, other *refview.View) {
	names := unionNames(m.view.LocalBranchNames(), base.LocalBranchNames(), other.LocalBranchNames())
	for _, name := range names {
		merged := m.view.LocalBranch(name).Merge(base.LocalBranch(name), other.LocalBranch(name))
		m.view.SetLocalBranch(name, merged)
	}
	names = unionNames(m.view.TagNames(), base.TagNames(), other.TagNames())
	for _, name := range names {
		merged := m.view.Tag(name).Merge(base.Tag(name), other.Tag(name))
		m.view.SetTag(name, merged)
	}
	names = unionNames(m.view.GitRefNames(), base.GitRefNames(), other.GitRefNames())
	for _, name := range names {
		merged := m.view.GitRef(name).Merge(base.GitRef(name), other.GitRef(name))
		m.view.SetGitRef(name, merged)
	}
	m.view.SetGitHead(m.view.GitHead().Merge(base.GitHead(), other.GitHead()))

	remoteNames := map[[2]string]bool{}
	for _, r := range []*refview.View{m.view, base, other} {
		for key := range r.RemoteBranches() {
			remoteNames[[2]string{key.Name, key.Remote}] = true
		}
	}
	keys := make([][2]string, 0, len(remoteNames))
	for k := range remoteNames {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		selfRef := m.view.RemoteBranch(k[0], k[1])
		baseRef := base.RemoteBranch(k[0], k[1])
		otherRef := other.RemoteBranch(k[0], k[1])
		merged := selfRef.Target.Merge(baseRef.Target, otherRef.Target)
		state := selfRef.State
		if otherRef.State == refview.RemoteRefTracking {
			state = refview.RemoteRefTracking
		}
		m.view.SetRemoteBranch(k[0], k[1], refview.RemoteRef{Target: merged, State: state})
	}
}

// mergeWorkingCopies keeps m's own working-copy pointers untouched (they
// name a local checkout, not shared state) but adopts a workspace that
// exists only on other's side -- a workspace neither self nor base knows
// about was created concurrently and should still show up after the merge.
func (m *MutableRepo) mergeWorkingCopies(base, other *refview.View) {
	for _, ws := range other.WorkspaceIDs() {
		if _, ok := m.view.WorkingCopy(ws); ok {
			continue
		}
		if _, ok := base.WorkingCopy(ws); ok {
			continue
		}
		id, _ := other.WorkingCopy(ws)
		m.view.SetWorkingCopy(ws, id)
	}
}

// recordDivergenceFromHeads groups the merged head set by change id and
// records every change id with more than one surviving head as divergent,
// so NewParents and downstream log output see a consistent rewrite chain
// instead of two silently-unrelated commits sharing a change id.
func (m *MutableRepo) recordDivergenceFromHeads(ctx context.Context) error {
	idx := m.mutIdx.Readonly()
	byChange := map[objectid.ChangeID][]objectid.CommitID{}
	for _, h := range m.view.Heads() {
		e, ok := idx.Entry(h)
		if !ok {
			continue
		}
		byChange[e.ChangeID] = append(byChange[e.ChangeID], h)
	}
	for changeID, ids := range byChange {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].AsID().Less(ids[j].AsID()) })
		m.markDivergentChange(changeID, ids)
	}
	return nil
}

func unionNames(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, n := range l {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}
