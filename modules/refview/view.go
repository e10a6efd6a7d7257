package refview

import (
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// RemoteRefState distinguishes a remote branch we have never fetched before
// (New) from one we are actively tracking (Tracking); see spec §3.
type RemoteRefState int

const (
	RemoteRefNew RemoteRefState = iota
	RemoteRefTracking
)

// RemoteRef is a remote branch pointer plus its tracking state.
type RemoteRef struct {
	Target RefTarget
	State  RemoteRefState
}

// IsTracking reports whether this remote ref contributes to local-branch
// merges (spec §3: "Tracking remote refs contribute to the local branch on
// merge; non-tracking ones do not").
func (r RemoteRef) IsTracking() bool { return r.State == RemoteRefTracking }

type remoteBranchKey struct {
	Name   string
	Remote string
}

// View is the in-memory reference state at one operation: heads, the
// per-workspace working-copy pointers, and the four ref namespaces (local
// branches, remote branches, tags, git refs) plus git HEAD.
type View struct {
	heads         map[objectid.CommitID]struct{}
	wcCommitIDs   map[objectid.WorkspaceID]objectid.CommitID
	localBranches map[string]RefTarget
	remoteBranches map[remoteBranchKey]RemoteRef
	tags          map[string]RefTarget
	gitRefs       map[string]RefTarget
	gitHead       RefTarget
}

// New returns an empty view (no heads; callers should immediately pad with
// the root commit id via EnsureNonEmptyHeads, which RepoLoader does).
func New() *View {
	return &View{
		heads:          map[objectid.CommitID]struct{}{},
		wcCommitIDs:    map[objectid.WorkspaceID]objectid.CommitID{},
		localBranches:  map[string]RefTarget{},
		remoteBranches: map[remoteBranchKey]RemoteRef{},
		tags:           map[string]RefTarget{},
		gitRefs:        map[string]RefTarget{},
	}
}

// Clone returns a deep copy so mutations on one view never alias another
// (MutableRepo needs this when it forks a ReadonlyRepo's view).
func (v *View) Clone() *View {
	n := New()
	for h := range v.heads {
		n.heads[h] = struct{}{}
	}
	for w, c := range v.wcCommitIDs {
		n.wcCommitIDs[w] = c
	}
	for k, t := range v.localBranches {
		n.localBranches[k] = t
	}
	for k, r := range v.remoteBranches {
		n.remoteBranches[k] = r
	}
	for k, t := range v.tags {
		n.tags[k] = t
	}
	for k, t := range v.gitRefs {
		n.gitRefs[k] = t
	}
	n.gitHead = v.gitHead
	return n
}

// Heads returns the current head set as a sorted slice.
func (v *View) Heads() []objectid.CommitID {
	out := make([]objectid.CommitID, 0, len(v.heads))
	for h := range v.heads {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsID().Less(out[j].AsID()) })
	return out
}

func (v *View) HasHead(id objectid.CommitID) bool {
	_, ok := v.heads[id]
	return ok
}

func (v *View) AddHeadRaw(id objectid.CommitID) { v.heads[id] = struct{}{} }
func (v *View) RemoveHeadRaw(id objectid.CommitID) { delete(v.heads, id) }

// EnsureNonEmptyHeads pads the head set with root when it would otherwise be
// empty, per the View invariant in spec §3.
func (v *View) EnsureNonEmptyHeads(root objectid.CommitID) {
	if len(v.heads) == 0 {
		v.heads[root] = struct{}{}
	}
}

func (v *View) WorkspaceIDs() []objectid.WorkspaceID {
	out := make([]objectid.WorkspaceID, 0, len(v.wcCommitIDs))
	for w := range v.wcCommitIDs {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (v *View) WorkingCopy(ws objectid.WorkspaceID) (objectid.CommitID, bool) {
	id, ok := v.wcCommitIDs[ws]
	return id, ok
}

func (v *View) SetWorkingCopy(ws objectid.WorkspaceID, id objectid.CommitID) {
	v.wcCommitIDs[ws] = id
}

func (v *View) RemoveWorkspace(ws objectid.WorkspaceID) {
	delete(v.wcCommitIDs, ws)
}

func (v *View) LocalBranch(name string) RefTarget { return v.localBranches[name] }

func (v *View) SetLocalBranch(name string, t RefTarget) {
	if t.IsAbsent() {
		delete(v.localBranches, name)
		return
	}
	v.localBranches[name] = t
}

func (v *View) LocalBranchNames() []string {
	return sortedKeys(v.localBranches)
}

func (v *View) LocalBranches() map[string]RefTarget { return v.localBranches }
func (v *View) Tags() map[string]RefTarget          { return v.tags }
func (v *View) GitRefs() map[string]RefTarget       { return v.gitRefs }

func (v *View) RemoteBranch(name, remote string) RemoteRef {
	return v.remoteBranches[remoteBranchKey{name, remote}]
}

func (v *View) SetRemoteBranch(name, remote string, r RemoteRef) {
	key := remoteBranchKey{name, remote}
	if r.Target.IsAbsent() {
		delete(v.remoteBranches, key)
		return
	}
	v.remoteBranches[key] = r
}

func (v *View) RemoteBranches() map[remoteBranchKey]RemoteRef { return v.remoteBranches }

func (v *View) Tag(name string) RefTarget { return v.tags[name] }

func (v *View) SetTag(name string, t RefTarget) {
	if t.IsAbsent() {
		delete(v.tags, name)
		return
	}
	v.tags[name] = t
}

func (v *View) TagNames() []string { return sortedKeys(v.tags) }

func (v *View) GitRef(name string) RefTarget { return v.gitRefs[name] }

func (v *View) SetGitRef(name string, t RefTarget) {
	if t.IsAbsent() {
		delete(v.gitRefs, name)
		return
	}
	v.gitRefs[name] = t
}

func (v *View) GitRefNames() []string { return sortedKeys(v.gitRefs) }

func (v *View) GitHead() RefTarget         { return v.gitHead }
func (v *View) SetGitHead(t RefTarget)     { v.gitHead = t }

func sortedKeys(m map[string]RefTarget) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RefTargetDiffEntry is one (name, base, other) triple yielded by DiffRefs,
// omitting names where base and other agree (spec §4.3).
type RefTargetDiffEntry struct {
	Name  string
	Base  RefTarget
	Other RefTarget
}

// DiffRefs diffs two name->RefTarget maps, yielding entries for every name
// present in either map whose targets differ.
func DiffRefs(base, other map[string]RefTarget) []RefTargetDiffEntry {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(base)+len(other))
	for n := range base {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	for n := range other {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	var out []RefTargetDiffEntry
	for _, n := range names {
		b, o := base[n], other[n]
		if !b.Equal(o) {
			out = append(out, RefTargetDiffEntry{Name: n, Base: b, Other: o})
		}
	}
	return out
}
