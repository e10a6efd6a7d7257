package repo

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/oplog"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
	"github.com/stretchr/testify/require"
)

// memCommitStore is a minimal in-memory CommitStore for tests: it
// content-addresses by hashing the encoded commit, exactly the property
// store.CommitStore documents, without any of a real backend's on-disk
// layout.
type memCommitStore struct {
	mu      sync.Mutex
	commits map[objectid.CommitID]*commit.Commit
	root    objectid.CommitID
}

func newMemCommitStore() *memCommitStore {
	s := &memCommitStore{commits: map[objectid.CommitID]*commit.Commit{}}
	root := &commit.Commit{}
	s.commits[objectid.CommitID{}] = root
	s.root = objectid.CommitID{}
	return s
}

func (s *memCommitStore) RootCommitID() objectid.CommitID { return s.root }

func (s *memCommitStore) WriteCommit(_ context.Context, c *commit.Commit, _ store.Signer) (objectid.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return objectid.CommitID{}, err
	}
	id := objectid.CommitID(objectid.Hash(buf.Bytes()))
	cp := *c
	cp.ID = id
	s.commits[id] = &cp
	return id, nil
}

func (s *memCommitStore) GetCommit(_ context.Context, id objectid.CommitID) (*commit.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commits[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return c, nil
}

func (s *memCommitStore) CommitIDLength() int { return objectid.DigestSize }
func (s *memCommitStore) ChangeIDLength() int { return objectid.DigestSize }

type errNotFound objectid.CommitID

func (e errNotFound) Error() string { return "commit not found: " + objectid.CommitID(e).String() }

func testStores() (*memCommitStore, *oplog.MemOpStore, Stores) {
	commits := newMemCommitStore()
	ops := oplog.NewMemOpStore()
	return commits, ops, Stores{Commits: commits, Ops: ops, OpHeads: ops}
}

func writeChild(t *testing.T, commits *memCommitStore, parent objectid.CommitID, desc string, change objectid.ChangeID) objectid.CommitID {
	t.Helper()
	id, err := commits.WriteCommit(context.Background(), &commit.Commit{
		Parents:     []objectid.CommitID{parent},
		ChangeID:    change,
		Description: desc,
	}, nil)
	require.NoError(t, err)
	return id
}

func loadRoot(t *testing.T, stores Stores) *ReadonlyRepo {
	t.Helper()
	loader := NewLoader(stores)
	opData, err := stores.Ops.ReadOperation(context.Background(), stores.Ops.RootOperationID())
	require.NoError(t, err)
	repo, err := loader.LoadAt(context.Background(), opData)
	require.NoError(t, err)
	return repo
}

func loadWithHeads(t *testing.T, stores Stores, parentOp objectid.OperationID, heads []objectid.CommitID) *ReadonlyRepo {
	t.Helper()
	ctx := context.Background()
	v := refview.New()
	for _, h := range heads {
		v.AddHeadRaw(h)
	}
	viewID, err := stores.Ops.WriteView(ctx, v)
	require.NoError(t, err)
	opData := store.OperationData{
		Parents:  []objectid.OperationID{parentOp},
		ViewID:   viewID,
		Metadata: store.OperationMetadata{Tags: map[string]string{}},
	}
	opID, err := stores.Ops.WriteOperation(ctx, opData)
	require.NoError(t, err)
	opData.ID = opID
	loaded, err := NewLoader(stores).LoadAt(ctx, opData)
	require.NoError(t, err)
	return loaded
}

func TestAddHeadMinimizesAncestors(t *testing.T) {
	ctx := context.Background()
	commits, _, stores := testStores()
	root := loadRoot(t, stores)

	mut, err := New(ctx, root)
	require.NoError(t, err)

	c1 := writeChild(t, commits, commits.RootCommitID(), "c1", objectid.ChangeID(objectid.Hash([]byte("change1"))))
	require.NoError(t, mut.AddHead(ctx, c1))
	require.Equal(t, []objectid.CommitID{c1}, mut.View().Heads())

	c2 := writeChild(t, commits, c1, "c2", objectid.ChangeID(objectid.Hash([]byte("change2"))))
	require.NoError(t, mut.AddHead(ctx, c2))
	require.Equal(t, []objectid.CommitID{c2}, mut.View().Heads(), "c1 must be dropped once c2 (its descendant) is a head")

	// Re-adding an ancestor of an existing head is a no-op.
	require.NoError(t, mut.AddHead(ctx, c1))
	require.Equal(t, []objectid.CommitID{c2}, mut.View().Heads())
}

func TestRebaseDescendantsFollowsRewrite(t *testing.T) {
	ctx := context.Background()
	commits, _, stores := testStores()
	root := loadRoot(t, stores)

	mut, err := New(ctx, root)
	require.NoError(t, err)

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	c1 := writeChild(t, commits, commits.RootCommitID(), "original", changeA)
	c2 := writeChild(t, commits, c1, "child", changeB)
	require.NoError(t, mut.AddHeads(ctx, []objectid.CommitID{c1, c2}))
	require.Equal(t, []objectid.CommitID{c2}, mut.View().Heads())

	c1rewritten := writeChild(t, commits, commits.RootCommitID(), "edited description", changeA)
	mut.SetRewritten(c1, c1rewritten)

	rebased, err := mut.RebaseDescendants(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, rebased, c2)
	newC2 := rebased[c2]

	newCommit, err := commits.GetCommit(ctx, newC2)
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{c1rewritten}, newCommit.Parents)
	require.Equal(t, []objectid.CommitID{newC2}, mut.View().Heads())
}

func TestRebaseAbandonsDiscardableDescendant(t *testing.T) {
	ctx := context.Background()
	commits, _, stores := testStores()
	root := loadRoot(t, stores)

	mut, err := New(ctx, root)
	require.NoError(t, err)

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	c1 := writeChild(t, commits, commits.RootCommitID(), "c1", changeA)
	// c2 has the same (zero) tree as c1 and an empty description: it
	// becomes discardable once rebased directly onto the root.
	c2, err := commits.WriteCommit(ctx, &commit.Commit{Parents: []objectid.CommitID{c1}, ChangeID: changeB}, nil)
	require.NoError(t, err)
	require.NoError(t, mut.AddHeads(ctx, []objectid.CommitID{c1, c2}))

	mut.RecordAbandoned(c1)
	rebased, err := mut.RebaseDescendants(ctx, nil)
	require.NoError(t, err)
	require.NotContains(t, rebased, c2, "c2 should be abandoned, not recommitted")
	require.Equal(t, []objectid.CommitID{commits.RootCommitID()}, mut.View().Heads())
}

func TestNewParentsLeavesDivergentIntact(t *testing.T) {
	ctx := context.Background()
	commits, _, stores := testStores()
	root := loadRoot(t, stores)

	mut, err := New(ctx, root)
	require.NoError(t, err)

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	b := writeChild(t, commits, commits.RootCommitID(), "b", changeB)
	c := writeChild(t, commits, b, "c", changeA)
	require.NoError(t, mut.AddHeads(ctx, []objectid.CommitID{b, c}))

	bPrime := writeChild(t, commits, commits.RootCommitID(), "b edited one way", changeB)
	bDoublePrime := writeChild(t, commits, commits.RootCommitID(), "b edited another way", changeB)
	mut.SetDivergent(b, bPrime, bDoublePrime)

	// Divergent entries are a no-op in parent substitution: the child keeps
	// the old parent id rather than being fanned out across both
	// replacements (spec §4.5.2).
	resolved, err := mut.NewParents(ctx, []objectid.CommitID{b})
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{b}, resolved)

	rebased, err := mut.RebaseDescendants(ctx, nil)
	require.NoError(t, err)
	require.NotContains(t, rebased, c, "c's parent is divergent, not rewritten, so it is never rebased")
}

func TestMergeAutoRecordsRewriteFromHeads(t *testing.T) {
	ctx := context.Background()
	commits, ops, stores := testStores()
	rootOpID := ops.RootOperationID()

	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	changeC := objectid.ChangeID(objectid.Hash([]byte("changeC")))
	changeD := objectid.ChangeID(objectid.Hash([]byte("changeD")))

	b := writeChild(t, commits, commits.RootCommitID(), "b", changeB)
	c := writeChild(t, commits, b, "c", changeC)

	// self rewrote b into b', rebasing c into c' locally (as a finished
	// transaction already would have), so self's head is c' alone.
	bPrime := writeChild(t, commits, commits.RootCommitID(), "b edited", changeB)
	cPrime := writeChild(t, commits, bPrime, "c rebased", changeC)

	// other never learned about the rewrite: its view still has the
	// original c as a head, plus an unrelated new head d.
	d := writeChild(t, commits, commits.RootCommitID(), "d", changeD)

	base := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c})
	self := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{cPrime})
	other := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c, d})

	mut, err := New(ctx, self)
	require.NoError(t, err)
	require.NoError(t, mut.Merge(ctx, base, other))

	heads := mut.View().Heads()
	require.ElementsMatch(t, []objectid.CommitID{cPrime, d}, heads, "old c is dropped: self abandoned it and other never re-added it")

	resolvedB, err := mut.NewParents(ctx, []objectid.CommitID{b})
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{bPrime}, resolvedB, "merge must auto-record b -> b' from the change-id match")

	resolvedC, err := mut.NewParents(ctx, []objectid.CommitID{c})
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{cPrime}, resolvedC, "merge must auto-record c -> c' from the change-id match")
}

func TestMergeAutoRecordsDivergentRewrite(t *testing.T) {
	ctx := context.Background()
	commits, ops, stores := testStores()
	rootOpID := ops.RootOperationID()

	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	changeC := objectid.ChangeID(objectid.Hash([]byte("changeC")))
	b := writeChild(t, commits, commits.RootCommitID(), "b", changeB)
	c := writeChild(t, commits, b, "c", changeC)

	// self and other each independently rewrote c (same change id, same
	// parent b, different content), so both replacements are equally valid.
	cPrime := writeChild(t, commits, b, "c edited one way", changeC)
	cDoublePrime := writeChild(t, commits, b, "c edited another way", changeC)

	base := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c})
	self := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{cPrime})
	other := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{cDoublePrime})

	mut, err := New(ctx, self)
	require.NoError(t, err)
	require.NoError(t, mut.Merge(ctx, base, other))

	// Two matches means c diverged rather than a clean rewrite; divergent
	// entries are a no-op in parent substitution, same as an explicit
	// SetDivergent call (spec §4.5.2), so c keeps its own id here.
	resolved, err := mut.NewParents(ctx, []objectid.CommitID{c})
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{c}, resolved)
	require.ElementsMatch(t, []objectid.CommitID{cPrime, cDoublePrime}, mut.DivergentChanges()[changeC])
}

func TestMergeHeadsThreeWay(t *testing.T) {
	ctx := context.Background()
	commits, ops, stores := testStores()
	rootOpID := ops.RootOperationID()

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	c2 := writeChild(t, commits, commits.RootCommitID(), "self side", changeA)
	c3 := writeChild(t, commits, commits.RootCommitID(), "other side", changeB)

	base := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{commits.RootCommitID()})
	self := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c2})
	other := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c3})

	mut, err := New(ctx, self)
	require.NoError(t, err)
	require.NoError(t, mut.Merge(ctx, base, other))

	heads := mut.View().Heads()
	require.Len(t, heads, 2)
	require.Contains(t, heads, c2)
	require.Contains(t, heads, c3)
}

func TestClassifyWorkingCopy(t *testing.T) {
	ctx := context.Background()
	_, ops, stores := testStores()
	rootOpID := ops.RootOperationID()

	v := refview.New()
	viewID, err := ops.WriteView(ctx, v)
	require.NoError(t, err)
	childOp := store.OperationData{Parents: []objectid.OperationID{rootOpID}, ViewID: viewID, Metadata: store.OperationMetadata{Tags: map[string]string{}}}
	childID, err := ops.WriteOperation(ctx, childOp)
	require.NoError(t, err)

	status, err := ClassifyWorkingCopy(ctx, stores.Ops, rootOpID, childID)
	require.NoError(t, err)
	require.Equal(t, WorkingCopyStale, status)

	status, err = ClassifyWorkingCopy(ctx, stores.Ops, childID, childID)
	require.NoError(t, err)
	require.Equal(t, WorkingCopyCurrent, status)
}
