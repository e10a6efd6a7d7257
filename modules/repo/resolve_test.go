package repo

import (
	"context"
	"testing"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/stretchr/testify/require"
)

func TestResolveOpHeadsMergesConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	commits, ops, stores := testStores()
	rootOpID := ops.RootOperationID()

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	changeB := objectid.ChangeID(objectid.Hash([]byte("changeB")))
	c1 := writeChild(t, commits, commits.RootCommitID(), "session one", changeA)
	c2 := writeChild(t, commits, commits.RootCommitID(), "session two", changeB)

	writeOp := func(heads []objectid.CommitID) objectid.OperationID {
		repo := loadWithHeads(t, stores, rootOpID, heads)
		require.NoError(t, ops.UpdateOpHeads(ctx, []objectid.OperationID{rootOpID}, repo.OperationID()))
		return repo.OperationID()
	}
	op1 := writeOp([]objectid.CommitID{c1})
	_ = op1
	// Simulate two concurrent sessions both branching off root: reset the
	// head set to include both operations as heads (UpdateOpHeads above
	// already dropped rootOpID for the first write; add the second
	// operation's id as a second, concurrent head).
	op2Repo := loadWithHeads(t, stores, rootOpID, []objectid.CommitID{c2})
	require.NoError(t, ops.UpdateOpHeads(ctx, nil, op2Repo.OperationID()))

	heads, err := ops.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Len(t, heads, 2)

	loader := NewLoader(stores)
	resolved, err := loader.ResolveOpHeads(ctx)
	require.NoError(t, err)

	finalHeads, err := ops.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Len(t, finalHeads, 1, "resolving must collapse to a single op-head")

	require.ElementsMatch(t, []objectid.CommitID{c1, c2}, resolved.View().Heads())
}
