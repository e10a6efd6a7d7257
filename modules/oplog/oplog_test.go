package oplog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// writeOp appends one operation parented on parents, tagged with label so
// failures are easy to read, and returns its id.
func writeOp(t *testing.T, s *MemOpStore, label string, parents ...objectid.OperationID) objectid.OperationID {
	t.Helper()
	viewID, err := s.WriteView(context.Background(), refview.New())
	require.NoError(t, err)
	id, err := s.WriteOperation(context.Background(), store.OperationData{
		Parents: parents,
		ViewID:  viewID,
		Metadata: store.OperationMetadata{
			Description: label,
			Tags:        map[string]string{},
		},
	})
	require.NoError(t, err)
	return id
}

func TestNewMemOpStoreSeedsRoot(t *testing.T) {
	s := NewMemOpStore()
	root := s.RootOperationID()
	data, err := s.ReadOperation(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, data.Parents)

	heads, err := s.GetOpHeads(context.Background())
	require.NoError(t, err)
	require.Equal(t, []objectid.OperationID{root}, heads)
}

func TestReadOperationNotFound(t *testing.T) {
	s := NewMemOpStore()
	_, err := s.ReadOperation(context.Background(), objectid.OperationID(objectid.Hash([]byte("missing"))))
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestWriteOperationIsContentAddressed(t *testing.T) {
	s := NewMemOpStore()
	root := s.RootOperationID()
	id1 := writeOp(t, s, "same op")
	id2 := writeOp(t, s, "same op")
	require.Equal(t, id1, id2)
	require.NotEqual(t, root, id1)
}

func TestIsAncestorLinearChain(t *testing.T) {
	s := NewMemOpStore()
	root := s.RootOperationID()
	op1 := writeOp(t, s, "op1", root)
	op2 := writeOp(t, s, "op2", op1)

	ctx := context.Background()
	anc, err := IsAncestor(ctx, s, root, op2)
	require.NoError(t, err)
	require.True(t, anc)

	anc, err = IsAncestor(ctx, s, op2, root)
	require.NoError(t, err)
	require.False(t, anc)

	anc, err = IsAncestor(ctx, s, op1, op1)
	require.NoError(t, err)
	require.False(t, anc)
}

func TestClassifyRelations(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	root := s.RootOperationID()
	left := writeOp(t, s, "left", root)
	right := writeOp(t, s, "right", root)
	child := writeOp(t, s, "child-of-left", left)

	rel, err := Classify(ctx, s, left, left)
	require.NoError(t, err)
	require.Equal(t, RelationEqual, rel)

	rel, err = Classify(ctx, s, left, child)
	require.NoError(t, err)
	require.Equal(t, RelationAAncestorOfB, rel)

	rel, err = Classify(ctx, s, child, left)
	require.NoError(t, err)
	require.Equal(t, RelationBAncestorOfA, rel)

	rel, err = Classify(ctx, s, left, right)
	require.NoError(t, err)
	require.Equal(t, RelationSibling, rel)
}

func TestCommonAncestorOfSiblings(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	root := s.RootOperationID()
	left := writeOp(t, s, "left", root)
	right := writeOp(t, s, "right", root)

	base, err := CommonAncestor(ctx, s, left, right)
	require.NoError(t, err)
	require.Equal(t, root, base)
}

func TestCommonAncestorOfEqualOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	op := writeOp(t, s, "solo", s.RootOperationID())
	base, err := CommonAncestor(ctx, s, op, op)
	require.NoError(t, err)
	require.Equal(t, op, base)
}

func TestCommonAncestorPrefersMostSpecific(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	root := s.RootOperationID()
	mid := writeOp(t, s, "mid", root)
	left := writeOp(t, s, "left", mid)
	right := writeOp(t, s, "right", mid)

	base, err := CommonAncestor(ctx, s, left, right)
	require.NoError(t, err)
	require.Equal(t, mid, base)
}

func TestMinimizeHeadsDropsAncestors(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	root := s.RootOperationID()
	op1 := writeOp(t, s, "op1", root)
	op2 := writeOp(t, s, "op2", op1)
	op3 := writeOp(t, s, "op3", root)

	minimized, err := MinimizeHeads(ctx, s, []objectid.OperationID{root, op1, op2, op3})
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.OperationID{op2, op3}, minimized)
}

func TestOperationWrapAndParents(t *testing.T) {
	ctx := context.Background()
	s := NewMemOpStore()
	root := s.RootOperationID()
	op1 := writeOp(t, s, "op1", root)

	o, err := Load(ctx, s, op1)
	require.NoError(t, err)
	require.Equal(t, op1, o.ID())
	require.False(t, o.IsRoot())

	parents, err := o.Parents(ctx)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	require.True(t, parents[0].IsRoot())
	require.Equal(t, root, parents[0].ID())
}

func TestUpdateOpHeadsRaceSafeUnderLock(t *testing.T) {
	s := NewMemOpStore()
	root := s.RootOperationID()
	opA := writeOp(t, s, "a", root)
	opB := writeOp(t, s, "b", root)

	require.NoError(t, s.UpdateOpHeads(context.Background(), []objectid.OperationID{root}, opA))
	require.NoError(t, s.UpdateOpHeads(context.Background(), []objectid.OperationID{root}, opB))

	heads, err := s.GetOpHeads(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.OperationID{opA, opB}, heads)
}

func TestReadViewNotFound(t *testing.T) {
	s := NewMemOpStore()
	_, err := s.ReadView(context.Background(), objectid.ViewID(objectid.Hash([]byte("missing"))))
	require.Error(t, err)
	var nf *ViewNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestWriteViewRoundTripsThroughClone(t *testing.T) {
	s := NewMemOpStore()
	v := refview.New()
	head := objectid.CommitID(objectid.Hash([]byte("head")))
	v.AddHeadRaw(head)

	id, err := s.WriteView(context.Background(), v)
	require.NoError(t, err)

	// Mutating the original after writing must not affect the stored copy.
	v.RemoveHeadRaw(head)

	back, err := s.ReadView(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{head}, back.Heads())
}
