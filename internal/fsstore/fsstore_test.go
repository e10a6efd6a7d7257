package fsstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCommitWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c := &commit.Commit{
		Parents:     []objectid.CommitID{s.RootCommitID()},
		ChangeID:    objectid.ChangeID(objectid.Hash([]byte("change-a"))),
		Description: "first commit",
		Author:      commit.Signature{Name: "A", Email: "a@example.com", When: time.Unix(1000, 0).UTC()},
		Committer:   commit.Signature{Name: "A", Email: "a@example.com", When: time.Unix(1000, 0).UTC()},
	}
	id, err := s.WriteCommit(ctx, c, nil)
	require.NoError(t, err)
	require.False(t, id.IsZero())

	// Writing identical content again must return the same id (spec §4.1
	// content-addressing).
	id2, err := s.WriteCommit(ctx, c, nil)
	require.NoError(t, err)
	require.Equal(t, id, id2)

	got, err := s.GetCommit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "first commit", got.Description)
	require.Equal(t, c.ChangeID, got.ChangeID)
}

func TestWriteCommitRejectsRoot(t *testing.T) {
	s := openTestStore(t)
	_, err := s.WriteCommit(context.Background(), &commit.Commit{}, nil)
	require.ErrorIs(t, err, store.ErrRewriteRoot)
}

func TestOperationAndViewRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v := refview.New()
	v.AddHeadRaw(objectid.CommitID(objectid.Hash([]byte("head"))))
	v.SetLocalBranch("main", refview.Normal(objectid.CommitID(objectid.Hash([]byte("head")))))

	viewID, err := s.WriteView(ctx, v)
	require.NoError(t, err)

	data := store.OperationData{
		Parents: []objectid.OperationID{s.RootOperationID()},
		ViewID:  viewID,
		Metadata: store.OperationMetadata{
			Description: "a transaction",
			Username:    "alice",
			Tags:        map[string]string{"args": "jj new"},
		},
	}
	opID, err := s.WriteOperation(ctx, data)
	require.NoError(t, err)

	readBack, err := s.ReadOperation(ctx, opID)
	require.NoError(t, err)
	require.Equal(t, "a transaction", readBack.Metadata.Description)
	require.Equal(t, "jj new", readBack.Metadata.Tags["args"])
	require.Equal(t, viewID, readBack.ViewID)

	readView, err := s.ReadView(ctx, viewID)
	require.NoError(t, err)
	require.True(t, readView.LocalBranch("main").Equal(v.LocalBranch("main")))
}

func TestRootOperationIsSynthesised(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	root, err := s.ReadOperation(ctx, s.RootOperationID())
	require.NoError(t, err)
	require.Empty(t, root.Parents)

	view, err := s.ReadView(ctx, root.ViewID)
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.CommitID{s.RootCommitID()}, view.Heads())
}

func TestOpHeadsFreshRepoIsRoot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	heads, err := s.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, []objectid.OperationID{s.RootOperationID()}, heads)
}

func TestUpdateOpHeadsRemovesOldInsertsNew(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	root := s.RootOperationID()
	newID := objectid.OperationID(objectid.Hash([]byte("op-1")))

	require.NoError(t, s.UpdateOpHeads(ctx, []objectid.OperationID{root}, newID))

	heads, err := s.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, []objectid.OperationID{newID}, heads)
}

// TestUpdateOpHeadsConcurrentCallersBothSucceed exercises the race-safety
// contract of spec §4.1: two processes each believing the head-set is
// {root} concurrently add their own new head; both updates must succeed and
// the resulting set must equal the union.
func TestUpdateOpHeadsConcurrentCallersBothSucceed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	root := s.RootOperationID()
	opA := objectid.OperationID(objectid.Hash([]byte("op-a")))
	opB := objectid.OperationID(objectid.Hash([]byte("op-b")))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = s.UpdateOpHeads(ctx, []objectid.OperationID{root}, opA)
	}()
	go func() {
		defer wg.Done()
		errs[1] = s.UpdateOpHeads(ctx, []objectid.OperationID{root}, opB)
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	heads, err := s.GetOpHeads(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.OperationID{opA, opB}, heads)
}

func TestCompressionAlgoSwitchStillReadsOldObjects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s1, err := Open(dir, WithCompressionAlgo("gzip"))
	require.NoError(t, err)
	c := &commit.Commit{
		Parents:  []objectid.CommitID{s1.RootCommitID()},
		ChangeID: objectid.ChangeID(objectid.Hash([]byte("c"))),
	}
	id, err := s1.WriteCommit(ctx, c, nil)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir, WithCompressionAlgo("zstd"))
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetCommit(ctx, id)
	require.NoError(t, err)
	require.Equal(t, c.ChangeID, got.ChangeID)
}

func TestHasSubmodulesEmptyByDefault(t *testing.T) {
	s := openTestStore(t)
	has, err := s.HasSubmodules(context.Background())
	require.NoError(t, err)
	require.False(t, has)
}

func TestInitRepositoryLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitRepository(dir))
	for _, sub := range []string{"store", "op_store", "op_heads", "index", "submodule_store"} {
		typ, err := LoadType(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.Equal(t, BackendName, typ)
	}
}
