package transaction

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/oplog"
	"github.com/jjvcs/opgraph/modules/repo"
	"github.com/jjvcs/opgraph/modules/store"
	"github.com/stretchr/testify/require"
)

type memCommitStore struct {
	mu      sync.Mutex
	commits map[objectid.CommitID]*commit.Commit
}

func newMemCommitStore() *memCommitStore {
	s := &memCommitStore{commits: map[objectid.CommitID]*commit.Commit{}}
	s.commits[objectid.CommitID{}] = &commit.Commit{}
	return s
}

func (s *memCommitStore) RootCommitID() objectid.CommitID { return objectid.CommitID{} }

func (s *memCommitStore) WriteCommit(_ context.Context, c *commit.Commit, _ store.Signer) (objectid.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := objectid.CommitID(objectid.Hash([]byte(c.String() + c.Tree.String())))
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
		return nil, fmt.Errorf("commit not found: %s", id)
	}
	return c, nil
}

func (s *memCommitStore) CommitIDLength() int { return objectid.DigestSize }
func (s *memCommitStore) ChangeIDLength() int { return objectid.DigestSize }

func TestTransactionCommitPublishesSingleOpHead(t *testing.T) {
	ctx := context.Background()
	commits := newMemCommitStore()
	ops := oplog.NewMemOpStore()
	stores := repo.Stores{Commits: commits, Ops: ops, OpHeads: ops}
	loader := repo.NewLoader(stores)

	tx, err := Start(ctx, loader)
	require.NoError(t, err)

	changeA := objectid.ChangeID(objectid.Hash([]byte("changeA")))
	newCommit, err := commits.WriteCommit(ctx, &commit.Commit{
		Parents:  []objectid.CommitID{commits.RootCommitID()},
		ChangeID: changeA,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Repo().AddHead(ctx, newCommit))
	tx.SetTag("command", "new")

	result, err := tx.Commit(ctx, "add a commit", nil)
	require.NoError(t, err)
	require.Equal(t, []objectid.CommitID{newCommit}, result.View().Heads())

	heads, err := ops.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, []objectid.OperationID{result.OperationID()}, heads)

	data := result.Operation()
	require.Equal(t, "add a commit", data.Metadata.Description)
	require.Equal(t, "new", data.Metadata.Tags["command"])
}

func TestTransactionDiscardWritesNothing(t *testing.T) {
	ctx := context.Background()
	commits := newMemCommitStore()
	ops := oplog.NewMemOpStore()
	stores := repo.Stores{Commits: commits, Ops: ops, OpHeads: ops}
	loader := repo.NewLoader(stores)

	headsBefore, err := ops.GetOpHeads(ctx)
	require.NoError(t, err)

	tx, err := Start(ctx, loader)
	require.NoError(t, err)
	tx.Discard()

	headsAfter, err := ops.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, headsBefore, headsAfter)
}
