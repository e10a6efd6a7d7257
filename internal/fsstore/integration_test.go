package fsstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jjvcs/opgraph/internal/fsstore"
	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/repo"
	"github.com/jjvcs/opgraph/modules/transaction"
)

// TestTransactionOverFileBackend wires internal/fsstore directly into
// modules/repo and modules/transaction, the way a real command wires a
// loaded backend into the core repo layer (spec §4.5.6), and drives one full
// add-a-commit transaction end to end: start, mutate, commit, reload.
func TestTransactionOverFileBackend(t *testing.T) {
	ctx := context.Background()
	s, err := fsstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	stores := repo.Stores{Commits: s, Ops: s, OpHeads: s, Submodules: s, Index: s}
	loader := repo.NewLoader(stores)

	base, err := loader.LoadAtHead(ctx)
	require.NoError(t, err)
	require.Equal(t, s.RootCommitID(), base.View().Heads()[0])

	c := &commit.Commit{
		Parents:     []objectid.CommitID{s.RootCommitID()},
		ChangeID:    objectid.ChangeID(objectid.Hash([]byte("integration-change"))),
		Description: "add file",
		Author:      commit.Signature{Name: "Student", Email: "student@example.com", When: time.Unix(2000, 0).UTC()},
		Committer:   commit.Signature{Name: "Student", Email: "student@example.com", When: time.Unix(2000, 0).UTC()},
	}
	commitID, err := stores.Commits.WriteCommit(ctx, c, nil)
	require.NoError(t, err)

	tx, err := transaction.Start(ctx, loader)
	require.NoError(t, err)
	require.NoError(t, tx.Repo().AddHead(ctx, commitID))
	tx.Repo().SetLocalBranch("main", refview.Normal(commitID))
	tx.SetTag("args", "test add-commit")

	after, err := tx.Commit(ctx, "add a commit", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.CommitID{commitID}, after.View().Heads())
	require.True(t, after.View().LocalBranch("main").Equal(refview.Normal(commitID)))
	require.Equal(t, "add a commit", after.Operation().Metadata.Description)
	require.Equal(t, "test add-commit", after.Operation().Metadata.Tags["args"])

	heads, err := stores.OpHeads.GetOpHeads(ctx)
	require.NoError(t, err)
	require.Equal(t, []objectid.OperationID{after.OperationID()}, heads)

	idx, err := after.Index(ctx)
	require.NoError(t, err)
	require.True(t, idx.HasID(commitID))
	require.True(t, idx.HasID(s.RootCommitID()))

	reloaded, err := loader.LoadAtOperationID(ctx, after.OperationID())
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.CommitID{commitID}, reloaded.View().Heads())
}
