// Package transaction provides the single write entry point every mutating
// command goes through: open a Transaction over the repository's current
// (already op-head-resolved) state, mutate its MutableRepo, then Commit to
// durably record the result as a new operation and publish it as the sole
// op-head, adapted from the reference VCS's Database.Update
// begin/defer-rollback/commit pattern generalised from "one SQL transaction"
// to "one operation-log entry".
package transaction

import (
	"context"
	"fmt"

	"github.com/jjvcs/opgraph/internal/vcslog"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/repo"
	"github.com/jjvcs/opgraph/modules/store"
)

// Transaction wraps a MutableRepo with the bookkeeping needed to publish it:
// which operation it started from, and the tag set that will be attached to
// the operation record it produces.
type Transaction struct {
	loader  *repo.RepoLoader
	base    *repo.ReadonlyRepo
	mut     *repo.MutableRepo
	tags    map[string]string
	closed  bool
}

// Start resolves any concurrent op-heads and opens a transaction on top of
// the result (spec §4.5.6: "every transaction begins by resolving
// concurrent operations").
func Start(ctx context.Context, loader *repo.RepoLoader) (*Transaction, error) {
	base, err := loader.ResolveOpHeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("transaction: start: %w", err)
	}
	mut, err := repo.New(ctx, base)
	if err != nil {
		return nil, err
	}
	return &Transaction{loader: loader, base: base, mut: mut, tags: map[string]string{}}, nil
}

// StartAt opens a transaction on top of a specific, already-resolved
// ReadonlyRepo, for callers (such as tests) that constructed the base
// explicitly rather than through op-head resolution.
func StartAt(ctx context.Context, loader *repo.RepoLoader, base *repo.ReadonlyRepo) (*Transaction, error) {
	mut, err := repo.New(ctx, base)
	if err != nil {
		return nil, err
	}
	return &Transaction{loader: loader, base: base, mut: mut, tags: map[string]string{}}, nil
}

// Repo exposes the mutable repository for edits.
func (tx *Transaction) Repo() *repo.MutableRepo { return tx.mut }

// SetTag attaches a free-form key/value pair to the operation this
// transaction will produce (spec §6.2's "tags" field -- used for things like
// recording the originating command name).
func (tx *Transaction) SetTag(key, value string) {
	tx.tags[key] = value
}

// Discard abandons every edit made in the transaction without writing
// anything; it is always safe to call, including after Commit.
func (tx *Transaction) Discard() {
	tx.closed = true
}

// Commit rebases every pending rewrite's descendants, writes the resulting
// view and a new operation recording it (parented on the transaction's
// starting operation), and publishes that operation as the repository's
// sole op-head, returning the ReadonlyRepo the operation now points at
// (spec §4.5.6).
func (tx *Transaction) Commit(ctx context.Context, description string, signer store.Signer) (*repo.ReadonlyRepo, error) {
	if tx.closed {
		return nil, fmt.Errorf("transaction: already closed")
	}
	rewrites, err := tx.mut.RebaseDescendants(ctx, signer)
	if err != nil {
		return nil, fmt.Errorf("transaction: commit: %w", err)
	}
	vcslog.WithOp(tx.base.OperationID().String()).Debugf("rebase_descendants rewrote %d commit(s)", len(rewrites))

	opData, err := tx.writeOperation(ctx, description)
	if err != nil {
		return nil, err
	}
	tx.closed = true
	vcslog.WithOp(opData.ID.String()).Info("transaction committed")
	return tx.loader.LoadAt(ctx, opData)
}

func (tx *Transaction) writeOperation(ctx context.Context, description string) (store.OperationData, error) {
	stores := tx.base.Stores()
	viewID, err := stores.Ops.WriteView(ctx, tx.mut.View())
	if err != nil {
		return store.OperationData{}, fmt.Errorf("transaction: write view: %w", err)
	}
	data := store.OperationData{
		Parents: []objectid.OperationID{tx.base.OperationID()},
		ViewID:  viewID,
		Metadata: store.OperationMetadata{
			Description: description,
			Tags:        tx.tags,
		},
	}
	newID, err := stores.Ops.WriteOperation(ctx, data)
	if err != nil {
		return store.OperationData{}, fmt.Errorf("transaction: write operation: %w", err)
	}
	data.ID = newID
	if err := stores.OpHeads.UpdateOpHeads(ctx, []objectid.OperationID{tx.base.OperationID()}, newID); err != nil {
		return store.OperationData{}, fmt.Errorf("transaction: update op heads: %w", err)
	}
	vcslog.WithOp(newID.String()).Debug("update_op_heads published new sole op-head")
	return data, nil
}
