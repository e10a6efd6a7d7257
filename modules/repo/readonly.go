// Package repo implements the readonly and mutable repository model: a
// view frozen at one operation (ReadonlyRepo), and the transactional
// mutation surface that rewrites commits, rebases descendants and merges
// concurrent views (MutableRepo), adapted from the reference VCS's
// backend.Database lazy-reload/Options pattern generalised from "a blob
// store" to "a full repository snapshot".
package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// Stores bundles the store traits a repo needs; it is the Go analogue of
// passing around five separate trait objects everywhere.
type Stores struct {
	Commits    store.CommitStore
	Ops        store.OpStore
	OpHeads    store.OpHeadsStore
	Submodules store.SubmoduleStore

	// Index is optional: a backend that can answer GetIndexAtOp lets
	// ReadonlyRepo.Index skip its own parent-first commit walk and reuse
	// whatever the backend already has cached or can build more cheaply.
	// A nil Index just falls back to buildIndex.
	Index store.IndexStore
}

// ReadonlyRepo is an immutable snapshot: a view frozen at one operation,
// plus a lazily-built index and change-id index (spec §4.4).
type ReadonlyRepo struct {
	stores    Stores
	loader    *RepoLoader
	operation store.OperationData
	view      *refview.View

	idxOnce     sync.Once
	idx         *index.ReadonlyIndex
	idxErr      error
	changeOnce  sync.Once
	changeIdx   *index.ChangeIDIndex
}

func (r *ReadonlyRepo) Stores() Stores                      { return r.stores }
func (r *ReadonlyRepo) Operation() store.OperationData       { return r.operation }
func (r *ReadonlyRepo) OperationID() objectid.OperationID    { return r.operation.ID }
func (r *ReadonlyRepo) View() *refview.View                  { return r.view }
func (r *ReadonlyRepo) Loader() *RepoLoader                  { return r.loader }
func (r *ReadonlyRepo) RootCommitID() objectid.CommitID      { return r.stores.Commits.RootCommitID() }

// Index lazily builds the topological index over every commit reachable
// from the view's heads, initialising at most once (spec §4.4).
func (r *ReadonlyRepo) Index(ctx context.Context) (*index.ReadonlyIndex, error) {
	r.idxOnce.Do(func() {
		if r.stores.Index != nil {
			r.idx, r.idxErr = indexFromStore(ctx, r.stores.Index, r.operation, r.stores.Commits)
			return
		}
		r.idx, r.idxErr = buildIndex(ctx, r.stores.Commits, r.view.Heads())
	})
	return r.idx, r.idxErr
}

// indexFromStore adapts an IndexStore's `any` result to *index.ReadonlyIndex;
// the trait returns `any` so package store need not import package index
// (see store.IndexStore's doc comment).
func indexFromStore(ctx context.Context, is store.IndexStore, op store.OperationData, commits store.CommitStore) (*index.ReadonlyIndex, error) {
	raw, err := is.GetIndexAtOp(ctx, op, commits)
	if err != nil {
		return nil, fmt.Errorf("repo: get index at op: %w", err)
	}
	idx, ok := raw.(*index.ReadonlyIndex)
	if !ok {
		return nil, fmt.Errorf("repo: index store returned %T, want *index.ReadonlyIndex", raw)
	}
	return idx, nil
}

// ChangeIndex lazily builds a ChangeIDIndex over the repo's visible heads.
func (r *ReadonlyRepo) ChangeIndex(ctx context.Context) (*index.ChangeIDIndex, error) {
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	r.changeOnce.Do(func() {
		visible := idx.Ancestors(r.view.Heads(), 0, ^uint64(0))
		r.changeIdx = index.NewChangeIDIndex(idx, visible)
	})
	return r.changeIdx, nil
}

// buildIndex walks every commit reachable from heads via the CommitStore,
// adding them to a fresh MutableIndex in parent-first order, matching the
// discovery walk spec §4.5.4 describes for MutableRepo.AddHead.
func buildIndex(ctx context.Context, commits store.CommitStore, heads []objectid.CommitID) (*index.ReadonlyIndex, error) {
	mi := index.NewMutable(nil)
	visited := map[objectid.CommitID]bool{}
	var addAncestors func(id objectid.CommitID) error
	addAncestors = func(id objectid.CommitID) error {
		if visited[id] || mi.HasID(id) {
			return nil
		}
		visited[id] = true
		c, err := commits.GetCommit(ctx, id)
		if err != nil {
			return fmt.Errorf("repo: load commit %s: %w", id, err)
		}
		for _, p := range c.Parents {
			if err := addAncestors(p); err != nil {
				return err
			}
		}
		mi.AddCommit(c)
		return nil
	}
	for _, h := range heads {
		if err := addAncestors(h); err != nil {
			return nil, err
		}
	}
	return mi.Freeze(), nil
}

// RepoLoader reloads a repository at an arbitrary operation, sharing the
// underlying stores (spec §4.4 "loader()").
type RepoLoader struct {
	stores Stores
}

func NewLoader(stores Stores) *RepoLoader {
	return &RepoLoader{stores: stores}
}

// LoadAt reads the view stored at op and wraps it as a ReadonlyRepo.
func (l *RepoLoader) LoadAt(ctx context.Context, op store.OperationData) (*ReadonlyRepo, error) {
	v, err := l.stores.Ops.ReadView(ctx, op.ViewID)
	if err != nil {
		return nil, fmt.Errorf("repo: read view %s: %w", op.ViewID, err)
	}
	v.EnsureNonEmptyHeads(l.stores.Commits.RootCommitID())
	return &ReadonlyRepo{stores: l.stores, loader: l, operation: op, view: v}, nil
}

// LoadAtOperationID resolves id through the OpStore and loads it.
func (l *RepoLoader) LoadAtOperationID(ctx context.Context, id objectid.OperationID) (*ReadonlyRepo, error) {
	data, err := l.stores.Ops.ReadOperation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repo: read operation %s: %w", id, err)
	}
	return l.LoadAt(ctx, data)
}

// LoadAtHead loads the single current op-head. With more than one op-head it
// returns a ConcurrentOpHeadsError instead; RepoLoader.ResolveOpHeads (which
// transaction.Start calls) merges them.
func (l *RepoLoader) LoadAtHead(ctx context.Context) (*ReadonlyRepo, error) {
	heads, err := l.stores.OpHeads.GetOpHeads(ctx)
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return nil, fmt.Errorf("repo: corrupt op-store: no op-heads")
	}
	if len(heads) == 1 {
		return l.LoadAtOperationID(ctx, heads[0])
	}
	return nil, &ConcurrentOpHeadsError{Heads: heads}
}

// ConcurrentOpHeadsError is returned by LoadAtHead when more than one
// op-head exists; callers must resolve them first (spec §4.5.7).
type ConcurrentOpHeadsError struct {
	Heads []objectid.OperationID
}

func (e *ConcurrentOpHeadsError) Error() string {
	return fmt.Sprintf("repo: %d concurrent op-heads need resolving", len(e.Heads))
}
