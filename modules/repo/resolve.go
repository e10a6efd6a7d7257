package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jjvcs/opgraph/internal/vcslog"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/oplog"
	"github.com/jjvcs/opgraph/modules/store"
)

// ResolveOpHeads collapses every current op-head into one, merging
// concurrent operations pairwise (three-way, against their common
// ancestor) and recording each resolution as its own "resolve concurrent
// operations" operation, exactly the automatic step spec §4.5.7 describes
// happening transparently before most commands run.
func (l *RepoLoader) ResolveOpHeads(ctx context.Context) (*ReadonlyRepo, error) {
	heads, err := l.stores.OpHeads.GetOpHeads(ctx)
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return nil, fmt.Errorf("repo: corrupt op-store: no op-heads")
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].AsID().Less(heads[j].AsID()) })
	if len(heads) > 1 {
		vcslog.Logger().Debugf("resolve_op_heads: collapsing %d concurrent op-heads", len(heads))
	}

	currentID := heads[0]
	current, err := l.LoadAtOperationID(ctx, currentID)
	if err != nil {
		return nil, err
	}
	if len(heads) == 1 {
		return current, nil
	}

	// The sibling heads themselves are independent reads: none of them
	// depends on the fold order, only the common-ancestor lookup and the
	// merge that follow do. Fan them out with an errgroup before the
	// sequential fold (spec §4.9's "independent read-side fan-out over
	// golang.org/x/sync"); the fold loop below stays strictly sequential
	// per spec §4.5.7, since each merge's common ancestor depends on the
	// previous merge's result.
	others, err := l.preloadHeads(ctx, heads[1:])
	if err != nil {
		return nil, err
	}
	for _, headID := range heads[1:] {
		merged, mergedID, err := l.resolvePair(ctx, current, currentID, headID, others[headID])
		if err != nil {
			return nil, err
		}
		current, currentID = merged, mergedID
	}
	return current, nil
}

// preloadHeads loads the ReadonlyRepo for every id in headIDs concurrently.
func (l *RepoLoader) preloadHeads(ctx context.Context, headIDs []objectid.OperationID) (map[objectid.OperationID]*ReadonlyRepo, error) {
	out := make(map[objectid.OperationID]*ReadonlyRepo, len(headIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, headID := range headIDs {
		headID := headID
		g.Go(func() error {
			repo, err := l.LoadAtOperationID(gctx, headID)
			if err != nil {
				return err
			}
			mu.Lock()
			out[headID] = repo
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *RepoLoader) resolvePair(ctx context.Context, current *ReadonlyRepo, currentID, otherID objectid.OperationID, other *ReadonlyRepo) (*ReadonlyRepo, objectid.OperationID, error) {
	log := vcslog.WithOp(currentID.String())
	baseID, err := oplog.CommonAncestor(ctx, l.stores.Ops, currentID, otherID)
	if err != nil {
		return nil, objectid.OperationID{}, fmt.Errorf("repo: resolve op heads: %w", err)
	}
	log.Debugf("resolve_op_heads: merging %s against common ancestor %s", otherID, baseID)
	base, err := l.LoadAtOperationID(ctx, baseID)
	if err != nil {
		return nil, objectid.OperationID{}, err
	}
	mut, err := New(ctx, current)
	if err != nil {
		return nil, objectid.OperationID{}, err
	}
	if err := mut.Merge(ctx, base, other); err != nil {
		return nil, objectid.OperationID{}, err
	}

	viewID, err := l.stores.Ops.WriteView(ctx, mut.View())
	if err != nil {
		return nil, objectid.OperationID{}, err
	}
	opData := store.OperationData{
		Parents: []objectid.OperationID{currentID, otherID},
		ViewID:  viewID,
		Metadata: store.OperationMetadata{
			Description: "resolve concurrent operations",
			Tags:        map[string]string{},
		},
	}
	newID, err := l.stores.Ops.WriteOperation(ctx, opData)
	if err != nil {
		return nil, objectid.OperationID{}, err
	}
	if err := l.stores.OpHeads.UpdateOpHeads(ctx, []objectid.OperationID{currentID, otherID}, newID); err != nil {
		return nil, objectid.OperationID{}, err
	}
	merged, err := l.LoadAtOperationID(ctx, newID)
	if err != nil {
		return nil, objectid.OperationID{}, err
	}
	return merged, newID, nil
}
