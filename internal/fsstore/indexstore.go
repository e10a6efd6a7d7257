package fsstore

import (
	"context"
	"fmt"

	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// GetIndexAtOp builds a ReadonlyIndex over every commit reachable from op's
// view heads, satisfying the IndexStore contract of spec §4.1 ("promising
// that all commits reachable from op's view heads are indexed"). package
// repo's ReadonlyRepo.Index walks the CommitStore the same way lazily per
// operation; this is the same walk exposed as the IndexStore this backend
// advertises in its "index" subdirectory's type file, for a caller that
// wants an index without going through package repo.
func (s *Store) GetIndexAtOp(ctx context.Context, op store.OperationData, commits store.CommitStore) (any, error) {
	view, err := s.ReadView(ctx, op.ViewID)
	if err != nil {
		return nil, fmt.Errorf("fsstore: get index at op: %w", err)
	}
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
			return fmt.Errorf("fsstore: load commit %s: %w", id, err)
		}
		for _, p := range c.Parents {
			if err := addAncestors(p); err != nil {
				return err
			}
		}
		mi.AddCommit(c)
		return nil
	}
	for _, h := range view.Heads() {
		if err := addAncestors(h); err != nil {
			return nil, err
		}
	}
	return mi.Freeze(), nil
}
