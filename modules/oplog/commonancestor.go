package oplog

import (
	"errors"

	"context"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// ErrNoCommonAncestor is returned by CommonAncestor when the op-store has
// disjoint roots, which a single repository never produces in practice.
var ErrNoCommonAncestor = errors.New("oplog: no common ancestor")

// CommonAncestor finds a merge base for a and b: an operation both
// ultimately descend from. When several common ancestors exist (the
// operation DAG can have more than one, same as any DAG), it returns the
// most specific one it finds -- an ancestor of a in the common set that is
// itself not an ancestor of any other common-set member -- rather than
// attempting to pick "the" lowest common ancestor when that notion is
// ambiguous (spec §4.5.7 leaves the choice unspecified for this case).
func CommonAncestor(ctx context.Context, s store.OpStore, a, b objectid.OperationID) (objectid.OperationID, error) {
	if a == b {
		return a, nil
	}
	ancA, err := ancestorSet(ctx, s, a)
	if err != nil {
		return objectid.OperationID{}, err
	}
	ancB, err := ancestorSet(ctx, s, b)
	if err != nil {
		return objectid.OperationID{}, err
	}
	var common []objectid.OperationID
	for id := range ancA {
		if ancB[id] {
			common = append(common, id)
		}
	}
	if len(common) == 0 {
		return objectid.OperationID{}, ErrNoCommonAncestor
	}
	best := common[0]
	for _, id := range common[1:] {
		anc, err := IsAncestor(ctx, s, best, id)
		if err != nil {
			return objectid.OperationID{}, err
		}
		if anc {
			best = id
		}
	}
	return best, nil
}
