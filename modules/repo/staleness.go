package repo

import (
	"context"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/oplog"
	"github.com/jjvcs/opgraph/modules/store"
)

// WorkingCopyStatus classifies a workspace's recorded operation against the
// repository's current operation, so a caller knows whether it is safe to
// silently fast-forward the working copy or whether a human needs to step
// in (spec §4.5.8 "Stale working-copy detection").
type WorkingCopyStatus int

const (
	// WorkingCopyCurrent means the workspace's recorded operation is the
	// repo's current operation: nothing to do.
	WorkingCopyCurrent WorkingCopyStatus = iota
	// WorkingCopyStale means the workspace's operation is a strict ancestor
	// of the current operation: no one else touched this workspace since,
	// so it can be updated automatically.
	WorkingCopyStale
	// WorkingCopyAhead means the workspace's operation is a strict
	// descendant of the current operation -- only possible if the caller is
	// looking at a stale snapshot of "current" itself.
	WorkingCopyAhead
	// WorkingCopyDivergedSibling means the workspace's operation and the
	// current operation share a common ancestor but neither is an ancestor
	// of the other: a concurrent process updated the same workspace, and
	// automatic resolution risks discarding its work.
	WorkingCopyDivergedSibling
	// WorkingCopyUnrelated means the two operations share no ancestor at
	// all; a single op-store never produces this, but the classification is
	// reported rather than silently folded into another case.
	WorkingCopyUnrelated
)

func (s WorkingCopyStatus) String() string {
	switch s {
	case WorkingCopyCurrent:
		return "current"
	case WorkingCopyStale:
		return "stale"
	case WorkingCopyAhead:
		return "ahead"
	case WorkingCopyDivergedSibling:
		return "diverged-sibling"
	default:
		return "unrelated"
	}
}

// ClassifyWorkingCopy reports wcOp's status relative to currentOp.
func ClassifyWorkingCopy(ctx context.Context, opStore store.OpStore, wcOp, currentOp objectid.OperationID) (WorkingCopyStatus, error) {
	rel, err := oplog.Classify(ctx, opStore, wcOp, currentOp)
	if err != nil {
		return 0, err
	}
	switch rel {
	case oplog.RelationEqual:
		return WorkingCopyCurrent, nil
	case oplog.RelationAAncestorOfB:
		return WorkingCopyStale, nil
	case oplog.RelationBAncestorOfA:
		return WorkingCopyAhead, nil
	case oplog.RelationSibling:
		return WorkingCopyDivergedSibling, nil
	default:
		return WorkingCopyUnrelated, nil
	}
}
