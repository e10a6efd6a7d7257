package index

import "github.com/jjvcs/opgraph/modules/objectid"

// Entry is the indexed metadata for one commit: just enough to answer
// ancestry, heads/roots and ordering queries without re-reading the full
// Commit object from the CommitStore on every call.
type Entry struct {
	ID                 objectid.CommitID
	ChangeID           objectid.ChangeID
	Parents            []objectid.CommitID
	CommitterTimestamp int64
	// Generation is 1 + max(generation(parents)); the root commit is 0.
	// Two ids with equal generation cannot be ancestor/descendant of one
	// another, which lets IsAncestor short-circuit most queries without a
	// DAG walk.
	Generation uint64
}
