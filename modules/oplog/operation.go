// Package oplog implements the operation log: the content-addressed DAG of
// Operations that records every mutation ever made to a repository, plus
// the head-set bookkeeping needed to merge concurrent sessions
// deterministically (spec §3 "Operation", §4.5.7). It is adapted from the
// reference VCS's reflog package, generalised from "one log per ref" to
// "one DAG for the whole repository".
package oplog

import (
	"context"
	"fmt"
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// Operation is a lazily-resolving handle onto one operation record: it owns
// a reference to the OpStore it came from (rather than back-pointers to
// its parents), matching spec §9's "Design Notes" guidance.
type Operation struct {
	store store.OpStore
	data  store.OperationData
}

// Wrap adapts raw data read from an OpStore into an Operation handle.
func Wrap(s store.OpStore, data store.OperationData) *Operation {
	return &Operation{store: s, data: data}
}

func (o *Operation) ID() objectid.OperationID           { return o.data.ID }
func (o *Operation) ParentIDs() []objectid.OperationID  { return o.data.Parents }
func (o *Operation) ViewID() objectid.ViewID            { return o.data.ViewID }
func (o *Operation) Metadata() store.OperationMetadata   { return o.data.Metadata }
func (o *Operation) Data() store.OperationData           { return o.data }

// Parents loads the parent operations.
func (o *Operation) Parents(ctx context.Context) ([]*Operation, error) {
	out := make([]*Operation, 0, len(o.data.Parents))
	for _, id := range o.data.Parents {
		data, err := o.store.ReadOperation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("oplog: read parent %s: %w", id, err)
		}
		out = append(out, Wrap(o.store, data))
	}
	return out, nil
}

// IsRoot reports whether o is the sentinel root operation.
func (o *Operation) IsRoot() bool { return len(o.data.Parents) == 0 }

// Load reads the operation named by id from s.
func Load(ctx context.Context, s store.OpStore, id objectid.OperationID) (*Operation, error) {
	data, err := s.ReadOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return Wrap(s, data), nil
}

// IsAncestor reports whether a is a (non-strict... no: strict) ancestor of
// b in the operation DAG, walking parents from b.
func IsAncestor(ctx context.Context, s store.OpStore, a, b objectid.OperationID) (bool, error) {
	if a == b {
		return false, nil
	}
	visited := map[objectid.OperationID]bool{}
	stack := []objectid.OperationID{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		data, err := s.ReadOperation(ctx, cur)
		if err != nil {
			return false, err
		}
		for _, p := range data.Parents {
			if p == a {
				return true, nil
			}
			stack = append(stack, p)
		}
	}
	return false, nil
}

// Relation, as returned by Classify, is the relationship between two operations for the
// stale-working-copy detection in spec §4.5.8: whether a is an ancestor of
// b, b an ancestor of a, they share a non-trivial common ancestor (sibling),
// or share none (unrelated, only possible if the op-store has multiple
// disjoint roots, which a single repository never produces but which this
// function still reports honestly).
type Relation int

const (
	RelationEqual Relation = iota
	RelationAAncestorOfB
	RelationBAncestorOfA
	RelationSibling
	RelationUnrelated
)

func Classify(ctx context.Context, s store.OpStore, a, b objectid.OperationID) (Relation, error) {
	if a == b {
		return RelationEqual, nil
	}
	aAnc, err := IsAncestor(ctx, s, a, b)
	if err != nil {
		return 0, err
	}
	if aAnc {
		return RelationAAncestorOfB, nil
	}
	bAnc, err := IsAncestor(ctx, s, b, a)
	if err != nil {
		return 0, err
	}
	if bAnc {
		return RelationBAncestorOfA, nil
	}
	ancestorsA, err := ancestorSet(ctx, s, a)
	if err != nil {
		return 0, err
	}
	ancestorsB, err := ancestorSet(ctx, s, b)
	if err != nil {
		return 0, err
	}
	for id := range ancestorsA {
		if ancestorsB[id] {
			return RelationSibling, nil
		}
	}
	return RelationUnrelated, nil
}

func ancestorSet(ctx context.Context, s store.OpStore, id objectid.OperationID) (map[objectid.OperationID]bool, error) {
	out := map[objectid.OperationID]bool{id: true}
	stack := []objectid.OperationID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		data, err := s.ReadOperation(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, p := range data.Parents {
			if !out[p] {
				out[p] = true
				stack = append(stack, p)
			}
		}
	}
	return out, nil
}

// MinimizeHeads drops any operation id that is a proper ancestor of another,
// preserving the op-heads-set invariant in spec testable property 6.
func MinimizeHeads(ctx context.Context, s store.OpStore, ids []objectid.OperationID) ([]objectid.OperationID, error) {
	var out []objectid.OperationID
	for _, id := range ids {
		isAncestor := false
		for _, other := range ids {
			if other == id {
				continue
			}
			anc, err := IsAncestor(ctx, s, id, other)
			if err != nil {
				return nil, err
			}
			if anc {
				isAncestor = true
				break
			}
		}
		if !isAncestor {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsID().Less(out[j].AsID()) })
	return out, nil
}
