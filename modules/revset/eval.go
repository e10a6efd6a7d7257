package revset

import (
	"context"
	"sort"
	"strings"

	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// Evaluate runs a visibility-resolved expression against idx (and commits,
// for filter predicates that need commit content) and returns a Revset.
//
// Tree/file content is out of this module's scope, so PredFile is evaluated
// as a conservative approximation: a commit "touches" the requested paths
// iff its tree differs from at least one parent's tree, or, with no
// parents, is non-empty (no actual path-level comparison). empty() is expressed as ~file(*) at the AST level and
// inherits the same approximation.
func Evaluate(ctx context.Context, expr *RevsetExpression, idx *index.ReadonlyIndex, commits store.CommitStore) (*Revset, error) {
	ids, err := evalToIDs(ctx, expr, idx, commits)
	if err != nil {
		return nil, err
	}
	return &Revset{ids: dedupe(ids), idx: idx}, nil
}

func evalToIDs(ctx context.Context, e *RevsetExpression, idx *index.ReadonlyIndex, cs store.CommitStore) ([]objectid.CommitID, error) {
	switch e.Kind {
	case ExprNone:
		return nil, nil
	case ExprCommits:
		return e.Commits, nil
	case ExprAncestors:
		heads, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		return idx.Ancestors(heads, e.Generation.Start, e.Generation.End), nil
	case ExprDagRange:
		roots, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		heads, err := evalToIDs(ctx, e.B, idx, cs)
		if err != nil {
			return nil, err
		}
		return idx.DagRange(roots, heads), nil
	case ExprRange:
		unfolded := intersection(ancestors(e.B, e.Generation), notIn(ancestors(e.A, Full())))
		return evalToIDs(ctx, unfolded, idx, cs)
	case ExprChildren:
		roots, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		set := map[objectid.CommitID]bool{}
		for _, r := range roots {
			for _, c := range idx.Children(r) {
				set[c] = true
			}
		}
		if e.B != nil {
			heads, err := evalToIDs(ctx, e.B, idx, cs)
			if err != nil {
				return nil, err
			}
			visibleSet := toSet(idx.Ancestors(heads, 0, maxGeneration))
			for c := range set {
				if !visibleSet[c] {
					delete(set, c)
				}
			}
		}
		return setToSlice(set), nil
	case ExprHeads:
		ids, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		return idx.Heads(ids), nil
	case ExprRoots:
		ids, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		return idx.Roots(ids), nil
	case ExprLatest:
		ids, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		return latestN(idx, ids, e.Count), nil
	case ExprFilterWithin:
		candidates, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		return filterByPredicate(ctx, candidates, e.Predicate, idx, cs)
	case ExprFilter:
		return filterByPredicate(ctx, allIndexed(idx), e.Predicate, idx, cs)
	case ExprAsFilter:
		return evalToIDs(ctx, e.A, idx, cs)
	case ExprPresent:
		return evalToIDs(ctx, e.A, idx, cs)
	case ExprNotIn:
		all := allIndexed(idx)
		inner, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		innerSet := toSet(inner)
		var out []objectid.CommitID
		for _, id := range all {
			if !innerSet[id] {
				out = append(out, id)
			}
		}
		return out, nil
	case ExprUnion:
		a, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		b, err := evalToIDs(ctx, e.B, idx, cs)
		if err != nil {
			return nil, err
		}
		return append(a, b...), nil
	case ExprIntersection:
		a, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		b, err := evalToIDs(ctx, e.B, idx, cs)
		if err != nil {
			return nil, err
		}
		bSet := toSet(b)
		var out []objectid.CommitID
		for _, id := range a {
			if bSet[id] {
				out = append(out, id)
			}
		}
		return out, nil
	case ExprDifference:
		a, err := evalToIDs(ctx, e.A, idx, cs)
		if err != nil {
			return nil, err
		}
		b, err := evalToIDs(ctx, e.B, idx, cs)
		if err != nil {
			return nil, err
		}
		bSet := toSet(b)
		var out []objectid.CommitID
		for _, id := range a {
			if !bSet[id] {
				out = append(out, id)
			}
		}
		return out, nil
	}
	return nil, nil
}

func filterByPredicate(ctx context.Context, candidates []objectid.CommitID, p Predicate, idx *index.ReadonlyIndex, cs store.CommitStore) ([]objectid.CommitID, error) {
	var out []objectid.CommitID
	for _, id := range candidates {
		ok, err := matchesPredicate(ctx, id, p, idx, cs)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func matchesPredicate(ctx context.Context, id objectid.CommitID, p Predicate, idx *index.ReadonlyIndex, cs store.CommitStore) (bool, error) {
	switch p.Kind {
	case PredParentCount:
		e, ok := idx.Entry(id)
		if !ok {
			return false, nil
		}
		n := uint32(len(e.Parents))
		return n >= p.ParentsMin && n < p.ParentsMax, nil
	case PredHasConflict:
		return false, nil
	case PredFile:
		c, err := cs.GetCommit(ctx, id)
		if err != nil {
			return false, err
		}
		if len(c.Parents) == 0 {
			return !c.Tree.IsZero(), nil
		}
		for _, pid := range c.Parents {
			pc, err := cs.GetCommit(ctx, pid)
			if err != nil {
				return false, err
			}
			if pc.Tree != c.Tree {
				return true, nil
			}
		}
		return false, nil
	case PredDescription, PredAuthor, PredCommitter:
		c, err := cs.GetCommit(ctx, id)
		if err != nil {
			return false, err
		}
		var haystack string
		switch p.Kind {
		case PredDescription:
			haystack = c.Description
		case PredAuthor:
			haystack = c.Author.Name + " " + c.Author.Email
		case PredCommitter:
			haystack = c.Committer.Name + " " + c.Committer.Email
		}
		return strings.Contains(haystack, p.Needle), nil
	}
	return false, nil
}

// latestN returns the count commits with the highest committer timestamp,
// breaking ties by commit id (matching the original implementation's stable
// sort, spec §4.10).
func latestN(idx *index.ReadonlyIndex, ids []objectid.CommitID, count int) []objectid.CommitID {
	ordered := append([]objectid.CommitID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		ei, _ := idx.Entry(ordered[i])
		ej, _ := idx.Entry(ordered[j])
		if ei.CommitterTimestamp != ej.CommitterTimestamp {
			return ei.CommitterTimestamp > ej.CommitterTimestamp
		}
		return ordered[i].AsID().Less(ordered[j].AsID())
	})
	if count > len(ordered) {
		count = len(ordered)
	}
	return ordered[:count]
}

func allIndexed(idx *index.ReadonlyIndex) []objectid.CommitID {
	return idx.AllIDs()
}

func toSet(ids []objectid.CommitID) map[objectid.CommitID]bool {
	set := make(map[objectid.CommitID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func setToSlice(set map[objectid.CommitID]bool) []objectid.CommitID {
	out := make([]objectid.CommitID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func dedupe(ids []objectid.CommitID) []objectid.CommitID {
	seen := map[objectid.CommitID]bool{}
	var out []objectid.CommitID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
