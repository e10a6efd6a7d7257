package revset

import "github.com/jjvcs/opgraph/modules/objectid"

// ResolveVisibility rewrites a symbol-resolved, optimized expression into
// the shape the index evaluator actually supports, substituting the
// repository's current visible heads wherever the original expression
// implicitly meant "everything reachable from here" (spec §4.6.7). The
// result is still a *RevsetExpression, using ExprFilterWithin for the one
// new shape this pass introduces.
func ResolveVisibility(expr *RevsetExpression, visibleHeads []objectid.CommitID) *RevsetExpression {
	if expr == nil {
		return nil
	}
	heads := func() *RevsetExpression { return commits(visibleHeads) }

	switch expr.Kind {
	case ExprAll:
		return ancestors(heads(), Full())
	case ExprDescendants:
		roots := ResolveVisibility(expr.A, visibleHeads)
		return dagRange(roots, heads())
	case ExprChildren:
		roots := ResolveVisibility(expr.A, visibleHeads)
		return &RevsetExpression{Kind: ExprChildren, A: roots, B: heads()}
	case ExprFilter, ExprAsFilter:
		if pred, ok := literalPredicate(expr); ok {
			return filterWithin(ResolveVisibility(all(), visibleHeads), pred)
		}
		n := *expr
		n.A = ResolveVisibility(expr.A, visibleHeads)
		return &n
	case ExprIntersection:
		if pred, ok := literalPredicate(expr.B); ok {
			candidates := ResolveVisibility(expr.A, visibleHeads)
			return filterWithin(candidates, pred)
		}
		if pred, ok := literalPredicate(expr.A); ok {
			candidates := ResolveVisibility(expr.B, visibleHeads)
			return filterWithin(candidates, pred)
		}
		return &RevsetExpression{
			Kind: ExprIntersection,
			A:    ResolveVisibility(expr.A, visibleHeads),
			B:    ResolveVisibility(expr.B, visibleHeads),
		}
	default:
		n := *expr
		n.A = ResolveVisibility(expr.A, visibleHeads)
		n.B = ResolveVisibility(expr.B, visibleHeads)
		return &n
	}
}

// literalPredicate unwraps a bare Filter, or an AsFilter wrapping one, down
// to its leaf Predicate. An AsFilter wrapping anything else (Present/NotIn/
// Union over a filter-containing subtree) reports ok=false: those shapes
// stay structural and are evaluated node-by-node instead of flattened into
// a single predicate.
func literalPredicate(e *RevsetExpression) (Predicate, bool) {
	switch e.Kind {
	case ExprFilter:
		return e.Predicate, true
	case ExprAsFilter:
		return literalPredicate(e.A)
	default:
		return Predicate{}, false
	}
}
