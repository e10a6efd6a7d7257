package revset

// Optimize applies the five named passes of spec §4.6.6 bottom-up,
// repeating each pass to a fixed point before moving to the next.
func Optimize(expr *RevsetExpression) *RevsetExpression {
	expr = applyToFixedPoint(expr, unfoldDifference)
	expr = applyToFixedPoint(expr, foldRedundantExpression)
	expr = applyToFixedPoint(expr, foldAncestors)
	expr = applyToFixedPoint(expr, internalizeFilter)
	expr = applyToFixedPoint(expr, foldDifference)
	return expr
}

// rewriteRule rewrites one node (not recursing itself); applyBottomUp does
// the recursion and applyToFixedPoint repeats until a pass stops changing
// anything.
type rewriteRule func(*RevsetExpression) *RevsetExpression

func applyBottomUp(expr *RevsetExpression, rule rewriteRule) *RevsetExpression {
	if expr == nil {
		return nil
	}
	n := *expr
	n.A = applyBottomUp(expr.A, rule)
	n.B = applyBottomUp(expr.B, rule)
	return rule(&n)
}

func applyToFixedPoint(expr *RevsetExpression, rule rewriteRule) *RevsetExpression {
	for {
		next := applyBottomUp(expr, rule)
		if exprEqual(next, expr) {
			return next
		}
		expr = next
	}
}

// exprEqual is a cheap structural-identity check good enough to detect a
// fixed point: two freshly rebuilt trees compare equal node-by-node.
func exprEqual(a, b *RevsetExpression) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Generation != b.Generation || a.Count != b.Count {
		return false
	}
	if a.CommitRef != b.CommitRef {
		return false
	}
	if a.Predicate.Kind != b.Predicate.Kind || a.Predicate.Needle != b.Predicate.Needle ||
		a.Predicate.ParentsMin != b.Predicate.ParentsMin || a.Predicate.ParentsMax != b.Predicate.ParentsMax {
		return false
	}
	return exprEqual(a.A, b.A) && exprEqual(a.B, b.B)
}

// unfoldDifference: `a..b` -> ancestors(b) ∩ ¬ancestors(a); `a ~ b` -> a ∩ ¬b.
func unfoldDifference(e *RevsetExpression) *RevsetExpression {
	switch e.Kind {
	case ExprRange:
		return intersection(ancestors(e.B, e.Generation), notIn(ancestors(e.A, Full())))
	case ExprDifference:
		return intersection(e.A, notIn(e.B))
	}
	return e
}

// foldRedundantExpression: ¬¬x -> x; x ∩ all() -> x; all() ∩ x -> x.
func foldRedundantExpression(e *RevsetExpression) *RevsetExpression {
	if e.Kind == ExprNotIn && e.A.Kind == ExprNotIn {
		return e.A.A
	}
	if e.Kind == ExprIntersection {
		if e.B.Kind == ExprAll {
			return e.A
		}
		if e.A.Kind == ExprAll {
			return e.B
		}
	}
	return e
}

// foldAncestors: ancestors(ancestors(h,g1),g2) always sums the generation
// ranges, saturating, regardless of whether either range is full — e.g.
// foo--- (three nested 1..2 ranges) folds to generation 3..4.
func foldAncestors(e *RevsetExpression) *RevsetExpression {
	if e.Kind != ExprAncestors || e.A.Kind != ExprAncestors {
		return e
	}
	outer, inner := e.Generation, e.A.Generation
	start := saturatingAdd(outer.Start, inner.Start)
	var end uint64
	if outer.IsEmpty() || inner.IsEmpty() {
		return ancestors(e.A.A, EmptyRange())
	}
	end = saturatingAddSub1(outer.End, inner.End)
	return ancestors(e.A.A, GenerationRange{start, end})
}

func saturatingAdd(a, b uint64) uint64 {
	s := a + b
	if s < a {
		return maxGeneration
	}
	return s
}

func saturatingAddSub1(a, b uint64) uint64 {
	if a == maxGeneration || b == maxGeneration {
		return maxGeneration
	}
	return saturatingAdd(a, b-1)
}

// internalizeFilter pushes set intersections left of filter nodes and wraps
// Present/NotIn/Union subtrees containing a filter in AsFilter, so
// evaluation intersects against candidates instead of enumerating all().
// Symbol sets are always pushed left; filter nodes never move right of
// another filter node.
func internalizeFilter(e *RevsetExpression) *RevsetExpression {
	if e.Kind == ExprIntersection {
		aIsFilter := isFilterLike(e.A)
		bIsFilter := isFilterLike(e.B)
		if aIsFilter && !bIsFilter {
			return intersection(e.B, e.A)
		}
	}
	if containsFilter(e) {
		switch e.Kind {
		case ExprPresent, ExprNotIn, ExprUnion:
			if !isFilterLike(e) {
				return asFilter(e)
			}
		}
	}
	return e
}

func isFilterLike(e *RevsetExpression) bool {
	return e.Kind == ExprFilter || e.Kind == ExprAsFilter
}

func containsFilter(e *RevsetExpression) bool {
	if e == nil {
		return false
	}
	if isFilterLike(e) {
		return true
	}
	return containsFilter(e.A) || containsFilter(e.B)
}

// foldDifference folds `heads_anc ∩ ¬roots_anc` with matching generation
// shapes back to Range; a general `e ∩ ¬c` becomes Difference(e,c) unless c
// is itself a filter, in which case it is left as an intersection with a
// negation (filters aren't DAG sets, so Difference doesn't apply to them).
func foldDifference(e *RevsetExpression) *RevsetExpression {
	if e.Kind != ExprIntersection || e.B.Kind != ExprNotIn {
		return e
	}
	c := e.B.A
	if e.A.Kind == ExprAncestors && c.Kind == ExprAncestors && e.A.Generation.IsFull() && c.Generation.IsFull() {
		return rangeExpr(c.A, e.A.A, Full())
	}
	if isFilterLike(c) {
		return e
	}
	return difference(e.A, c)
}
