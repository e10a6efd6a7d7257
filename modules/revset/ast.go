// Package revset implements the revision-set query language: parsing,
// alias expansion, symbol resolution, optimisation and evaluation against a
// commit index, adapted in structure from the reference VCS's revset
// module but grown a hand-rolled recursive-descent/Pratt parser in the
// style of the query parser found elsewhere in this codebase's lineage
// (a hand-written Parser type over a small token stream, rather than a
// parser generator).
package revset

import "github.com/jjvcs/opgraph/modules/objectid"

// GenerationRange is a half-open interval [Start, End) of "distance from
// heads"; Full covers everything, Empty covers nothing (spec §4.6.1).
type GenerationRange struct {
	Start uint64
	End   uint64
}

const maxGeneration = ^uint64(0)

// Full is the generation range matching every distance.
func Full() GenerationRange { return GenerationRange{0, maxGeneration} }

// EmptyRange is the generation range matching nothing.
func EmptyRange() GenerationRange { return GenerationRange{0, 0} }

func (g GenerationRange) IsEmpty() bool { return g.Start >= g.End }
func (g GenerationRange) IsFull() bool  { return g.Start == 0 && g.End == maxGeneration }

// CommitRefKind distinguishes the unresolved symbol-like leaves an
// expression can name before resolve_symbols runs.
type CommitRefKind int

const (
	RefSymbol CommitRefKind = iota
	RefVisibleHeads
	RefBranches
	RefRemoteBranches
	RefTags
	RefGitRefs
	RefGitHead
)

// RevsetCommitRef is one unresolved "names some commits by ref" leaf.
type RevsetCommitRef struct {
	Kind         CommitRefKind
	Symbol       string
	BranchNeedle string
	RemoteNeedle string
}

// PredicateKind enumerates the filter predicates built-in functions produce.
type PredicateKind int

const (
	PredParentCount PredicateKind = iota
	PredDescription
	PredAuthor
	PredCommitter
	PredFile
	PredHasConflict
)

// Predicate is a leaf filter: true/false per commit, independent of DAG
// structure (spec §4.6.1).
type Predicate struct {
	Kind         PredicateKind
	Needle       string
	ParentsMin   uint32
	ParentsMax   uint32
	FilePatterns []string // nil means "any file" (spec's Option<[RepoPath]>)
}

// ExprKind discriminates RevsetExpression's variants (spec §4.6.1). Go has
// no tagged-union sugar, so RevsetExpression is one struct carrying only
// the fields its Kind uses, mirroring the reference VCS's boxed-enum shape
// without the enum.
type ExprKind int

const (
	ExprNone ExprKind = iota
	ExprAll
	ExprCommits
	ExprCommitRef
	ExprChildren
	ExprAncestors
	ExprDescendants
	ExprRange
	ExprDagRange
	ExprHeads
	ExprRoots
	ExprLatest
	ExprFilter
	ExprAsFilter
	ExprPresent
	ExprNotIn
	ExprUnion
	ExprIntersection
	ExprDifference

	// ExprFilterWithin only appears in a ResolvedExpression (spec §4.6.7):
	// A is the candidate set, Predicate the filter to intersect it with.
	ExprFilterWithin
)

// RevsetExpression is the parsed-and-aliased AST node type. Children are
// plain pointers (no refcounting is needed in Go; the garbage collector
// already gives us the reference-sharing the original spec calls out).
type RevsetExpression struct {
	Kind ExprKind

	Commits   []objectid.CommitID
	CommitRef RevsetCommitRef
	Predicate Predicate

	// A, B are the operator/structural children, named positionally: unary
	// nodes use A, binary nodes use A and B.
	A, B *RevsetExpression

	Generation GenerationRange
	Count      int
}

func none() *RevsetExpression { return &RevsetExpression{Kind: ExprNone} }
func all() *RevsetExpression  { return &RevsetExpression{Kind: ExprAll} }

func commits(ids []objectid.CommitID) *RevsetExpression {
	return &RevsetExpression{Kind: ExprCommits, Commits: ids}
}

func commitRef(ref RevsetCommitRef) *RevsetExpression {
	return &RevsetExpression{Kind: ExprCommitRef, CommitRef: ref}
}

func union(a, b *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprUnion, A: a, B: b}
}

func intersection(a, b *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprIntersection, A: a, B: b}
}

func difference(a, b *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprDifference, A: a, B: b}
}

func notIn(a *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprNotIn, A: a}
}

func ancestors(heads *RevsetExpression, gen GenerationRange) *RevsetExpression {
	return &RevsetExpression{Kind: ExprAncestors, A: heads, Generation: gen}
}

func descendants(roots *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprDescendants, A: roots}
}

func children(roots *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprChildren, A: roots}
}

func rangeExpr(roots, heads *RevsetExpression, gen GenerationRange) *RevsetExpression {
	return &RevsetExpression{Kind: ExprRange, A: roots, B: heads, Generation: gen}
}

func dagRange(roots, heads *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprDagRange, A: roots, B: heads}
}

func headsOf(a *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprHeads, A: a}
}

func rootsOf(a *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprRoots, A: a}
}

func latest(candidates *RevsetExpression, count int) *RevsetExpression {
	return &RevsetExpression{Kind: ExprLatest, A: candidates, Count: count}
}

func filterExpr(p Predicate) *RevsetExpression {
	return &RevsetExpression{Kind: ExprFilter, Predicate: p}
}

func asFilter(a *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprAsFilter, A: a}
}

func present(a *RevsetExpression) *RevsetExpression {
	return &RevsetExpression{Kind: ExprPresent, A: a}
}

func filterWithin(candidates *RevsetExpression, p Predicate) *RevsetExpression {
	return &RevsetExpression{Kind: ExprFilterWithin, A: candidates, Predicate: p}
}
