package revset

import (
	"context"
	"strings"

	"github.com/jjvcs/opgraph/modules/index"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
)

// gitRefPrefixes is tried in order for an exact git-ref name lookup
// (spec §4.6.5 step 5).
var gitRefPrefixes = []string{"", "refs/", "refs/heads/", "refs/tags/", "refs/remotes/"}

// SymbolContext bundles everything resolve_symbols needs to turn an
// unresolved CommitRef leaf into concrete commit ids: the view's refs, the
// commit/change-id indexes for prefix lookup, and the current workspace (if
// any) for `@`/`name@` resolution.
type SymbolContext struct {
	View          *refview.View
	Index         *index.ReadonlyIndex
	ChangeIndex   *index.ChangeIDIndex
	RootCommit    objectid.CommitID
	WorkspaceID   objectid.WorkspaceID
	HasWorkspace  bool
}

// ResolveSymbols walks expr, replacing every CommitRef/Present node with
// concrete Commits nodes (or errors), per spec §4.6.5.
func ResolveSymbols(ctx context.Context, expr *RevsetExpression, sc *SymbolContext) (*RevsetExpression, error) {
	switch expr.Kind {
	case ExprNone, ExprAll, ExprCommits:
		return expr, nil
	case ExprCommitRef:
		ids, err := resolveRef(expr.CommitRef, sc)
		if err != nil {
			return nil, err
		}
		return commits(ids), nil
	case ExprPresent:
		resolved, err := ResolveSymbols(ctx, expr.A, sc)
		if err != nil {
			if _, ok := err.(*NoSuchRevision); ok {
				return none(), nil
			}
			return nil, err
		}
		return resolved, nil
	case ExprFilter:
		return expr, nil
	case ExprAsFilter:
		inner, err := ResolveSymbols(ctx, expr.A, sc)
		if err != nil {
			return nil, err
		}
		return asFilter(inner), nil
	case ExprNotIn, ExprAncestors, ExprDescendants, ExprChildren, ExprHeads, ExprRoots:
		a, err := ResolveSymbols(ctx, expr.A, sc)
		if err != nil {
			return nil, err
		}
		n := *expr
		n.A = a
		return &n, nil
	case ExprLatest:
		a, err := ResolveSymbols(ctx, expr.A, sc)
		if err != nil {
			return nil, err
		}
		n := *expr
		n.A = a
		return &n, nil
	case ExprRange, ExprDagRange, ExprUnion, ExprIntersection, ExprDifference:
		a, err := ResolveSymbols(ctx, expr.A, sc)
		if err != nil {
			return nil, err
		}
		b, err := ResolveSymbols(ctx, expr.B, sc)
		if err != nil {
			return nil, err
		}
		n := *expr
		n.A, n.B = a, b
		return &n, nil
	}
	return expr, nil
}

func resolveRef(ref RevsetCommitRef, sc *SymbolContext) ([]objectid.CommitID, error) {
	switch ref.Kind {
	case RefVisibleHeads:
		return sc.View.Heads(), nil
	case RefTags:
		var ids []objectid.CommitID
		for _, name := range sc.View.TagNames() {
			ids = append(ids, sc.View.Tag(name).Adds()...)
		}
		return ids, nil
	case RefGitRefs:
		var ids []objectid.CommitID
		for _, name := range sc.View.GitRefNames() {
			ids = append(ids, sc.View.GitRef(name).Adds()...)
		}
		return ids, nil
	case RefGitHead:
		return sc.View.GitHead().Adds(), nil
	case RefBranches:
		var ids []objectid.CommitID
		for _, name := range sc.View.LocalBranchNames() {
			if ref.BranchNeedle != "" && !strings.Contains(name, ref.BranchNeedle) {
				continue
			}
			ids = append(ids, sc.View.LocalBranch(name).Adds()...)
		}
		return ids, nil
	case RefRemoteBranches:
		var ids []objectid.CommitID
		for key, rr := range sc.View.RemoteBranches() {
			if ref.BranchNeedle != "" && !strings.Contains(key.Name, ref.BranchNeedle) {
				continue
			}
			if ref.RemoteNeedle != "" && !strings.Contains(key.Remote, ref.RemoteNeedle) {
				continue
			}
			ids = append(ids, rr.Target.Adds()...)
		}
		return ids, nil
	case RefSymbol:
		return resolveSymbolText(ref.Symbol, sc)
	}
	return nil, &NoSuchRevision{Symbol: ref.Symbol}
}

func resolveSymbolText(sym string, sc *SymbolContext) ([]objectid.CommitID, error) {
	// 1. trailing '@' -> workspace working-copy lookup; bare '@' is shorthand
	// for the current workspace context.
	if sym == "@" {
		if !sc.HasWorkspace {
			return nil, &NoSuchRevision{Symbol: sym}
		}
		if id, ok := sc.View.WorkingCopy(sc.WorkspaceID); ok {
			return []objectid.CommitID{id}, nil
		}
		return nil, &NoSuchRevision{Symbol: sym}
	}
	if strings.HasSuffix(sym, "@") {
		ws := objectid.WorkspaceID(strings.TrimSuffix(sym, "@"))
		if id, ok := sc.View.WorkingCopy(ws); ok {
			return []objectid.CommitID{id}, nil
		}
		return nil, &NoSuchRevision{Symbol: sym}
	}

	// 2. "root"
	if sym == "root" {
		return []objectid.CommitID{sc.RootCommit}, nil
	}

	// 3. exact tag name
	if t := sc.View.Tag(sym); !t.IsAbsent() {
		return t.Adds(), nil
	}

	// 4. branch name, optionally name@remote
	if name, remote, ok := strings.Cut(sym, "@"); ok {
		rr := sc.View.RemoteBranch(name, remote)
		if !rr.Target.IsAbsent() {
			return rr.Target.Adds(), nil
		}
	} else if t := sc.View.LocalBranch(sym); !t.IsAbsent() {
		return t.Adds(), nil
	}

	// 5. exact git-ref name under the standard prefixes
	for _, prefix := range gitRefPrefixes {
		if t := sc.View.GitRef(prefix + sym); !t.IsAbsent() {
			return t.Adds(), nil
		}
	}

	// 6. full binary commit id
	if len(sym) == objectid.DigestSize*2 {
		id := objectid.CommitIDFromHex(sym)
		if sc.Index.HasID(id) {
			return []objectid.CommitID{id}, nil
		}
	}

	// 7. commit-id hex prefix
	if p, ok := objectid.NewHexPrefix(sym); ok {
		res := sc.Index.ResolvePrefix(p)
		switch res.Kind {
		case objectid.SingleMatch:
			return []objectid.CommitID{res.Payload}, nil
		case objectid.AmbiguousMatch:
			return nil, &AmbiguousIdPrefix{Prefix: sym}
		}
	}

	// 8. change-id hex prefix (reverse-hex alphabet)
	if p, ok := objectid.NewChangeHexPrefix(sym); ok && sc.ChangeIndex != nil {
		res := sc.ChangeIndex.ResolvePrefix(p)
		switch res.Kind {
		case objectid.SingleMatch:
			return res.Payload, nil
		case objectid.AmbiguousMatch:
			return nil, &AmbiguousIdPrefix{Prefix: sym}
		}
	}

	return nil, &NoSuchRevision{Symbol: sym}
}
