package revset

import "math"

// buildFunctionCall translates one parsed function call into an AST node,
// enforcing the arity/keyword rules of spec §4.6.3.
func buildFunctionCall(name string, args []callArg) (*RevsetExpression, error) {
	pos, kw, err := splitArgs(args)
	if err != nil {
		return nil, err
	}
	switch name {
	case "none":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) { return none(), nil })
	case "all":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) { return all(), nil })
	case "visible_heads":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return commitRef(RevsetCommitRef{Kind: RefVisibleHeads}), nil
		})
	case "tags":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return commitRef(RevsetCommitRef{Kind: RefTags}), nil
		})
	case "git_refs":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return commitRef(RevsetCommitRef{Kind: RefGitRefs}), nil
		})
	case "git_head":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return commitRef(RevsetCommitRef{Kind: RefGitHead}), nil
		})
	case "parents":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) {
			return ancestors(pos[0], GenerationRange{1, 2}), nil
		})
	case "children":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return children(pos[0]), nil })
	case "ancestors":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return ancestors(pos[0], Full()), nil })
	case "descendants":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return descendants(pos[0]), nil })
	case "connected":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) {
			return dagRange(rootsOf(pos[0]), headsOf(pos[0])), nil
		})
	case "heads":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return headsOf(pos[0]), nil })
	case "roots":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return rootsOf(pos[0]), nil })
	case "branches":
		return requireArity(name, pos, kw, 0, 1, func() (*RevsetExpression, error) {
			needle, err := optionalSymbolArg(pos, 0)
			if err != nil {
				return nil, err
			}
			return commitRef(RevsetCommitRef{Kind: RefBranches, BranchNeedle: needle}), nil
		})
	case "remote_branches":
		if err := requireKeywordsOnly(kw, "remote"); err != nil {
			return nil, err
		}
		if len(pos) > 1 {
			return nil, &ParseError{Msg: "remote_branches takes at most one positional argument"}
		}
		branchNeedle, err := optionalSymbolArg(pos, 0)
		if err != nil {
			return nil, err
		}
		remoteNeedle := ""
		if v, ok := kw["remote"]; ok {
			remoteNeedle, err = exprAsSymbolText(v)
			if err != nil {
				return nil, err
			}
		}
		return commitRef(RevsetCommitRef{Kind: RefRemoteBranches, BranchNeedle: branchNeedle, RemoteNeedle: remoteNeedle}), nil
	case "latest":
		if err := requireKeywordsOnly(kw, "count"); err != nil {
			return nil, err
		}
		if len(pos) != 1 {
			return nil, &ParseError{Msg: "latest requires exactly one positional argument"}
		}
		count := 1
		if v, ok := kw["count"]; ok {
			n, err := exprAsInt(v)
			if err != nil {
				return nil, err
			}
			count = n
		}
		return latest(pos[0], count), nil
	case "merges":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return filterExpr(Predicate{Kind: PredParentCount, ParentsMin: 2, ParentsMax: math.MaxUint32}), nil
		})
	case "conflict":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return filterExpr(Predicate{Kind: PredHasConflict}), nil
		})
	case "description":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) {
			s, err := exprAsSymbolText(pos[0])
			if err != nil {
				return nil, err
			}
			return filterExpr(Predicate{Kind: PredDescription, Needle: s}), nil
		})
	case "author":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) {
			s, err := exprAsSymbolText(pos[0])
			if err != nil {
				return nil, err
			}
			return filterExpr(Predicate{Kind: PredAuthor, Needle: s}), nil
		})
	case "committer":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) {
			s, err := exprAsSymbolText(pos[0])
			if err != nil {
				return nil, err
			}
			return filterExpr(Predicate{Kind: PredCommitter, Needle: s}), nil
		})
	case "empty":
		return requireArity(name, pos, kw, 0, 0, func() (*RevsetExpression, error) {
			return notIn(filterExpr(Predicate{Kind: PredFile})), nil
		})
	case "file":
		if len(pos) == 0 {
			return nil, &ParseError{Msg: "file() requires at least one path argument"}
		}
		var patterns []string
		for _, a := range pos {
			s, err := exprAsSymbolText(a)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, s)
		}
		return filterExpr(Predicate{Kind: PredFile, FilePatterns: patterns}), nil
	case "present":
		return requireArity(name, pos, kw, 1, 1, func() (*RevsetExpression, error) { return present(pos[0]), nil })
	default:
		return nil, &ParseError{Msg: "unknown function: " + name}
	}
}

func splitArgs(args []callArg) (pos []*RevsetExpression, kw map[string]*RevsetExpression, err error) {
	kw = map[string]*RevsetExpression{}
	for _, a := range args {
		if a.keyword == "" {
			pos = append(pos, a.value)
		} else {
			kw[a.keyword] = a.value
		}
	}
	return pos, kw, nil
}

func requireArity(name string, pos []*RevsetExpression, kw map[string]*RevsetExpression, min, max int, build func() (*RevsetExpression, error)) (*RevsetExpression, error) {
	if len(kw) > 0 {
		return nil, &ParseError{Msg: name + "() takes no keyword arguments"}
	}
	if len(pos) < min || len(pos) > max {
		return nil, &ParseError{Msg: name + "() called with wrong number of arguments"}
	}
	return build()
}

func requireKeywordsOnly(kw map[string]*RevsetExpression, allowed ...string) error {
	for k := range kw {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
			}
		}
		if !ok {
			return &ParseError{Msg: "unknown keyword argument '" + k + "'"}
		}
	}
	return nil
}

func optionalSymbolArg(pos []*RevsetExpression, i int) (string, error) {
	if i >= len(pos) {
		return "", nil
	}
	return exprAsSymbolText(pos[i])
}

// exprAsSymbolText extracts the literal text of a bare or quoted symbol
// argument (used for needle/path/description-style string arguments, which
// the grammar parses as ordinary symbol primaries).
func exprAsSymbolText(e *RevsetExpression) (string, error) {
	if e.Kind == ExprCommitRef && e.CommitRef.Kind == RefSymbol {
		return e.CommitRef.Symbol, nil
	}
	return "", &ParseError{Msg: "expected a string or identifier argument"}
}

func exprAsInt(e *RevsetExpression) (int, error) {
	s, err := exprAsSymbolText(e)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, &ParseError{Msg: "expected an integer, got " + s}
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, nil
}
