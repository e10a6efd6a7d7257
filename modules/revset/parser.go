package revset

// parser is a hand-written precedence-climbing parser over the token
// stream lex produces; it directly encodes the precedence table in spec
// §4.6.2 rather than a generic operator table, since the grammar mixes
// prefix, postfix and non-associative binary forms that don't all fit one
// shape.
type parser struct {
	toks     []token
	pos      int
	warnings []string

	// aliases, locals and stack support alias expansion (spec §4.6.4) and
	// are nil/empty for a plain Parse call with no alias context.
	aliases *AliasMap
	locals  []map[string]*RevsetExpression
	stack   []string
}

// Parse parses src into an unresolved RevsetExpression (symbols and
// function calls not yet looked up against any store) plus any
// deprecation warnings encountered (the single-colon `::` alias).
func Parse(src string) (*RevsetExpression, []string, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseUnion()
	if err != nil {
		return nil, nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, nil, &ParseError{Msg: "unexpected trailing input", Pos: p.cur().pos}
	}
	return expr, p.warnings, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// parseUnion: lowest precedence, left-associative `|`.
func (p *parser) parseUnion() (*RevsetExpression, error) {
	left, err := p.parseIntersection()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPipe {
		p.advance()
		right, err := p.parseIntersection()
		if err != nil {
			return nil, err
		}
		left = union(left, right)
	}
	return left, nil
}

// parseIntersection: `&` and binary `~` share one precedence level,
// left-associative.
func (p *parser) parseIntersection() (*RevsetExpression, error) {
	left, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAmp || p.cur().kind == tokTilde {
		op := p.advance().kind
		right, err := p.parseNegation()
		if err != nil {
			return nil, err
		}
		if op == tokAmp {
			left = intersection(left, right)
		} else {
			left = difference(left, right)
		}
	}
	return left, nil
}

// parseNegation: prefix `~` (logical negation, "all but").
func (p *parser) parseNegation() (*RevsetExpression, error) {
	if p.cur().kind == tokTilde {
		p.advance()
		inner, err := p.parseNegation()
		if err != nil {
			return nil, err
		}
		return notIn(inner), nil
	}
	return p.parseRangeBinary()
}

// parseRangeBinary: binary `::` (dag-range) / `..` (range), non-associative
// with respect to each other -- at most one such operator may appear at
// this level before falling back to the next tier.
func (p *parser) parseRangeBinary() (*RevsetExpression, error) {
	left, err := p.parseAncestorsPrefix()
	if err != nil {
		return nil, err
	}
	switch p.cur().kind {
	case tokColonColon, tokColon:
		if p.cur().kind == tokColon {
			p.warnings = append(p.warnings, "':' is deprecated, use '::'")
		}
		p.advance()
		right, err := p.parseAncestorsPrefix()
		if err != nil {
			return nil, err
		}
		return dagRange(left, right), nil
	case tokDotDot:
		p.advance()
		right, err := p.parseAncestorsPrefix()
		if err != nil {
			return nil, err
		}
		return rangeExpr(left, right, Full()), nil
	}
	return left, nil
}

// parseAncestorsPrefix: prefix `::`/`..` ("ancestors of").
func (p *parser) parseAncestorsPrefix() (*RevsetExpression, error) {
	switch p.cur().kind {
	case tokColonColon, tokColon:
		if p.cur().kind == tokColon {
			p.warnings = append(p.warnings, "':' is deprecated, use '::'")
		}
		p.advance()
		inner, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return ancestors(inner, Full()), nil
	case tokDotDot:
		p.advance()
		inner, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return ancestors(inner, Full()), nil
	}
	return p.parsePostfix()
}

// parsePostfix: postfix `::` (descendants), `..` (range to visible heads),
// `-` (parents), `+` (children); `^` is always a compatibility rejection.
// A `::`/`..` followed by another primary is left to parseRangeBinary.
func (p *parser) parsePostfix() (*RevsetExpression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokColonColon, tokColon:
			if p.looksLikeInfixFollow() {
				return left, nil
			}
			if p.cur().kind == tokColon {
				p.warnings = append(p.warnings, "':' is deprecated, use '::'")
			}
			p.advance()
			left = descendants(left)
		case tokDotDot:
			if p.looksLikeInfixFollow() {
				return left, nil
			}
			p.advance()
			left = rangeExpr(left, commitRef(RevsetCommitRef{Kind: RefVisibleHeads}), Full())
		case tokMinus:
			if p.looksLikeInfixFollow() {
				return nil, &ParseError{Msg: "'-' is not a binary operator; use '~' for set difference", Pos: p.cur().pos}
			}
			p.advance()
			left = ancestors(left, GenerationRange{1, 2})
		case tokPlus:
			if p.looksLikeInfixFollow() {
				return nil, &ParseError{Msg: "'+' is not a binary operator; use '|' for union", Pos: p.cur().pos}
			}
			p.advance()
			left = children(left)
		case tokCaret:
			return nil, &ParseError{Msg: "'^' is not supported; use '-' for parents", Pos: p.cur().pos}
		default:
			return left, nil
		}
	}
}

// looksLikeInfixFollow reports whether the token after a pending '+'/'-'
// looks like the start of another whole primary, the telltale sign that
// the user meant an infix operator rather than the postfix form.
func (p *parser) looksLikeInfixFollow() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	switch p.toks[p.pos+1].kind {
	case tokIdent, tokString, tokLParen:
		return true
	default:
		return false
	}
}

// parsePrimary: parenthesised expression, function call, or bare/quoted
// symbol.
func (p *parser) parsePrimary() (*RevsetExpression, error) {
	t := p.cur()
	switch t.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, &ParseError{Msg: "expected ')'", Pos: p.cur().pos}
		}
		p.advance()
		return inner, nil
	case tokString:
		p.advance()
		return commitRef(RevsetCommitRef{Kind: RefSymbol, Symbol: t.text}), nil
	case tokIdent:
		if err := validateIdent(t.text); err != nil {
			return nil, err
		}
		p.advance()
		if p.cur().kind == tokLParen {
			return p.parseCall(t.text)
		}
		if local, ok := p.lookupLocal(t.text); ok {
			return local, nil
		}
		if p.aliases.hasSymbol(t.text) {
			return p.expandSymbolAlias(t.text, t.pos)
		}
		return commitRef(RevsetCommitRef{Kind: RefSymbol, Symbol: t.text}), nil
	}
	return nil, &ParseError{Msg: "expected an expression", Pos: t.pos}
}

// validateIdent enforces spec §4.6.2's identifier shape: ASCII alnum, `_`,
// and internal `.`, `-`, `+` (never at the edges, never doubled).
func validateIdent(s string) error {
	if s == "@" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' || c == '-' || c == '+' {
			if i == 0 || i == len(s)-1 {
				return &ParseError{Msg: "identifier cannot start or end with '" + string(c) + "'"}
			}
			if s[i-1] == c {
				return &ParseError{Msg: "identifier cannot repeat '" + string(c) + "'"}
			}
		}
	}
	return nil
}

// callArg is one parsed function argument: either positional or keyword.
type callArg struct {
	keyword string
	value   *RevsetExpression
}

func (p *parser) parseCall(name string) (*RevsetExpression, error) {
	p.advance() // '('
	var args []callArg
	seenKeyword := false
	for p.cur().kind != tokRParen {
		if len(args) > 0 {
			if p.cur().kind != tokComma {
				return nil, &ParseError{Msg: "expected ',' or ')'", Pos: p.cur().pos}
			}
			p.advance()
			if p.cur().kind == tokRParen { // trailing comma after a non-empty list
				break
			}
		}
		arg, err := p.parseCallArg()
		if err != nil {
			return nil, err
		}
		if arg.keyword != "" {
			for _, a := range args {
				if a.keyword == arg.keyword {
					return nil, &ParseError{Msg: "repeated keyword argument '" + arg.keyword + "'"}
				}
			}
			seenKeyword = true
		} else if seenKeyword {
			return nil, &ParseError{Msg: "positional argument may not follow a keyword argument"}
		}
		args = append(args, arg)
	}
	p.advance() // ')'
	if !builtinFunctionNames[name] && p.aliases.hasFunction(name) {
		return p.expandFunctionCall(name, args)
	}
	return buildFunctionCall(name, args)
}

func (p *parser) parseCallArg() (callArg, error) {
	if p.cur().kind == tokIdent {
		save := p.pos
		name := p.cur().text
		p.advance()
		if p.cur().kind == tokEquals {
			p.advance()
			value, err := p.parseUnion()
			if err != nil {
				return callArg{}, err
			}
			return callArg{keyword: name, value: value}, nil
		}
		p.pos = save
	}
	value, err := p.parseUnion()
	if err != nil {
		return callArg{}, err
	}
	return callArg{value: value}, nil
}
