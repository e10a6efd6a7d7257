package revset

import "fmt"

// functionAliasDef is the stored (unparsed) body of a function alias, kept
// as source text since each use re-parses it with its own parameter
// bindings (spec §4.6.4: "declaration is re-parsed on insert" covers
// validation; each call site re-parses again with locals bound).
type functionAliasDef struct {
	params []string
	body   string
}

// AliasMap holds the two alias namespaces: `name -> expr` symbol aliases
// and `name(params...) -> expr` function aliases.
type AliasMap struct {
	symbols   map[string]string
	functions map[string]functionAliasDef
}

func NewAliasMap() *AliasMap {
	return &AliasMap{symbols: map[string]string{}, functions: map[string]functionAliasDef{}}
}

// InsertSymbol registers a symbol alias, re-parsing its body immediately so
// a bad declaration fails at insert time rather than at first use.
func (m *AliasMap) InsertSymbol(name, body string) error {
	if _, _, err := Parse(body); err != nil {
		return fmt.Errorf("revset: bad alias declaration %q: %w", name, err)
	}
	m.symbols[name] = body
	return nil
}

// InsertFunction registers a function alias. The body is validated by
// parsing it with each parameter bound to a placeholder symbol of the same
// name, matching the "locals shadow symbol aliases" rule at declaration
// time too.
func (m *AliasMap) InsertFunction(name string, params []string, body string) error {
	sub := &parser{toks: mustLex(body)}
	scope := map[string]*RevsetExpression{}
	for _, p := range params {
		scope[p] = commitRef(RevsetCommitRef{Kind: RefSymbol, Symbol: p})
	}
	sub.locals = []map[string]*RevsetExpression{scope}
	sub.aliases = m
	if _, err := sub.parseUnion(); err != nil {
		return fmt.Errorf("revset: bad alias declaration %q: %w", name, err)
	}
	m.functions[name] = functionAliasDef{params: params, body: body}
	return nil
}

// FunctionDecl is the params/body pair a function alias is declared with,
// shaped to match settings.AliasFunctionDecl so repo-open code can load
// configured aliases without this package depending on internal/settings.
type FunctionDecl struct {
	Params []string
	Body   string
}

// LoadAll installs a repository's configured symbol aliases, then its
// function aliases; within each group the order is Go's map iteration
// order, and the first bad declaration stops the load.
func (m *AliasMap) LoadAll(symbols map[string]string, functions map[string]FunctionDecl) error {
	for name, body := range symbols {
		if err := m.InsertSymbol(name, body); err != nil {
			return err
		}
	}
	for name, decl := range functions {
		if err := m.InsertFunction(name, decl.Params, decl.Body); err != nil {
			return err
		}
	}
	return nil
}

func (m *AliasMap) hasSymbol(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.symbols[name]
	return ok
}

func (m *AliasMap) hasFunction(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.functions[name]
	return ok
}

func mustLex(src string) []token {
	toks, err := lex(src)
	if err != nil {
		return []token{{kind: tokEOF}}
	}
	return toks
}

// builtinFunctionNames is the fixed set of function names a user alias may
// never shadow (spec §4.6.4: "locals shadow symbol aliases but not
// built-in function names" — the same priority applies to alias functions
// themselves, which can never outrank a built-in of the same name).
var builtinFunctionNames = map[string]bool{
	"none": true, "all": true, "visible_heads": true, "tags": true, "git_refs": true,
	"git_head": true, "parents": true, "children": true, "ancestors": true,
	"descendants": true, "connected": true, "heads": true, "roots": true,
	"branches": true, "remote_branches": true, "latest": true, "merges": true,
	"conflict": true, "description": true, "author": true, "committer": true,
	"empty": true, "file": true, "present": true,
}

// ParseWithAliases parses src, expanding any registered symbol/function
// aliases it references.
func ParseWithAliases(src string, aliases *AliasMap) (*RevsetExpression, []string, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, aliases: aliases}
	expr, err := p.parseUnion()
	if err != nil {
		return nil, nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, nil, &ParseError{Msg: "unexpected trailing input", Pos: p.cur().pos}
	}
	return expr, p.warnings, nil
}

// lookupLocal searches the parser's local-scope stack innermost-first.
func (p *parser) lookupLocal(name string) (*RevsetExpression, bool) {
	for i := len(p.locals) - 1; i >= 0; i-- {
		if e, ok := p.locals[i][name]; ok {
			return e, true
		}
	}
	return nil, false
}

// expandSymbolAlias substitutes a symbol alias reference with its
// re-parsed body, guarding against self-recursive expansion.
func (p *parser) expandSymbolAlias(name string, pos int) (*RevsetExpression, error) {
	id := "symbol:" + name
	for _, s := range p.stack {
		if s == id {
			return nil, &BadAliasExpansion{Alias: name, Err: &RecursiveAlias{Name: name}}
		}
	}
	body := p.aliases.symbols[name]
	sub := &parser{toks: mustLex(body), aliases: p.aliases, stack: append(append([]string{}, p.stack...), id)}
	expr, err := sub.parseUnion()
	if err != nil {
		return nil, &BadAliasExpansion{Alias: name, Err: err}
	}
	if sub.cur().kind != tokEOF {
		return nil, &BadAliasExpansion{Alias: name, Err: &ParseError{Msg: "unexpected trailing input in alias body", Pos: sub.cur().pos}}
	}
	p.warnings = append(p.warnings, sub.warnings...)
	return expr, nil
}

// expandFunctionCall substitutes a function-alias call: arguments are
// already-parsed expressions from the caller's scope, bound as locals
// (shadowing symbol aliases, never built-in function names) while the
// alias body is parsed fresh.
func (p *parser) expandFunctionCall(name string, args []callArg) (*RevsetExpression, error) {
	def := p.aliases.functions[name]
	for _, a := range args {
		if a.keyword != "" {
			return nil, &ParseError{Msg: "function alias '" + name + "' does not accept keyword arguments"}
		}
	}
	if len(args) != len(def.params) {
		return nil, &ParseError{Msg: name + "() called with wrong number of arguments"}
	}
	id := "function:" + name
	for _, s := range p.stack {
		if s == id {
			return nil, &BadAliasExpansion{Alias: name, Err: &RecursiveAlias{Name: name}}
		}
	}
	scope := map[string]*RevsetExpression{}
	for i, param := range def.params {
		scope[param] = args[i].value
	}
	sub := &parser{
		toks:    mustLex(def.body),
		aliases: p.aliases,
		stack:   append(append([]string{}, p.stack...), id),
		locals:  []map[string]*RevsetExpression{scope},
	}
	expr, err := sub.parseUnion()
	if err != nil {
		return nil, &BadAliasExpansion{Alias: name, Err: err}
	}
	if sub.cur().kind != tokEOF {
		return nil, &BadAliasExpansion{Alias: name, Err: &ParseError{Msg: "unexpected trailing input in alias body", Pos: sub.cur().pos}}
	}
	p.warnings = append(p.warnings, sub.warnings...)
	return expr, nil
}
