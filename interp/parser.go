package interp

import (
	"strconv"
	"strings"
)

// Parser is a recursive-descent parser with explicit precedence climbing
// (spec §4.2). It holds the full token stream (produced eagerly by the
// Lexer) and an index, giving it unbounded lookahead for disambiguation.
type Parser struct {
	toks []Token
	pos  int
}

func NewParser(toks []Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(off int) Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[i]
}
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.cur()
	if !p.atEOF() {
		p.pos++
	}
	return t
}

func (p *Parser) check(k TokenKind) bool { return p.cur().Kind == k }

func (p *Parser) match(kinds ...TokenKind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(k TokenKind, what string) (Token, *Error) {
	if p.check(k) {
		return p.advance(), nil
	}
	return Token{}, p.errHere(what)
}

func (p *Parser) errHere(what string) *Error {
	t := p.cur()
	if t.Kind == TokEOF {
		return newErr(SyntaxError, t.Span(), "Unexpected end of file, expected %s", what)
	}
	return newErr(SyntaxError, t.Span(), "expected %s, got '%s'", what, t.Lexeme)
}

// ---- Entry point ----

func (p *Parser) ParseProgram() (*Node, *Error) {
	start := p.cur().Span()
	var stmts []*Node
	for !p.atEOF() {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return &Node{Kind: NProgram, Stmts: stmts, Span: spanFrom(start)}, nil
}

func spanFrom(s Span) Span { return s }

// ---- Statements ----

func (p *Parser) parseStatement() (*Node, *Error) {
	switch p.cur().Kind {
	case TokLBrace:
		return p.parseBlock()
	case TokIf:
		return p.parseIf()
	case TokWhile:
		return p.parseWhile()
	case TokDo:
		return p.parseDoLoop()
	case TokLoop:
		return p.parseLoop()
	case TokFor:
		return p.parseFor()
	case TokBreak:
		t := p.advance()
		return &Node{Kind: NBreak, Span: t.Span()}, nil
	case TokContinue:
		t := p.advance()
		return &Node{Kind: NContinue, Span: t.Span()}, nil
	case TokReturn:
		return p.parseReturn()
	case TokSwitch:
		return p.parseSwitch()
	case TokTry:
		return p.parseTry()
	case TokWith:
		return p.parseWith()
	case TokThrow:
		return p.parseThrow()
	case TokFunc, TokAsync:
		if p.cur().Kind == TokAsync && p.peekAt(1).Kind != TokFunc {
			break
		}
		return p.parseFuncDecl(false)
	case TokClass:
		return p.parseClassDecl()
	case TokInterface:
		return p.parseInterfaceDecl()
	case TokEnum:
		return p.parseEnumDecl()
	case TokFinal, TokAbstract, TokInternal:
		return p.parseModifiedDecl()
	case TokImport:
		return p.parseImport()
	case TokConst:
		return p.parseDeclOrExpr()
	case TokIdent:
		return p.parseDeclOrExpr()
	}
	return p.parseExprStatement()
}

func (p *Parser) parseModifiedDecl() (*Node, *Error) {
	final, abstract, internal := false, false, false
	for p.check(TokFinal) || p.check(TokAbstract) || p.check(TokInternal) {
		switch p.advance().Kind {
		case TokFinal:
			final = true
		case TokAbstract:
			abstract = true
		case TokInternal:
			internal = true
		}
	}
	switch p.cur().Kind {
	case TokClass:
		n, err := p.parseClassDecl()
		if err != nil {
			return nil, err
		}
		n.IsFinal, n.IsAbstract, n.IsInternal = final, abstract, internal
		return n, nil
	case TokFunc, TokAsync:
		n, err := p.parseFuncDecl(abstract)
		if err != nil {
			return nil, err
		}
		n.IsInternal = internal
		return n, nil
	}
	return nil, p.errHere("'class' or 'func' after modifier")
}

func (p *Parser) parseBlock() (*Node, *Error) {
	start := p.cur().Span()
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []*Node
	for !p.check(TokRBrace) && !p.atEOF() {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &Node{Kind: NBlock, Stmts: stmts, Span: start}, nil
}

func (p *Parser) parseIf() (*Node, *Error) {
	start := p.advance().Span() // 'if'
	cond, err := p.parseParenOrBareExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NIf, Cond: cond, Then: then, Span: start}
	if p.match(TokElse) {
		if p.check(TokIf) {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			n.Else = elseIf
		} else {
			elseBlock, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			n.Else = elseBlock
		}
	}
	return n, nil
}

// parseParenOrBareExpr accepts either `(expr)` or a bare expr before a block,
// matching the teacher corpus's common scripting-language convention of
// optional parens around conditions.
func (p *Parser) parseParenOrBareExpr() (*Node, *Error) {
	return p.parseExpr()
}

func (p *Parser) parseWhile() (*Node, *Error) {
	start := p.advance().Span()
	cond, err := p.parseParenOrBareExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NWhile, Cond: cond, Body: body, Span: start}, nil
}

func (p *Parser) parseDoLoop() (*Node, *Error) {
	start := p.advance().Span() // 'do'
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if p.match(TokWhile) {
		cond, err := p.parseParenOrBareExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NDoWhile, Cond: cond, Body: body, Span: start}, nil
	}
	if p.match(TokUntil) {
		cond, err := p.parseParenOrBareExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NDoUntil, Cond: cond, Body: body, Span: start}, nil
	}
	return nil, p.errHere("'while' or 'until' after do-block")
}

func (p *Parser) parseLoop() (*Node, *Error) {
	start := p.advance().Span()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NLoop, Body: body, Span: start}, nil
}

// parseFor disambiguates for-each (`for (x in iter)`, optionally
// `const`/typed/destructured) from C-style for (spec §4.2 table).
func (p *Parser) parseFor() (*Node, *Error) {
	start := p.advance().Span() // 'for'
	hasParen := p.match(TokLParen)

	if p.looksLikeForEach() {
		n, err := p.parseForEachRest(start)
		if err != nil {
			return nil, err
		}
		if hasParen {
			if _, err := p.expect(TokRParen, "')'"); err != nil {
				return nil, err
			}
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		n.Body = body
		return n, nil
	}

	// C-style for: init ; cond ; post
	var init *Node
	if !p.check(TokSemicolon) {
		var err *Error
		init, err = p.parseDeclOrExprNoConsume()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokSemicolon, "';'"); err != nil {
		return nil, err
	}
	var cond *Node
	if !p.check(TokSemicolon) {
		var err *Error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokSemicolon, "';'"); err != nil {
		return nil, err
	}
	var post *Node
	end := TokRParen
	if !hasParen {
		end = TokLBrace
	}
	if !p.check(end) {
		var err *Error
		post, err = p.parseExprStatementNoSemi()
		if err != nil {
			return nil, err
		}
	}
	if hasParen {
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NForC, Init: init, Cond: cond, Post: post, Body: body, Span: start}, nil
}

// looksLikeForEach implements the spec §4.2 lookahead rule: after `for (`,
// a name (optionally preceded by `const`, optionally followed by `: T`)
// followed by `in` or `,` means for-each.
func (p *Parser) looksLikeForEach() bool {
	save := p.pos
	defer func() { p.pos = save }()

	p.match(TokConst)
	if !p.check(TokIdent) {
		return false
	}
	p.advance()
	if p.check(TokColon) {
		p.advance()
		if p.check(TokIdent) {
			p.advance()
		}
	}
	return p.check(TokIn) || p.check(TokComma)
}

func (p *Parser) parseForEachRest(start Span) (*Node, *Error) {
	n := &Node{Kind: NForEach, Span: start}
	n.IsConst = p.match(TokConst)
	name, err := p.expect(TokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	n.LoopVars = append(n.LoopVars, name.Lexeme)
	if p.match(TokColon) {
		if _, err := p.expect(TokIdent, "type name"); err != nil {
			return nil, err
		}
	}
	for p.match(TokComma) {
		n.Destructure = true
		name2, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		n.LoopVars = append(n.LoopVars, name2.Lexeme)
	}
	if _, err := p.expect(TokIn, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	n.Iterable = iter
	if p.match(TokWhere) {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Where = where
	}
	return n, nil
}

func (p *Parser) parseReturn() (*Node, *Error) {
	start := p.advance().Span()
	n := &Node{Kind: NReturn, Span: start}
	if !p.check(TokRBrace) && !p.check(TokSemicolon) && !p.atEOF() && !p.startsNewStatementKeyword() {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Right = v
	}
	p.match(TokSemicolon)
	return n, nil
}

func (p *Parser) startsNewStatementKeyword() bool {
	switch p.cur().Kind {
	case TokRBrace:
		return true
	}
	return false
}

func (p *Parser) parseThrow() (*Node, *Error) {
	start := p.advance().Span()
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.match(TokSemicolon)
	return &Node{Kind: NThrow, Right: v, Span: start}, nil
}

func (p *Parser) parseSwitch() (*Node, *Error) {
	start := p.advance().Span()
	disc, err := p.parseParenOrBareExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var cases []CaseClauseData
	for !p.check(TokRBrace) && !p.atEOF() {
		var cc CaseClauseData
		if p.match(TokCase) {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			cc.Values = append(cc.Values, v)
			for p.match(TokComma) {
				v2, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				cc.Values = append(cc.Values, v2)
			}
		} else if p.match(TokDefault) {
			cc.IsDefault = true
		} else {
			return nil, p.errHere("'case' or 'default'")
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		for !p.check(TokCase) && !p.check(TokDefault) && !p.check(TokRBrace) && !p.atEOF() {
			s, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			cc.Body = append(cc.Body, s)
		}
		cases = append(cases, cc)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &Node{Kind: NSwitch, Discriminant: disc, Cases: cases, Span: start}, nil
}

func (p *Parser) parseTry() (*Node, *Error) {
	start := p.advance().Span()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NTry, Body: body, Span: start}
	if p.match(TokCatch) {
		if p.match(TokLParen) {
			name, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			n.CatchVar = name.Lexeme
			if _, err := p.expect(TokRParen, "')'"); err != nil {
				return nil, err
			}
		} else if p.check(TokIdent) {
			n.CatchVar = p.advance().Lexeme
		}
		cb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		n.CatchBody = cb
	}
	if p.match(TokFinally) {
		fb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		n.FinallyBody = fb
	}
	return n, nil
}

func (p *Parser) parseWith() (*Node, *Error) {
	start := p.advance().Span()
	ctx, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NWith, CtxExpr: ctx, Span: start}
	if p.match(TokAs) {
		name, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		n.AsVar = name.Lexeme
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n.Body = body
	return n, nil
}

func (p *Parser) parseImport() (*Node, *Error) {
	start := p.advance().Span()

	if p.check(TokString) {
		tok := p.advance()
		path, uerr := unescapeStringLiteral(tok)
		if uerr != nil {
			return nil, uerr
		}
		n := &Node{Kind: NImportPath, ModuleSpec: path, IsPathImport: true, Span: start}
		if p.match(TokAs) {
			alias, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			n.Alias = alias.Lexeme
		}
		p.match(TokSemicolon)
		return n, nil
	}

	first, err := p.expect(TokIdent, "identifier")
	if err != nil {
		return nil, err
	}

	if p.check(TokComma) || p.check(TokFrom) {
		names := []string{first.Lexeme}
		for p.match(TokComma) {
			name, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			names = append(names, name.Lexeme)
		}
		if _, err := p.expect(TokFrom, "'from'"); err != nil {
			return nil, err
		}
		mod, err := p.parseDottedModuleName()
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: NImportNamed, Specifiers: names, ModuleSpec: mod, Span: start}
		if p.match(TokAs) {
			alias, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			n.Alias = alias.Lexeme
		}
		p.match(TokSemicolon)
		return n, nil
	}

	name := first.Lexeme
	dotted := false
	for p.match(TokDot) {
		dotted = true
		part, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		name += "." + part.Lexeme
	}
	n := &Node{Kind: NImportBare, ModuleSpec: name, Dotted: dotted, Span: start}
	if p.match(TokAs) {
		alias, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		n.Alias = alias.Lexeme
	}
	p.match(TokSemicolon)
	return n, nil
}

func (p *Parser) parseDottedModuleName() (string, *Error) {
	tok, err := p.expect(TokIdent, "module name")
	if err != nil {
		return "", err
	}
	name := tok.Lexeme
	for p.match(TokDot) {
		part, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return "", err
		}
		name += "." + part.Lexeme
	}
	return name, nil
}

// ---- Declarations ----

func (p *Parser) parseFuncDecl(forcedAbstract bool) (*Node, *Error) {
	start := p.cur().Span()
	async := p.match(TokAsync)
	if _, err := p.expect(TokFunc, "'func'"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent, "function name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NFuncDecl, Name: name.Lexeme, Params: params, IsAsync: async, IsAbstract: forcedAbstract, Span: start}
	if p.match(TokArrow) {
		rt, err := p.expect(TokIdent, "return type")
		if err != nil {
			return nil, err
		}
		n.ReturnType = rt.Lexeme
		n.HasReturnType = true
	}
	if forcedAbstract {
		p.match(TokSemicolon)
		return n, nil
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n.Body = body
	return n, nil
}

func (p *Parser) parseParamList() ([]Param, *Error) {
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var params []Param
	for !p.check(TokRParen) {
		isConst := p.match(TokConst)
		name, err := p.expect(TokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		param := Param{Name: name.Lexeme, Const: isConst}
		if p.match(TokColon) {
			t, err := p.expect(TokIdent, "type name")
			if err != nil {
				return nil, err
			}
			param.Type = t.Lexeme
		}
		params = append(params, param)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseClassDecl() (*Node, *Error) {
	start := p.advance().Span() // 'class'
	name, err := p.expect(TokIdent, "class name")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NClassDecl, Name: name.Lexeme, Span: start}
	if p.match(TokColon) {
		// The full inheritance list is parsed flat; which entry (if any) is
		// the parent class vs. an interface is resolved at evaluation time
		// (spec §4.2: "at most one may be a class, the rest must be
		// interfaces"), not presupposed by position here.
		first, err := p.expect(TokIdent, "class or interface name")
		if err != nil {
			return nil, err
		}
		n.Interfaces = append(n.Interfaces, first.Lexeme)
		for p.match(TokComma) {
			iface, err := p.expect(TokIdent, "interface name")
			if err != nil {
				return nil, err
			}
			n.Interfaces = append(n.Interfaces, iface.Lexeme)
		}
	}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for !p.check(TokRBrace) && !p.atEOF() {
		if p.check(TokFunc) || (p.check(TokAsync) && p.peekAt(1).Kind == TokFunc) ||
			p.check(TokAbstract) || p.check(TokInternal) {
			abstract, internal := false, false
			for p.check(TokAbstract) || p.check(TokInternal) {
				if p.advance().Kind == TokAbstract {
					abstract = true
				} else {
					internal = true
				}
			}
			m, err := p.parseFuncDecl(abstract)
			if err != nil {
				return nil, err
			}
			m.IsInternal = internal
			n.Methods = append(n.Methods, m)
			continue
		}
		mv, err := p.parseMemberVar()
		if err != nil {
			return nil, err
		}
		n.MemberVars = append(n.MemberVars, mv)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) parseMemberVar() (MemberVar, *Error) {
	isConst := p.match(TokConst)
	name, err := p.expect(TokIdent, "member name")
	if err != nil {
		return MemberVar{}, err
	}
	mv := MemberVar{Name: name.Lexeme, IsConst: isConst}
	if p.match(TokColon) {
		t, err := p.expect(TokIdent, "type name")
		if err != nil {
			return MemberVar{}, err
		}
		mv.Type = t.Lexeme
		mv.HasExplicitType = true
	}
	if p.match(TokAssign) {
		v, err := p.parseExpr()
		if err != nil {
			return MemberVar{}, err
		}
		mv.Default = v
		mv.HasDefaultValue = true
	}
	p.match(TokSemicolon)
	return mv, nil
}

func (p *Parser) parseInterfaceDecl() (*Node, *Error) {
	start := p.advance().Span()
	name, err := p.expect(TokIdent, "interface name")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NInterfaceDecl, Name: name.Lexeme, Span: start}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for !p.check(TokRBrace) && !p.atEOF() {
		sig, err := p.parseFuncDecl(true)
		if err != nil {
			return nil, err
		}
		n.Signatures = append(n.Signatures, sig)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) parseEnumDecl() (*Node, *Error) {
	start := p.advance().Span()
	name, err := p.expect(TokIdent, "enum name")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NEnumDecl, Name: name.Lexeme, Span: start}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for !p.check(TokRBrace) && !p.atEOF() {
		mname, err := p.expect(TokIdent, "enum member name")
		if err != nil {
			return nil, err
		}
		em := EnumMember{Name: mname.Lexeme}
		if p.match(TokAssign) {
			numTok, err := p.expect(TokInt, "integer literal")
			if err != nil {
				return nil, err
			}
			lit := numTok.Literal.(numLiteral)
			val, _, perr := parseIntLiteral(lit, numTok.Span())
			if perr != nil {
				return nil, perr
			}
			em.HasValue = true
			em.Value = val
		}
		n.EnumMembers = append(n.EnumMembers, em)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}

// ---- Declaration vs. expression-statement disambiguation (spec §4.2) ----

func (p *Parser) parseDeclOrExpr() (*Node, *Error) {
	n, err := p.parseDeclOrExprNoConsume()
	if err != nil {
		return nil, err
	}
	p.match(TokSemicolon)
	return n, nil
}

func (p *Parser) parseDeclOrExprNoConsume() (*Node, *Error) {
	start := p.cur().Span()
	isConst := p.match(TokConst)

	if p.check(TokIdent) {
		// "name : T = v", "name : T" alone, or "const name = v" is a declaration;
		// bracketed destructuring is handled in parseExprStatement via the
		// postfix/assignment grammar. A bare identifier that isn't followed
		// by ':' or (at top level) '=' falls through to an expression
		// statement, e.g. a call `foo()`.
		if p.peekAt(1).Kind == TokColon {
			return p.parseTypedOrEmptyTypedDecl(start, isConst)
		}
		if isConst && p.peekAt(1).Kind == TokAssign {
			name := p.advance()
			p.advance() // '='
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &Node{Kind: NVarDecl, Name: name.Lexeme, Right: v, IsConst: true, HasDefaultValue: true, Span: start}, nil
		}
		if isConst {
			return nil, p.errHere("':' or '=' after const declaration")
		}
	} else if isConst {
		return nil, p.errHere("identifier after 'const'")
	}

	return p.parseExprStatementNoSemi()
}

func (p *Parser) parseTypedOrEmptyTypedDecl(start Span, isConst bool) (*Node, *Error) {
	name := p.advance() // ident
	p.advance()          // ':'
	t, err := p.expect(TokIdent, "type name")
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NVarDecl, Name: name.Lexeme, IsConst: isConst, HasExplicitType: true, ReturnType: t.Lexeme, Span: start}
	if p.match(TokAssign) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Right = v
		n.HasDefaultValue = true
	}
	return n, nil
}

func (p *Parser) parseExprStatement() (*Node, *Error) {
	n, err := p.parseExprStatementNoSemi()
	if err != nil {
		return nil, err
	}
	p.match(TokSemicolon)
	return n, nil
}

// parseExprStatementNoSemi handles destructuring assignment (`[a, b] = expr`),
// plain assignment/compound-assignment, and pre/post increment, folding
// them over the postfix-chain expression grammar.
func (p *Parser) parseExprStatementNoSemi() (*Node, *Error) {
	start := p.cur().Span()

	if p.check(TokLBracket) && p.looksLikeDestructure() {
		p.advance()
		var names []string
		for !p.check(TokRBracket) {
			name, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			names = append(names, name.Lexeme)
			if !p.match(TokComma) {
				break
			}
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokAssign, "'='"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NDestructureAssign, Names: names, Right: v, Span: start}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	switch p.cur().Kind {
	case TokAssign:
		p.advance()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NAssign, Target: expr, Right: v, Span: start}, nil
	case TokPlusEq, TokMinusEq, TokStarEq, TokSlashEq, TokPercentEq, TokPowEq:
		opTok := p.advance()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NCompoundAssign, Target: expr, Right: v, Op: compoundOp(opTok.Kind), Span: start}, nil
	case TokPlusPlus, TokMinusMinus:
		opTok := p.advance()
		return &Node{Kind: NPostIncDec, Target: expr, Op: opTok.Lexeme, Span: start}, nil
	}

	return &Node{Kind: NExprStmt, Right: expr, Span: start}, nil
}

func compoundOp(k TokenKind) string {
	switch k {
	case TokPlusEq:
		return "+"
	case TokMinusEq:
		return "-"
	case TokStarEq:
		return "*"
	case TokSlashEq:
		return "/"
	case TokPercentEq:
		return "%"
	case TokPowEq:
		return "**"
	}
	return ""
}

// looksLikeDestructure implements spec §4.2: a bracketed comma-separated
// name list followed by '=' is destructuring, not a list literal.
func (p *Parser) looksLikeDestructure() bool {
	save := p.pos
	defer func() { p.pos = save }()

	if !p.match(TokLBracket) {
		return false
	}
	if p.check(TokRBracket) {
		return false
	}
	for {
		if !p.check(TokIdent) {
			return false
		}
		p.advance()
		if p.match(TokComma) {
			continue
		}
		break
	}
	if !p.match(TokRBracket) {
		return false
	}
	return p.check(TokAssign)
}

// ---- Expressions: precedence climbing (spec §4.2) ----
// pipe < ternary < nullish < or < and < bitor < bitxor < bitand <
// comparison/membership < shift < additive < multiplicative < power(right) <
// unary < postfix.

func (p *Parser) parseExpr() (*Node, *Error) { return p.parsePipe() }

func (p *Parser) parsePipe() (*Node, *Error) {
	left, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	for p.check(TokPipe) {
		start := p.advance().Span()
		right, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "|>", Span: start}
	}
	return left, nil
}

func (p *Parser) parseTernary() (*Node, *Error) {
	cond, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if p.check(TokQuestion) {
		start := p.advance().Span()
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NTernary, Cond: cond, Then: then, Else: els, Span: start}, nil
	}
	return cond, nil
}

func (p *Parser) parseNullish() (*Node, *Error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.check(TokNullish) {
		start := p.advance().Span()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "??", Span: start}
	}
	return left, nil
}

func (p *Parser) parseOr() (*Node, *Error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(TokOr) || p.check(TokPipePipe) {
		start := p.advance().Span()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "or", Span: start}
	}
	return left, nil
}

func (p *Parser) parseAnd() (*Node, *Error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.check(TokAnd) || p.check(TokAmpAmp) {
		start := p.advance().Span()
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "and", Span: start}
	}
	return left, nil
}

func (p *Parser) parseBitOr() (*Node, *Error) {
	left, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.check(TokBar) {
		start := p.advance().Span()
		right, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "|", Span: start}
	}
	return left, nil
}

func (p *Parser) parseBitXor() (*Node, *Error) {
	left, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.check(TokCaret) {
		start := p.advance().Span()
		right, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "^", Span: start}
	}
	return left, nil
}

func (p *Parser) parseBitAnd() (*Node, *Error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.check(TokAmp) {
		start := p.advance().Span()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: "&", Span: start}
	}
	return left, nil
}

func (p *Parser) parseComparison() (*Node, *Error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Kind {
		case TokEq:
			op = "=="
		case TokNotEq:
			op = "!="
		case TokLt:
			op = "<"
		case TokLtEq:
			op = "<="
		case TokGt:
			op = ">"
		case TokGtEq:
			op = ">="
		case TokIs:
			op = "is"
		case TokIn:
			op = "in"
		case TokNot:
			if p.peekAt(1).Kind == TokIn {
				start := p.advance().Span()
				p.advance()
				right, err := p.parseShift()
				if err != nil {
					return nil, err
				}
				left = &Node{Kind: NUnary, Op: "not", Right: &Node{Kind: NBinary, Left: left, Right: right, Op: "in", Span: start}, Span: start}
				continue
			}
			return left, nil
		default:
			return left, nil
		}
		start := p.advance().Span()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: op, Span: start}
	}
}

func (p *Parser) parseShift() (*Node, *Error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.check(TokShl) || p.check(TokShr) {
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: opTok.Lexeme, Span: opTok.Span()}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (*Node, *Error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(TokPlus) || p.check(TokMinus) {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: opTok.Lexeme, Span: opTok.Span()}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (*Node, *Error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.check(TokStar) || p.check(TokSlash) || p.check(TokPercent) {
		opTok := p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: NBinary, Left: left, Right: right, Op: opTok.Lexeme, Span: opTok.Span()}
	}
	return left, nil
}

// parsePower is right-associative (spec §4.2).
func (p *Parser) parsePower() (*Node, *Error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.check(TokPow) {
		start := p.advance().Span()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NBinary, Left: left, Right: right, Op: "**", Span: start}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (*Node, *Error) {
	switch p.cur().Kind {
	case TokMinus, TokBang, TokTilde:
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := opTok.Lexeme
		if op == "!" {
			op = "not"
		}
		return &Node{Kind: NUnary, Right: right, Op: op, Span: opTok.Span()}, nil
	case TokNot:
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NUnary, Right: right, Op: "not", Span: opTok.Span()}, nil
	case TokPlusPlus, TokMinusMinus:
		opTok := p.advance()
		target, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NPreIncDec, Target: target, Op: opTok.Lexeme, Span: opTok.Span()}, nil
	case TokAwait:
		start := p.advance().Span()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NAwait, Right: right, Span: start}, nil
	case TokSpawn:
		start := p.advance().Span()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NSpawn, Right: right, Span: start}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles arbitrary interleaving of .member, ?.member,
// [index], ?[index], and (args) (spec §4.2). A `[` on a later line than
// the token before it ends the chain instead of indexing.
func (p *Parser) parsePostfix() (*Node, *Error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case TokDot:
			start := p.advance().Span()
			name, err := p.expect(TokIdent, "member name")
			if err != nil {
				return nil, err
			}
			if p.check(TokLParen) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &Node{Kind: NMethodCall, Obj: expr, Name: name.Lexeme, Args: args, Span: start}
			} else {
				expr = &Node{Kind: NMember, Obj: expr, Name: name.Lexeme, Span: start}
			}
		case TokQuestionDot:
			start := p.advance().Span()
			name, err := p.expect(TokIdent, "member name")
			if err != nil {
				return nil, err
			}
			if p.check(TokLParen) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &Node{Kind: NOptMethodCall, Obj: expr, Name: name.Lexeme, Args: args, Span: start}
			} else {
				expr = &Node{Kind: NOptMember, Obj: expr, Name: name.Lexeme, Span: start}
			}
		case TokLBracket:
			if p.cur().StartLine > p.toks[p.pos-1].EndLine {
				return expr, nil // a '[' opening a new line starts a list literal, not an index
			}
			n, err := p.parseIndexOrSlice(expr, false)
			if err != nil {
				return nil, err
			}
			expr = n
		case TokQuestionBracket:
			n, err := p.parseIndexOrSlice(expr, true)
			if err != nil {
				return nil, err
			}
			expr = n
		case TokLParen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &Node{Kind: NCall, Callee: expr, Args: args, Span: expr.Span}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseIndexOrSlice(obj *Node, optional bool) (*Node, *Error) {
	start := p.advance().Span() // '[' or '?['
	var startExpr, endExpr, stepExpr *Node
	var err *Error
	isSlice := false

	if !p.check(TokColon) {
		startExpr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.match(TokColon) {
		isSlice = true
		if !p.check(TokColon) && !p.check(TokRBracket) {
			endExpr, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if p.match(TokColon) {
			if !p.check(TokRBracket) {
				stepExpr, err = p.parseExpr()
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}

	if isSlice {
		return &Node{Kind: NSlice, Obj: obj, SliceStart: startExpr, SliceEnd: endExpr, SliceStep: stepExpr, Span: start}, nil
	}
	kind := NIndex
	if optional {
		kind = NOptIndex
	}
	return &Node{Kind: kind, Obj: obj, Index: startExpr, Span: start}, nil
}

func (p *Parser) parseArgs() ([]*Node, *Error) {
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []*Node
	for !p.check(TokRParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (*Node, *Error) {
	t := p.cur()
	switch t.Kind {
	case TokInt:
		p.advance()
		lit := t.Literal.(numLiteral)
		val, kind, err := parseIntLiteral(lit, t.Span())
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NIntLit, IntVal: val, IntKind: kind, Span: t.Span()}, nil
	case TokFloat:
		p.advance()
		lit := t.Literal.(numLiteral)
		f, ferr := strconv.ParseFloat(strings.ReplaceAll(lit.text, "_", ""), 64)
		if ferr != nil {
			return nil, newErr(SyntaxError, t.Span(), "invalid float literal '%s'", lit.text)
		}
		return &Node{Kind: NFloatLit, FloatVal: f, Span: t.Span()}, nil
	case TokString:
		p.advance()
		s, err := unescapeStringLiteral(t)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NStringLit, StrVal: s, Span: t.Span()}, nil
	case TokFString:
		p.advance()
		parts, err := parseFStringParts(t)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NFStringLit, FParts: parts, Span: t.Span()}, nil
	case TokTrue:
		p.advance()
		return &Node{Kind: NBoolLit, BoolVal: true, Span: t.Span()}, nil
	case TokFalse:
		p.advance()
		return &Node{Kind: NBoolLit, BoolVal: false, Span: t.Span()}, nil
	case TokNoneKw:
		p.advance()
		return &Node{Kind: NNoneLit, Span: t.Span()}, nil
	case TokThis:
		p.advance()
		return &Node{Kind: NThis, Span: t.Span()}, nil
	case TokSuper:
		p.advance()
		return &Node{Kind: NSuper, Span: t.Span()}, nil
	case TokIdent:
		return p.parseIdentOrLambda()
	case TokLParen:
		return p.parseParenOrLambda()
	case TokLBracket:
		return p.parseListLit()
	case TokLBrace:
		return p.parseDictLit()
	}
	return nil, p.errHere("expression")
}

// parseIdentOrLambda disambiguates `x -> expr` single-param-no-parens
// lambdas from a bare name (spec §4.2 extends naturally to the unparenthesized form).
func (p *Parser) parseIdentOrLambda() (*Node, *Error) {
	name := p.advance()
	if p.check(TokArrow) {
		start := p.advance().Span()
		body, isExpr, err := p.parseLambdaBody()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NLambda, Params: []Param{{Name: name.Lexeme}}, Body: body, IsExprBody: isExpr, Span: start}, nil
	}
	return &Node{Kind: NName, Name: name.Lexeme, Span: name.Span()}, nil
}

// parseParenOrLambda disambiguates `(x) -> expr` from `(expr)` using bounded
// lookahead (spec §4.2 table): a `(` containing a name/`const` list whose
// follower is `,`, `:`, or `) ->` is a lambda parameter list.
func (p *Parser) parseParenOrLambda() (*Node, *Error) {
	start := p.cur().Span()
	if p.looksLikeLambdaParams() {
		params, err := p.parseParamList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokArrow, "'->'"); err != nil {
			return nil, err
		}
		body, isExpr, err := p.parseLambdaBody()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NLambda, Params: params, Body: body, IsExprBody: isExpr, Span: start}, nil
	}

	p.advance() // '('
	if p.check(TokRParen) {
		// () -> expr, a zero-parameter lambda
		p.advance()
		if _, err := p.expect(TokArrow, "'->'"); err != nil {
			return nil, err
		}
		body, isExpr, err := p.parseLambdaBody()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NLambda, Body: body, IsExprBody: isExpr, Span: start}, nil
	}
	inner, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *Parser) looksLikeLambdaParams() bool {
	save := p.pos
	defer func() { p.pos = save }()

	if !p.match(TokLParen) {
		return false
	}
	if p.check(TokRParen) {
		p.advance()
		return p.check(TokArrow)
	}
	for {
		p.match(TokConst)
		if !p.check(TokIdent) {
			return false
		}
		p.advance()
		if p.match(TokColon) {
			if !p.check(TokIdent) {
				return false
			}
			p.advance()
		}
		if p.match(TokComma) {
			continue
		}
		break
	}
	if !p.match(TokRParen) {
		return false
	}
	return p.check(TokArrow)
}

func (p *Parser) parseLambdaBody() (*Node, bool, *Error) {
	if p.check(TokLBrace) {
		b, err := p.parseBlock()
		return b, false, err
	}
	e, err := p.parseExpr()
	return e, true, err
}

func (p *Parser) parseListLit() (*Node, *Error) {
	start := p.advance().Span()
	var elems []*Node
	for !p.check(TokRBracket) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &Node{Kind: NListLit, Elements: elems, Span: start}, nil
}

func (p *Parser) parseDictLit() (*Node, *Error) {
	start := p.advance().Span()
	var entries []DictEntry
	for !p.check(TokRBrace) {
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		entries = append(entries, DictEntry{Key: k, Value: v})
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &Node{Kind: NDictLit, Entries: entries, Span: start}, nil
}

// ---- Literal helpers ----

func parseIntLiteral(lit numLiteral, span Span) (int64, IntKind, *Error) {
	text := strings.ReplaceAll(lit.text, "_", "")
	var val int64
	var perr error
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		u, e := strconv.ParseUint(text[2:], 16, 64)
		val, perr = int64(u), e
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		u, e := strconv.ParseUint(text[2:], 2, 64)
		val, perr = int64(u), e
	case strings.HasPrefix(text, "0o") || strings.HasPrefix(text, "0O"):
		u, e := strconv.ParseUint(text[2:], 8, 64)
		val, perr = int64(u), e
	default:
		u, e := strconv.ParseUint(text, 10, 64)
		val, perr = int64(u), e
	}
	if perr != nil {
		return 0, 0, newErr(SyntaxError, span, "invalid integer literal '%s'", lit.text)
	}
	kind, ok := ParseIntKindSuffix(lit.suffix)
	if !ok {
		return 0, 0, newErr(SyntaxError, span, "unrecognized integer suffix '%s'", lit.suffix)
	}
	if err := CheckOverflow(val, kind, span); err != nil {
		return 0, 0, err
	}
	return val, kind, nil
}

// unescapeStringLiteral processes escape sequences (spec §4.1): \n \t \r \\
// \' \" \b \f \v \0 \xHH \uHHHH \UHHHHHHHH. Raw strings are returned
// verbatim; every other form, triple-quoted included, is escape-processed
// here.
func unescapeStringLiteral(t Token) (string, *Error) {
	meta, _ := t.Literal.(strLiteral)
	if meta.raw {
		return t.Lexeme, nil
	}
	return unescape(t.Lexeme, t.Span())
}

func unescape(s string, span Span) (string, *Error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case 'x':
			if i+2 < len(s) {
				v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
				if err == nil {
					sb.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			return "", newErr(SyntaxError, span, "invalid \\x escape")
		case 'u':
			if i+4 < len(s) {
				v, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
				if err == nil {
					sb.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			return "", newErr(SyntaxError, span, "invalid \\u escape")
		case 'U':
			if i+8 < len(s) {
				v, err := strconv.ParseUint(s[i+1:i+9], 16, 32)
				if err == nil {
					sb.WriteRune(rune(v))
					i += 8
					continue
				}
			}
			return "", newErr(SyntaxError, span, "invalid \\U escape")
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), nil
}

// parseFStringParts splits an f-string's raw content into literal chunks
// and embedded-expression source slices delimited by `{` `}` (spec §4.5:
// "each embedded expression is re-parsed as an expression"). The caller
// (evaluator) re-parses each ExprSrc at evaluation time.
func parseFStringParts(t Token) ([]FStringPart, *Error) {
	s := t.Lexeme
	var parts []FStringPart
	var lit strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '{' {
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			if lit.Len() > 0 {
				unescaped, err := unescape(lit.String(), t.Span())
				if err != nil {
					return nil, err
				}
				parts = append(parts, FStringPart{Literal: unescaped})
				lit.Reset()
			}
			depth := 1
			start := i + 1
			j := start
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						break
					}
				}
				if depth > 0 {
					j++
				}
			}
			if depth != 0 {
				return nil, newErr(SyntaxError, t.Span(), "unterminated f-string expression")
			}
			parts = append(parts, FStringPart{IsExpr: true, ExprSrc: s[start:j]})
			i = j + 1
			continue
		}
		if c == '}' && i+1 < len(s) && s[i+1] == '}' {
			lit.WriteByte('}')
			i += 2
			continue
		}
		lit.WriteByte(c)
		i++
	}
	if lit.Len() > 0 {
		unescaped, err := unescape(lit.String(), t.Span())
		if err != nil {
			return nil, err
		}
		parts = append(parts, FStringPart{Literal: unescaped})
	}
	return parts, nil
}
