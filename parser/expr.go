package parser

import (
	"strconv"

	"github.com/ThomasRohde/Agent0-sub003/ast"
	"github.com/ThomasRohde/Agent0-sub003/diagnostics"
	"github.com/ThomasRohde/Agent0-sub003/lexer"
)

// parseExpr parses a level-5 expression (equality is the loosest
// binding operator; spec §4.C4 precedence table).
func (p *Parser) parseExpr() (ast.Expr, *diagnostics.Diagnostic) {
	return p.parseEquality()
}

func (p *Parser) parseEquality() (ast.Expr, *diagnostics.Diagnostic) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for isEqualityOp(p.cur().Kind) {
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Text, Left: left, Right: right, Pos: mergeSpan(left.Span(), right.Span())}
	}
	return left, nil
}

func isEqualityOp(k lexer.Kind) bool {
	switch k {
	case lexer.EQ, lexer.NEQ, lexer.GT, lexer.LT, lexer.GTE, lexer.LTE:
		return true
	}
	return false
}

func (p *Parser) parseAdditive() (ast.Expr, *diagnostics.Diagnostic) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.PLUS) || p.at(lexer.MINUS) {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Text, Left: left, Right: right, Pos: mergeSpan(left.Span(), right.Span())}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, *diagnostics.Diagnostic) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.STAR) || p.at(lexer.SLASH) || p.at(lexer.PERCENT) {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opTok.Text, Left: left, Right: right, Pos: mergeSpan(left.Span(), right.Span())}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, *diagnostics.Diagnostic) {
	if p.at(lexer.MINUS) {
		opTok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", Operand: operand, Pos: mergeSpan(p.toSpan(opTok.Span), operand.Span())}, nil
	}
	return p.parsePrimary()
}

func mergeSpan(a, b ast.Span) ast.Span {
	return ast.Span{File: a.File, StartLine: a.StartLine, StartCol: a.StartCol, EndLine: b.EndLine, EndCol: b.EndCol}
}

// parsePrimary parses level-1 expressions: literals, identPaths,
// records, lists, parens, and all keyword-led constructs.
func (p *Parser) parsePrimary() (ast.Expr, *diagnostics.Diagnostic) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.INT:
		p.advance()
		n, convErr := strconv.ParseInt(tok.Text, 10, 64)
		if convErr != nil {
			return nil, p.errf(tok, "invalid integer literal %q", tok.Text)
		}
		return &ast.IntLiteral{Value: n, Pos: p.toSpan(tok.Span)}, nil
	case lexer.FLOAT:
		p.advance()
		n, convErr := strconv.ParseFloat(tok.Text, 64)
		if convErr != nil {
			return nil, p.errf(tok, "invalid float literal %q", tok.Text)
		}
		return &ast.FloatLiteral{Value: n, Pos: p.toSpan(tok.Span)}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLiteral{Value: tok.Text, Pos: p.toSpan(tok.Span)}, nil
	case lexer.KwTrue:
		p.advance()
		return &ast.BoolLiteral{Value: true, Pos: p.toSpan(tok.Span)}, nil
	case lexer.KwFalse:
		p.advance()
		return &ast.BoolLiteral{Value: false, Pos: p.toSpan(tok.Span)}, nil
	case lexer.KwNull:
		p.advance()
		return &ast.NullLiteral{Pos: p.toSpan(tok.Span)}, nil
	case lexer.LBRACE:
		return p.parseRecordLiteral()
	case lexer.LBRACKET:
		return p.parseListLiteral()
	case lexer.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwFor:
		return p.parseForOrFilterOrLoop(lexer.KwFor)
	case lexer.KwFilter:
		return p.parseForOrFilterOrLoop(lexer.KwFilter)
	case lexer.KwLoop:
		return p.parseForOrFilterOrLoop(lexer.KwLoop)
	case lexer.KwMatch:
		return p.parseMatch()
	case lexer.KwTry:
		return p.parseTry()
	case lexer.KwAssert:
		return p.parseAssertOrCheck(lexer.KwAssert)
	case lexer.KwCheck:
		return p.parseAssertOrCheck(lexer.KwCheck)
	case lexer.KwCallOpt:
		return p.parseCallOrDo(lexer.KwCallOpt)
	case lexer.KwDo:
		return p.parseCallOrDo(lexer.KwDo)
	case lexer.IDENT:
		return p.parseIdentPathOrFnCall()
	default:
		return nil, p.errf(tok, "unexpected token %s", tok.Kind)
	}
}

// parseRecordLiteral parses `{ (key: expr | ...expr)* }`.
func (p *Parser) parseRecordLiteral() (*ast.RecordExpr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // {
	var entries []ast.RecordEntry
	for !p.at(lexer.RBRACE) {
		entryStart := p.cur().Span.Start
		if p.at(lexer.ELLIPSIS) {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			entries = append(entries, &ast.Spread{Expr: e, Pos: p.spanFrom(entryStart)})
		} else {
			keyTok, err := p.expectRecordKey()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.COLON); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			entries = append(entries, &ast.Pair{Key: keyTok, Value: v, Pos: p.spanFrom(entryStart)})
		}
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.RecordExpr{Entries: entries, Pos: p.spanFrom(start)}, nil
}

// expectRecordKey accepts an identifier or any of the contextual
// keywords the spec carves out of the reserved-word set when used as a
// record key (ok, err, in, as, cond, then, else), plus `fn`, the callback
// key of map/reduce/filter.
func (p *Parser) expectRecordKey() (string, *diagnostics.Diagnostic) {
	switch p.cur().Kind {
	case lexer.IDENT:
		return p.advance().Text, nil
	case lexer.KwAs, lexer.KwElse, lexer.KwFn:
		return p.advance().Text, nil
	default:
		if txt := contextualKeyText(p.cur()); txt != "" {
			p.advance()
			return txt, nil
		}
		return "", p.errf(p.cur(), "expected record key, got %s", p.cur().Kind)
	}
}

// contextualKeyText recognizes "ok", "err", "in", "cond", "then" as
// plain identifier text even though the lexer may have tagged them as
// IDENT already (they are not in the reserved-word table, so this is
// mostly defensive for readability of the call site).
func contextualKeyText(t lexer.Token) string {
	switch t.Text {
	case "ok", "err", "in", "cond", "then":
		return t.Text
	}
	return ""
}

func (p *Parser) parseListLiteral() (*ast.ListExpr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // [
	var elems []ast.Expr
	for !p.at(lexer.RBRACKET) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(lexer.COMMA) {
			p.advance()
		}
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.ListExpr{Elements: elems, Pos: p.spanFrom(start)}, nil
}

// parseIdentPathOrFnCall parses `name(.segment)*` and, if immediately
// followed by `{`, reinterprets it as a FnCallExpr with that record as
// its argument.
func (p *Parser) parseIdentPathOrFnCall() (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	first, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	parts := []string{first.Text}
	for p.at(lexer.DOT) {
		p.advance()
		seg, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		parts = append(parts, seg.Text)
	}
	if p.at(lexer.LBRACE) {
		args, err := p.parseRecordLiteral()
		if err != nil {
			return nil, err
		}
		return &ast.FnCallExpr{NamePath: parts, Args: args, Pos: p.spanFrom(start)}, nil
	}
	return &ast.IdentPath{Parts: parts, Pos: p.spanFrom(start)}, nil
}

// parseDottedToolPath parses `name(.segment)*` for call?/do targets.
func (p *Parser) parseDottedToolPath() ([]string, *diagnostics.Diagnostic) {
	first, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	parts := []string{first.Text}
	for p.at(lexer.DOT) {
		p.advance()
		seg, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		parts = append(parts, seg.Text)
	}
	return parts, nil
}

func (p *Parser) parseCallOrDo(kw lexer.Kind) (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // call? or do
	path, err := p.parseDottedToolPath()
	if err != nil {
		return nil, err
	}
	args, err := p.parseRecordLiteral()
	if err != nil {
		return nil, err
	}
	if kw == lexer.KwCallOpt {
		return &ast.CallExpr{ToolPath: path, Args: args, Pos: p.spanFrom(start)}, nil
	}
	return &ast.DoExpr{ToolPath: path, Args: args, Pos: p.spanFrom(start)}, nil
}

func (p *Parser) parseAssertOrCheck(kw lexer.Kind) (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // assert or check
	args, err := p.parseRecordLiteral()
	if err != nil {
		return nil, err
	}
	that, msg := extractThatMsg(args)
	if kw == lexer.KwAssert {
		return &ast.AssertExpr{That: that, Msg: msg, Pos: p.spanFrom(start)}, nil
	}
	return &ast.CheckExpr{That: that, Msg: msg, Pos: p.spanFrom(start)}, nil
}

func extractThatMsg(r *ast.RecordExpr) (that, msg ast.Expr) {
	for _, e := range r.Entries {
		pair, ok := e.(*ast.Pair)
		if !ok {
			continue
		}
		switch pair.Key {
		case "that":
			that = pair.Value
		case "msg":
			msg = pair.Value
		}
	}
	return that, msg
}

// parseIf disambiguates the record-style and block-style forms by
// looking at the token right after `if`.
func (p *Parser) parseIf() (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // if
	if p.at(lexer.LBRACE) {
		rec, err := p.parseRecordLiteral()
		if err != nil {
			return nil, err
		}
		var cond, then, els ast.Expr
		for _, e := range rec.Entries {
			pair, ok := e.(*ast.Pair)
			if !ok {
				continue
			}
			switch pair.Key {
			case "cond":
				cond = pair.Value
			case "then":
				then = pair.Value
			case "else":
				els = pair.Value
			}
		}
		return &ast.IfRecordExpr{Cond: cond, Then: then, Else: els, Pos: p.spanFrom(start)}, nil
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	hasElse := false
	var elseBody []ast.Statement
	if p.at(lexer.KwElse) {
		hasElse = true
		p.advance()
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfBlockExpr{Cond: cond, Then: thenBody, Else: elseBody, HasElse: hasElse, Pos: p.spanFrom(start)}, nil
}

// parseForOrFilterOrLoop handles `for`/`filter`/`loop`, which share the
// `KEYWORD { header } { BODY }` shape with slightly different header
// fields.
func (p *Parser) parseForOrFilterOrLoop(kw lexer.Kind) (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // keyword
	header, err := p.parseRecordLiteral()
	if err != nil {
		return nil, err
	}
	if kw == lexer.KwFilter && !p.at(lexer.LBRACE) {
		// No body: the stdlib call form `filter { list, fn | by }`.
		return &ast.FnCallExpr{NamePath: []string{"filter"}, Args: header, Pos: p.spanFrom(start)}, nil
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var listExpr, initExpr, timesExpr ast.Expr
	binding := ""
	for _, e := range header.Entries {
		pair, ok := e.(*ast.Pair)
		if !ok {
			continue
		}
		switch pair.Key {
		case "in":
			if kw == lexer.KwLoop {
				initExpr = pair.Value
			} else {
				listExpr = pair.Value
			}
		case "times":
			timesExpr = pair.Value
		case "as":
			if s, ok := pair.Value.(*ast.StringLiteral); ok {
				binding = s.Value
			}
		}
	}
	pos := p.spanFrom(start)
	switch kw {
	case lexer.KwFor:
		return &ast.ForExpr{List: listExpr, Binding: binding, Body: body, Pos: pos}, nil
	case lexer.KwFilter:
		return &ast.FilterBlockExpr{List: listExpr, Binding: binding, Body: body, Pos: pos}, nil
	default:
		return &ast.LoopExpr{Init: initExpr, Times: timesExpr, Binding: binding, Body: body, Pos: pos}, nil
	}
}

// parseMatch parses `match SUBJECT { ok { NAME } { BODY } err { NAME } { BODY } }`.
func (p *Parser) parseMatch() (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // match
	var subject ast.Expr
	var err *diagnostics.Diagnostic
	if p.at(lexer.LPAREN) {
		p.advance()
		subject, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	} else {
		start := p.cur().Span.Start
		parts, perr := p.parseDottedToolPath()
		if perr != nil {
			return nil, perr
		}
		subject = &ast.IdentPath{Parts: parts, Pos: p.spanFrom(start)}
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	var okArm, errArm *ast.MatchArm
	for p.at(lexer.IDENT) && (p.cur().Text == "ok" || p.cur().Text == "err") {
		isOk := p.cur().Text == "ok"
		armStart := p.cur().Span.Start
		p.advance() // ok/err
		if _, err := p.expect(lexer.LBRACE); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBRACE); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		arm := &ast.MatchArm{Binding: nameTok.Text, Body: body, Pos: p.spanFrom(armStart)}
		if isOk {
			okArm = arm
		} else {
			errArm = arm
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.MatchExpr{Subject: subject, OkArm: okArm, ErrArm: errArm, Pos: p.spanFrom(start)}, nil
}

// parseTry parses `try { BODY } catch { NAME } { BODY }`.
func (p *Parser) parseTry() (ast.Expr, *diagnostics.Diagnostic) {
	start := p.cur().Span.Start
	p.advance() // try
	tryBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwCatch); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	catchBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.TryExpr{TryBody: tryBody, CatchBinding: nameTok.Text, CatchBody: catchBody, Pos: p.spanFrom(start)}, nil
}
