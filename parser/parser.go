package parser

import (
	"strconv"
	"strings"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/lexer"
)

// Parser is a recursive-descent parser over a lexer.Token stream.
type Parser struct {
	file   *diagnostics.File
	toks   []lexer.Token
	pos    int
	diags  []diagnostics.Diagnostic
}

// New constructs a Parser from a tokenized file.
func New(file *diagnostics.File, toks []lexer.Token) *Parser {
	return &Parser{file: file, toks: toks}
}

// Diagnostics returns diagnostics accumulated while parsing.
func (p *Parser) Diagnostics() []diagnostics.Diagnostic { return p.diags }

// ParseExpr parses toks as a single standalone expression rather than a
// full passage document. Format adapters (spec §4.6) reuse WhiskerScript's
// expression grammar this way after translating a dialect's own operator
// spellings (e.g. Harlowe's `is`/`is not`) into WhiskerScript's `==`/`!=`.
func ParseExpr(file *diagnostics.File, toks []lexer.Token) (Expr, []diagnostics.Diagnostic) {
	p := New(file, toks)
	p.skipNewlines()
	expr := p.parseExpr()
	return expr, p.diags
}

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(offset int) lexer.Token {
	i := p.pos + offset
	if i >= len(p.toks) || i < 0 {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) accept(k lexer.Kind) (lexer.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *Parser) errorf(code diagnostics.Code, tok lexer.Token, msg string) {
	p.diags = append(p.diags, diagnostics.Diagnostic{
		Code:        code,
		Severity:    diagnostics.SeverityError,
		Message:     msg,
		PrimarySpan: &diagnostics.Location{Path: p.file.Path, Span: tok.Span},
	})
}

func (p *Parser) skipNewlines() {
	for p.check(lexer.Newline) {
		p.advance()
	}
}

// Parse consumes the whole token stream and returns the document plus any
// diagnostics gathered along the way.
func (p *Parser) Parse() (*Document, []diagnostics.Diagnostic) {
	doc := &Document{}
	p.skipNewlines()
	for !p.check(lexer.EOF) {
		if p.check(lexer.PassageHeader) {
			doc.Passages = append(doc.Passages, p.parsePassage())
		} else {
			// Content before any `::` header has no passage to attach to;
			// synchronize past it.
			tok := p.advance()
			p.errorf(diagnostics.CodeMalformedHeader, tok, "content outside of a passage header is ignored")
		}
		p.skipNewlines()
	}
	return doc, p.diags
}

func (p *Parser) parsePassage() *PassageDecl {
	header := p.advance() // consume '::'
	name := p.parseHeaderName()
	tags := p.parseHeaderTags()
	p.skipToEndOfLine()
	start := header.Span
	body := p.parseBlock(lexer.PassageHeader)
	end := start
	if len(body) > 0 {
		end = body[len(body)-1].Span()
	}
	return &PassageDecl{
		ID:          name,
		DisplayName: name,
		Tags:        tags,
		Content:     body,
		Span:        start.Merge(end),
	}
}

func (p *Parser) parseHeaderName() string {
	var b strings.Builder
	for !p.check(lexer.Newline) && !p.check(lexer.EOF) && !p.check(lexer.LBracket) {
		t := p.advance()
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Literal)
	}
	return strings.TrimSpace(b.String())
}

func (p *Parser) parseHeaderTags() []string {
	if !p.check(lexer.LBracket) {
		return nil
	}
	p.advance()
	var tags []string
	for !p.check(lexer.RBracket) && !p.check(lexer.Newline) && !p.check(lexer.EOF) {
		t := p.advance()
		if t.Kind == lexer.Comma {
			continue
		}
		tags = append(tags, t.Literal)
	}
	p.accept(lexer.RBracket)
	return tags
}

func (p *Parser) skipToEndOfLine() {
	for !p.check(lexer.Newline) && !p.check(lexer.EOF) {
		p.advance()
	}
}

// parseBlock parses content nodes until EOF or a token of stopKind is
// encountered at this nesting level (the stop token is not consumed).
func (p *Parser) parseBlock(stop ...lexer.Kind) []Node {
	var nodes []Node
	for {
		p.skipNewlines()
		if p.check(lexer.EOF) || p.isStop(stop) {
			return nodes
		}
		n := p.parseContentNode()
		if n != nil {
			nodes = append(nodes, n)
		}
	}
}

func (p *Parser) isStop(stop []lexer.Kind) bool {
	for _, k := range stop {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) parseContentNode() Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.ChoiceMarker:
		return p.parseChoice()
	case lexer.AssignMarker:
		return p.parseAssignment()
	case lexer.Arrow:
		return p.parseDivert()
	case lexer.LBrace:
		return p.parseBrace()
	case lexer.Blockquote:
		return p.parseBlockquote()
	case lexer.ListBullet:
		return p.parseListItem(false)
	case lexer.ListOrdered:
		return p.parseListItem(true)
	case lexer.HorizontalRule:
		p.advance()
		return &HorizontalRule{nodeBase{tok.Span}}
	case lexer.FenceOpen:
		return p.parseFence()
	case lexer.Bold:
		return p.parseInlineFormat(lexer.Bold, FormatBold)
	case lexer.Italic:
		return p.parseInlineFormat(lexer.Italic, FormatItalic)
	case lexer.Strike:
		return p.parseInlineFormat(lexer.Strike, FormatStrike)
	case lexer.Code:
		return p.parseInlineFormat(lexer.Code, FormatCode)
	case lexer.Error:
		p.advance()
		return &Warning{nodeBase{tok.Span}, "lexer error: " + tok.Literal}
	default:
		return p.parsePlainText()
	}
}

// plainTextBoundary is the set of token kinds that end a run of plain text.
func isPlainTextBoundary(k lexer.Kind) bool {
	switch k {
	case lexer.ChoiceMarker, lexer.AssignMarker, lexer.Arrow, lexer.LBrace,
		lexer.Blockquote, lexer.ListBullet, lexer.ListOrdered, lexer.HorizontalRule,
		lexer.FenceOpen, lexer.Bold, lexer.Italic, lexer.Strike, lexer.Code,
		lexer.Newline, lexer.EOF, lexer.PassageHeader, lexer.Error:
		return true
	}
	return false
}

// parsePlainText reconstructs literal prose verbatim from the source
// buffer (rather than re-joining token literals, which would lose
// whitespace) across a run of non-boundary tokens.
func (p *Parser) parsePlainText() Node {
	start := p.cur().Span.Start
	startOffset := start.Offset
	last := p.cur().Span.End
	for !isPlainTextBoundary(p.cur().Kind) {
		last = p.advance().Span.End
	}
	if last.Offset <= startOffset {
		// Always make forward progress even on an unexpected boundary.
		tok := p.advance()
		return &Warning{nodeBase{tok.Span}, "unexpected token"}
	}
	text := p.file.Content[startOffset:last.Offset]
	return &Text{nodeBase{diagnostics.Span{Start: start, End: last}}, text, nil, ""}
}

func (p *Parser) parseInlineFormat(closeKind lexer.Kind, flag FormatFlag) Node {
	open := p.advance()
	start := open.Span.Start
	var b strings.Builder
	for !p.check(closeKind) && !p.check(lexer.Newline) && !p.check(lexer.EOF) {
		t := p.advance()
		b.WriteString(t.Literal)
	}
	end := p.cur().Span.End
	if _, ok := p.accept(closeKind); !ok {
		p.errorf(diagnostics.CodeUnclosedBlock, open, "unclosed inline formatting marker")
	}
	return &Text{nodeBase{diagnostics.Span{Start: start, End: end}}, b.String(), []FormatFlag{flag}, ""}
}

func (p *Parser) parseFence() Node {
	open := p.advance() // FenceOpen token carries the language in Literal
	lang := open.Literal
	var b strings.Builder
	for {
		if p.check(lexer.EOF) {
			p.errorf(diagnostics.CodeUnclosedBlock, open, "unterminated fenced code block")
			break
		}
		if p.check(lexer.FenceOpen) {
			p.advance()
			break
		}
		t := p.advance()
		if t.Kind == lexer.Newline {
			b.WriteByte('\n')
		} else {
			b.WriteString(t.Literal)
		}
	}
	return &Text{nodeBase{open.Span}, strings.TrimRight(b.String(), "\n"), []FormatFlag{FormatCodeBlock}, lang}
}

func (p *Parser) parseBlockquote() Node {
	tok := p.advance()
	depth := len(tok.Literal)
	body := p.parseBlock(lexer.Newline)
	return &Blockquote{nodeBase{tok.Span}, depth, body}
}

func (p *Parser) parseListItem(ordered bool) Node {
	tok := p.advance()
	body := p.parseBlock(lexer.Newline)
	return &ListItem{nodeBase{tok.Span}, ordered, body}
}

func (p *Parser) parseDivert() Node {
	tok := p.advance()
	target := p.readIdentLine()
	return &Divert{nodeBase{tok.Span}, target}
}

// readIdentLine reads tokens to the end of the line and joins their
// literals with single spaces, used for divert/choice targets.
func (p *Parser) readIdentLine() string {
	var parts []string
	for !p.check(lexer.Newline) && !p.check(lexer.EOF) && !p.check(lexer.LBrace) && !p.check(lexer.RBrace) {
		parts = append(parts, p.advance().Literal)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (p *Parser) parseAssignment() Node {
	tok := p.advance()
	p.accept(lexer.Dollar)
	nameTok, _ := p.accept(lexer.Ident)
	p.accept(lexer.OpAssign)
	expr := p.parseExpr()
	return &Assignment{nodeBase{tok.Span}, nameTok.Literal, expr}
}

// parseBrace dispatches on the keyword following '{' to interpolation,
// print, conditional, for-each, or an inline named hook.
func (p *Parser) parseBrace() Node {
	open := p.advance() // '{'
	switch p.cur().Kind {
	case lexer.KeywordIf:
		return p.parseConditional(open)
	case lexer.KeywordFor:
		return p.parseForEach(open)
	case lexer.Ident:
		if p.cur().Literal == "print" {
			p.advance()
			expr := p.parseExpr()
			p.accept(lexer.RBrace)
			return &Print{nodeBase{open.Span}, expr}
		}
		if p.cur().Literal == "hook" {
			return p.parseNamedHook(open)
		}
	}
	expr := p.parseExpr()
	p.accept(lexer.RBrace)
	return &Interpolation{nodeBase{open.Span}, expr}
}

func (p *Parser) parseNamedHook(open lexer.Token) Node {
	p.advance() // 'hook'
	nameTok, _ := p.accept(lexer.String)
	visible := true
	if p.check(lexer.Ident) && p.cur().Literal == "hidden" {
		p.advance()
		visible = false
	}
	p.accept(lexer.RBrace)
	body := p.parseBlock(lexer.LBrace)
	// consume `{endhook}` if present
	if p.check(lexer.LBrace) && p.at(1).Kind == lexer.Ident && p.at(1).Literal == "endhook" {
		p.advance()
		p.advance()
		p.accept(lexer.RBrace)
	}
	return &NamedHook{nodeBase{open.Span}, nameTok.Literal, visible, body}
}

func (p *Parser) parseConditional(open lexer.Token) Node {
	p.advance() // 'if'
	cond := p.parseExpr()
	p.accept(lexer.RBrace)
	then := p.parseBlock(lexer.LBrace)

	cond2 := &Conditional{nodeBase: nodeBase{open.Span}, Cond: cond, Then: then}
	for p.check(lexer.LBrace) && p.at(1).Kind == lexer.KeywordElsif {
		p.advance()
		p.advance()
		c := p.parseExpr()
		p.accept(lexer.RBrace)
		body := p.parseBlock(lexer.LBrace)
		cond2.Elsif = append(cond2.Elsif, CondBranch{Cond: c, Body: body})
	}
	if p.check(lexer.LBrace) && p.at(1).Kind == lexer.KeywordElse {
		p.advance()
		p.advance()
		p.accept(lexer.RBrace)
		cond2.Else = p.parseBlock(lexer.LBrace)
		cond2.HasElse = true
	}
	if p.check(lexer.LBrace) && p.at(1).Kind == lexer.KeywordEndif {
		p.advance()
		p.advance()
		p.accept(lexer.RBrace)
	} else {
		p.errorf(diagnostics.CodeUnclosedBlock, open, "conditional missing {endif}")
	}
	return cond2
}

func (p *Parser) parseForEach(open lexer.Token) Node {
	p.advance() // 'for'
	binderTok, _ := p.accept(lexer.Ident)
	p.accept(lexer.KeywordIn)
	coll := p.parseExpr()
	p.accept(lexer.RBrace)
	body := p.parseBlock(lexer.LBrace)
	if p.check(lexer.LBrace) && p.at(1).Kind == lexer.KeywordEndfor {
		p.advance()
		p.advance()
		p.accept(lexer.RBrace)
	} else {
		p.errorf(diagnostics.CodeUnclosedBlock, open, "for-each missing {endfor}")
	}
	return &ForEach{nodeBase{open.Span}, binderTok.Literal, coll, body}
}

// parseChoice parses `+ [text] -> Target`, `+ [text] { body }`, and the
// guarded inline form `+ [text] { if cond -> Target }`.
func (p *Parser) parseChoice() Node {
	tok := p.advance() // '+'
	p.accept(lexer.LBracket)
	text := p.readUntil(lexer.RBracket)
	p.accept(lexer.RBracket)

	c := &Choice{nodeBase: nodeBase{tok.Span}, Text: text}
	switch {
	case p.check(lexer.Arrow):
		p.advance()
		c.TargetID = p.readIdentLine()
		c.HasTarget = true
	case p.check(lexer.LBrace):
		p.advance()
		if p.check(lexer.KeywordIf) {
			p.advance()
			c.Guard = p.parseExpr()
			p.accept(lexer.Arrow)
			c.TargetID = p.readIdentLine()
			c.HasTarget = true
			if p.check(lexer.RBrace) {
				p.advance()
			}
		} else {
			c.InlineBody = p.parseBlock(lexer.RBrace)
			p.accept(lexer.RBrace)
		}
	}
	return c
}

func (p *Parser) readUntil(stop lexer.Kind) string {
	var b strings.Builder
	for !p.check(stop) && !p.check(lexer.Newline) && !p.check(lexer.EOF) {
		t := p.advance()
		b.WriteString(t.Literal)
		if t.Kind == lexer.Ident || t.Kind == lexer.Number {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// ---- Expression grammar ----

func (p *Parser) parseExpr() Expr { return p.parseOr() }

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for p.check(lexer.KeywordOr) {
		tok := p.advance()
		right := p.parseAnd()
		left = &LogicalOp{exprBase{tok.Span}, LogicalOr, left, right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseNot()
	for p.check(lexer.KeywordAnd) {
		tok := p.advance()
		right := p.parseNot()
		left = &LogicalOp{exprBase{tok.Span}, LogicalAnd, left, right}
	}
	return left
}

func (p *Parser) parseNot() Expr {
	if p.check(lexer.KeywordNot) {
		tok := p.advance()
		operand := p.parseNot()
		return &UnaryOp{exprBase{tok.Span}, UnaryNot, operand}
	}
	return p.parseComparison()
}

var comparisonOps = map[lexer.Kind]BinaryOperator{
	lexer.OpEq:  OpEq,
	lexer.OpNeq: OpNeq,
	lexer.OpLt:  OpLt,
	lexer.OpLte: OpLte,
	lexer.OpGt:  OpGt,
	lexer.OpGte: OpGte,
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for {
		if op, ok := comparisonOps[p.cur().Kind]; ok {
			tok := p.advance()
			right := p.parseAdditive()
			left = &BinaryOp{exprBase{tok.Span}, op, left, right}
			continue
		}
		if p.check(lexer.KeywordContains) {
			tok := p.advance()
			right := p.parseAdditive()
			left = &BinaryOp{exprBase{tok.Span}, OpContains, left, right}
			continue
		}
		if p.check(lexer.KeywordIn) {
			tok := p.advance()
			right := p.parseAdditive()
			left = &BinaryOp{exprBase{tok.Span}, OpIn, left, right}
			continue
		}
		break
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.check(lexer.OpPlus) || p.check(lexer.OpMinus) {
		tok := p.advance()
		op := OpAdd
		if tok.Kind == lexer.OpMinus {
			op = OpSub
		}
		right := p.parseMultiplicative()
		left = &BinaryOp{exprBase{tok.Span}, op, left, right}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.check(lexer.OpStar) || p.check(lexer.OpSlash) || p.check(lexer.OpPercent) || p.check(lexer.Italic) {
		tok := p.advance()
		op := OpMul
		switch tok.Kind {
		case lexer.OpSlash:
			op = OpDiv
		case lexer.OpPercent:
			op = OpMod
		}
		right := p.parseUnary()
		left = &BinaryOp{exprBase{tok.Span}, op, left, right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(lexer.OpMinus) {
		tok := p.advance()
		operand := p.parseUnary()
		return &UnaryOp{exprBase{tok.Span}, UnaryNeg, operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Number:
		p.advance()
		n, _ := strconv.ParseFloat(tok.Literal, 64)
		return &Literal{exprBase{tok.Span}, LitNumber, false, n, "", nil, nil}
	case lexer.String:
		p.advance()
		return &Literal{exprBase{tok.Span}, LitString, false, 0, tok.Literal, nil, nil}
	case lexer.KeywordTrue:
		p.advance()
		return &Literal{exprBase{tok.Span}, LitBool, true, 0, "", nil, nil}
	case lexer.KeywordFalse:
		p.advance()
		return &Literal{exprBase{tok.Span}, LitBool, false, 0, "", nil, nil}
	case lexer.KeywordNil:
		p.advance()
		return &Literal{exprBase{tok.Span}, LitNil, false, 0, "", nil, nil}
	case lexer.Dollar:
		p.advance()
		nameTok, _ := p.accept(lexer.Ident)
		return &VariableRef{exprBase{tok.Span}, nameTok.Literal}
	case lexer.Ident:
		name := tok
		p.advance()
		if p.check(lexer.LParen) {
			p.advance()
			var args []Expr
			for !p.check(lexer.RParen) && !p.check(lexer.EOF) {
				args = append(args, p.parseExpr())
				if p.check(lexer.Comma) {
					p.advance()
				}
			}
			p.accept(lexer.RParen)
			return &FunctionCall{exprBase{tok.Span}, name.Literal, args}
		}
		return &VariableRef{exprBase{tok.Span}, name.Literal}
	case lexer.LParen:
		p.advance()
		e := p.parseExpr()
		p.accept(lexer.RParen)
		return e
	case lexer.LBracket:
		p.advance()
		var items []Expr
		for !p.check(lexer.RBracket) && !p.check(lexer.EOF) {
			items = append(items, p.parseExpr())
			if p.check(lexer.Comma) {
				p.advance()
			}
		}
		p.accept(lexer.RBracket)
		return &ArrayLiteral{exprBase{tok.Span}, items}
	case lexer.LBrace:
		p.advance()
		var pairs []MapPair
		for !p.check(lexer.RBrace) && !p.check(lexer.EOF) {
			keyTok := p.advance()
			p.accept(lexer.Pipe)
			val := p.parseExpr()
			pairs = append(pairs, MapPair{Key: keyTok.Literal, Value: val})
			if p.check(lexer.Comma) {
				p.advance()
			}
		}
		p.accept(lexer.RBrace)
		return &MapLiteral{exprBase{tok.Span}, pairs}
	default:
		p.errorf(diagnostics.CodeUnexpectedToken, tok, "expected an expression")
		if !p.check(lexer.EOF) {
			p.advance()
		}
		return &Literal{exprBase{tok.Span}, LitNil, false, 0, "", nil, nil}
	}
}
