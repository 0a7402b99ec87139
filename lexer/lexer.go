package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/writewhisker/whisker-core/diagnostics"
)

// Lexer tokenizes a WhiskerScript SourceFile. It never aborts the stream:
// unrecognized bytes produce an Error token plus a WSK0001 diagnostic and
// scanning continues (spec §4.2).
type Lexer struct {
	file *diagnostics.File
	src  string
	pos  diagnostics.Position

	atLineStart bool
	diags       []diagnostics.Diagnostic
}

// New constructs a Lexer over file.
func New(file *diagnostics.File) *Lexer {
	return &Lexer{
		file:        file,
		src:         file.Content,
		pos:         diagnostics.Position{Line: 1, Column: 1, Offset: 0},
		atLineStart: true,
	}
}

// Diagnostics returns diagnostics accumulated while lexing.
func (l *Lexer) Diagnostics() []diagnostics.Diagnostic { return l.diags }

// Tokenize runs the lexer to completion and returns the full token stream,
// terminated by an EOF token.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func (l *Lexer) peek() (rune, int) {
	if l.pos.Offset >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos.Offset:])
	return r, size
}

func (l *Lexer) peekAt(offset int) (rune, int) {
	if l.pos.Offset+offset >= len(l.src) {
		return 0, 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos.Offset+offset:])
	return r, size
}

func (l *Lexer) advance() rune {
	r, size := l.peek()
	if size == 0 {
		return 0
	}
	l.pos = l.pos.Advance(r)
	if r == '\n' {
		l.atLineStart = true
	}
	return r
}

func (l *Lexer) loc(start diagnostics.Position) diagnostics.Span {
	return diagnostics.Span{Start: start, End: l.pos}
}

func (l *Lexer) emitErr(start diagnostics.Position, msg string) {
	l.emitErrCode(start, diagnostics.CodeUnexpectedChar, msg)
}

func (l *Lexer) emitErrCode(start diagnostics.Position, code diagnostics.Code, msg string) {
	l.diags = append(l.diags, diagnostics.Diagnostic{
		Code:        code,
		Severity:    diagnostics.SeverityError,
		Message:     msg,
		PrimarySpan: &diagnostics.Location{Path: l.file.Path, Span: l.loc(start)},
	})
}

// wasLineStart reports whether only whitespace precedes the
// current column on the current line; used to gate line-start-only tokens
// (passage headers, choice markers, list bullets, blockquotes) without
// needing a separate pre-pass.
func (l *Lexer) wasLineStart() bool {
	return l.atLineStart
}

// Next returns the next token in the stream.
func (l *Lexer) Next() Token {
	// Skip runs of horizontal whitespace (not newlines); they don't
	// generate tokens but don't clear atLineStart either.
	for {
		r, size := l.peek()
		if size == 0 {
			return Token{Kind: EOF, Span: l.loc(l.pos)}
		}
		if r == ' ' || r == '\t' || r == '\r' {
			l.advance()
			continue
		}
		break
	}

	start := l.pos
	r, size := l.peek()
	if size == 0 {
		return Token{Kind: EOF, Span: l.loc(start)}
	}

	lineStart := l.wasLineStart()

	switch {
	case r == '\n':
		l.advance()
		return Token{Kind: Newline, Literal: "\n", Span: l.loc(start)}

	case r == ':' && l.peekAtRune(1) == ':' && lineStart:
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: PassageHeader, Literal: "::", Span: l.loc(start)}

	case r == '@' && l.peekAtRune(1) == '@':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: MetaMarker, Literal: "@@", Span: l.loc(start)}

	case r == '-' && l.peekAtRune(1) == '>':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: Arrow, Literal: "->", Span: l.loc(start)}

	case r == '-' && lineStart && l.isHorizontalRule():
		l.consumeRun('-')
		l.atLineStart = false
		return Token{Kind: HorizontalRule, Literal: "---", Span: l.loc(start)}

	case r == '*' && lineStart && l.isHorizontalRule():
		l.consumeRun('*')
		l.atLineStart = false
		return Token{Kind: HorizontalRule, Literal: "***", Span: l.loc(start)}

	case r == '-' && lineStart && l.peekAtRune(1) == ' ':
		l.advance()
		l.atLineStart = false
		return Token{Kind: ListBullet, Literal: "-", Span: l.loc(start)}

	case (r == '*' || r == '0') && lineStart && r == '*' && l.peekAtRune(1) == ' ':
		l.advance()
		l.atLineStart = false
		return Token{Kind: ListBullet, Literal: "*", Span: l.loc(start)}

	case unicode.IsDigit(r) && lineStart && l.isOrderedListMarker():
		lit := l.consumeOrderedListMarker()
		l.atLineStart = false
		return Token{Kind: ListOrdered, Literal: lit, Span: l.loc(start)}

	case r == '>' && lineStart:
		depth := l.consumeRun('>')
		l.atLineStart = false
		return Token{Kind: Blockquote, Literal: strings.Repeat(">", depth), Span: l.loc(start)}

	case r == '+' && lineStart:
		l.advance()
		l.atLineStart = false
		return Token{Kind: ChoiceMarker, Literal: "+", Span: l.loc(start)}

	case r == '~' && l.peekAtRune(1) == '~':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: Strike, Literal: "~~", Span: l.loc(start)}

	case r == '~':
		l.advance()
		l.atLineStart = false
		return Token{Kind: AssignMarker, Literal: "~", Span: l.loc(start)}

	case r == '`' && l.peekAtRune(1) == '`' && l.peekAtRune(2) == '`':
		l.advance()
		l.advance()
		l.advance()
		lang := l.consumeUntilNewline()
		l.atLineStart = false
		return Token{Kind: FenceOpen, Literal: lang, Span: l.loc(start)}

	case r == '`':
		l.advance()
		l.atLineStart = false
		return Token{Kind: Code, Literal: "`", Span: l.loc(start)}

	case r == '*' && l.peekAtRune(1) == '*':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: Bold, Literal: "**", Span: l.loc(start)}

	case r == '*':
		l.advance()
		l.atLineStart = false
		return Token{Kind: Italic, Literal: "*", Span: l.loc(start)}

	case r == '{':
		l.advance()
		l.atLineStart = false
		return Token{Kind: LBrace, Literal: "{", Span: l.loc(start)}
	case r == '}':
		l.advance()
		l.atLineStart = false
		return Token{Kind: RBrace, Literal: "}", Span: l.loc(start)}
	case r == '[':
		l.advance()
		l.atLineStart = false
		return Token{Kind: LBracket, Literal: "[", Span: l.loc(start)}
	case r == ']':
		l.advance()
		l.atLineStart = false
		return Token{Kind: RBracket, Literal: "]", Span: l.loc(start)}
	case r == '(':
		l.advance()
		l.atLineStart = false
		return Token{Kind: LParen, Literal: "(", Span: l.loc(start)}
	case r == ')':
		l.advance()
		l.atLineStart = false
		return Token{Kind: RParen, Literal: ")", Span: l.loc(start)}
	case r == ',':
		l.advance()
		l.atLineStart = false
		return Token{Kind: Comma, Literal: ",", Span: l.loc(start)}
	case r == '|':
		l.advance()
		l.atLineStart = false
		return Token{Kind: Pipe, Literal: "|", Span: l.loc(start)}
	case r == '$':
		l.advance()
		l.atLineStart = false
		return Token{Kind: Dollar, Literal: "$", Span: l.loc(start)}

	case r == '=' && l.peekAtRune(1) == '=':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpEq, Literal: "==", Span: l.loc(start)}
	case r == '!' && l.peekAtRune(1) == '=':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpNeq, Literal: "!=", Span: l.loc(start)}
	case r == '<' && l.peekAtRune(1) == '=':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpLte, Literal: "<=", Span: l.loc(start)}
	case r == '>' && l.peekAtRune(1) == '=':
		l.advance()
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpGte, Literal: ">=", Span: l.loc(start)}
	case r == '<':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpLt, Literal: "<", Span: l.loc(start)}
	case r == '>':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpGt, Literal: ">", Span: l.loc(start)}
	case r == '=':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpAssign, Literal: "=", Span: l.loc(start)}
	case r == '+':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpPlus, Literal: "+", Span: l.loc(start)}
	case r == '-':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpMinus, Literal: "-", Span: l.loc(start)}
	case r == '/':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpSlash, Literal: "/", Span: l.loc(start)}
	case r == '%':
		l.advance()
		l.atLineStart = false
		return Token{Kind: OpPercent, Literal: "%", Span: l.loc(start)}

	case r == '"':
		return l.lexString(start)

	case unicode.IsDigit(r):
		return l.lexNumber(start)

	case isIdentStart(r):
		return l.lexIdent(start)

	default:
		return l.lexText(start)
	}
}

func (l *Lexer) peekAtRune(n int) rune {
	off := 0
	for i := 0; i < n; i++ {
		_, size := l.peekAt(off)
		if size == 0 {
			return 0
		}
		off += size
	}
	r, size := l.peekAt(off)
	if size == 0 {
		return 0
	}
	return r
}

func (l *Lexer) consumeRun(ch rune) int {
	n := 0
	for {
		r, size := l.peek()
		if size == 0 || r != ch {
			break
		}
		l.advance()
		n++
	}
	return n
}

// isHorizontalRule reports whether the current position begins a run of
// 3+ of the current rune that (ignoring trailing spaces) ends the line.
func (l *Lexer) isHorizontalRule() bool {
	ch, _ := l.peek()
	off := 0
	count := 0
	for {
		r, size := l.peekAt(off)
		if size == 0 {
			break
		}
		if r == ch {
			count++
			off += size
			continue
		}
		if r == ' ' || r == '\t' {
			off += size
			continue
		}
		break
	}
	if count < 3 {
		return false
	}
	r, _ := l.peekAt(off)
	return r == '\n' || r == 0
}

func (l *Lexer) isOrderedListMarker() bool {
	off := 0
	for {
		r, size := l.peekAt(off)
		if size == 0 || !unicode.IsDigit(r) {
			break
		}
		off += size
	}
	if off == 0 {
		return false
	}
	r, size := l.peekAt(off)
	return size > 0 && r == '.'
}

func (l *Lexer) consumeOrderedListMarker() string {
	var b strings.Builder
	for {
		r, size := l.peek()
		if size == 0 || !unicode.IsDigit(r) {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	b.WriteRune('.')
	l.advance() // consume '.'
	return b.String()
}

func (l *Lexer) consumeUntilNewline() string {
	var b strings.Builder
	for {
		r, size := l.peek()
		if size == 0 || r == '\n' {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	return strings.TrimSpace(b.String())
}

func (l *Lexer) lexString(start diagnostics.Position) Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		r, size := l.peek()
		if size == 0 {
			l.emitErrCode(start, diagnostics.CodeUnterminatedString, "unterminated string literal")
			return Token{Kind: Error, Literal: b.String(), Span: l.loc(start)}
		}
		if r == '"' {
			l.advance()
			break
		}
		if r == '\\' {
			l.advance()
			esc, escSize := l.peek()
			if escSize == 0 {
				break
			}
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '"':
				b.WriteRune('"')
			case '\\':
				b.WriteRune('\\')
			default:
				b.WriteRune(esc)
			}
			l.advance()
			continue
		}
		b.WriteRune(r)
		l.advance()
	}
	l.atLineStart = false
	return Token{Kind: String, Literal: b.String(), Span: l.loc(start)}
}

func (l *Lexer) lexNumber(start diagnostics.Position) Token {
	var b strings.Builder
	seenDot := false
	for {
		r, size := l.peek()
		if size == 0 {
			break
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			l.advance()
			continue
		}
		if r == '.' && !seenDot {
			nxt := l.peekAtRune(1)
			if !unicode.IsDigit(nxt) {
				break
			}
			seenDot = true
			b.WriteRune(r)
			l.advance()
			continue
		}
		break
	}
	l.atLineStart = false
	return Token{Kind: Number, Literal: b.String(), Span: l.loc(start)}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *Lexer) lexIdent(start diagnostics.Position) Token {
	var b strings.Builder
	for {
		r, size := l.peek()
		if size == 0 || !isIdentCont(r) {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	l.atLineStart = false
	name := b.String()
	if kind, ok := keywords[name]; ok {
		return Token{Kind: kind, Literal: name, Span: l.loc(start)}
	}
	return Token{Kind: Ident, Literal: name, Span: l.loc(start)}
}

// lexText accumulates a run of plain prose up to the next recognized
// construct or newline. A single genuinely unrecognized control byte
// (e.g. a stray NUL) is reported as WSK0001 and replaced by an Error
// token, per spec §4.2 ("never aborts the stream").
func (l *Lexer) lexText(start diagnostics.Position) Token {
	r, _ := l.peek()
	if r < 0x20 && r != '\t' {
		l.emitErr(start, "unexpected control character in source")
		l.advance()
		l.atLineStart = false
		return Token{Kind: Error, Literal: string(r), Span: l.loc(start)}
	}

	var b strings.Builder
	for {
		r, size := l.peek()
		if size == 0 || r == '\n' || isTextBoundary(r) {
			break
		}
		b.WriteRune(r)
		l.advance()
	}
	if b.Len() == 0 {
		// A boundary rune that no case above consumed (e.g. a lone ':',
		// '!' or '@'): skip it so the lexer makes progress; the returned
		// Text token has an empty literal and its span covers that rune.
		l.advance()
	}
	l.atLineStart = false
	return Token{Kind: Text, Literal: b.String(), Span: l.loc(start)}
}

func isTextBoundary(r rune) bool {
	switch r {
	case '*', '`', '~', '{', '}', '[', ']', '(', ')', ',', '|', '$', '"',
		'=', '!', '<', '>', '+', '-', '/', '%', '@', ':':
		return true
	}
	return isIdentStart(r) || unicode.IsDigit(r)
}
