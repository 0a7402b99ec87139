// Package lexer tokenizes WhiskerScript source into a span-tagged token
// stream, per spec §4.2.
package lexer

import "github.com/writewhisker/whisker-core/diagnostics"

// Kind enumerates the token types produced by the Lexer.
type Kind int

const (
	EOF Kind = iota
	Error

	Newline

	PassageHeader // ::
	MetaMarker    // @@
	ChoiceMarker  // +
	AssignMarker  // ~
	Arrow         // ->
	LBrace        // {
	RBrace        // }
	LBracket      // [
	RBracket      // ]
	LParen        // (
	RParen        // )
	Comma         // ,
	Pipe          // |
	Dollar        // $

	Bold      // **
	Italic    // *
	Strike    // ~~
	Code      // `
	FenceOpen // ```lang
	Blockquote
	ListBullet
	ListOrdered
	HorizontalRule

	Ident
	Number
	String

	KeywordIf
	KeywordElse
	KeywordElsif
	KeywordEndif
	KeywordFor
	KeywordEndfor
	KeywordIn
	KeywordTrue
	KeywordFalse
	KeywordNil
	KeywordAnd
	KeywordOr
	KeywordNot
	KeywordContains

	OpPlus
	OpMinus
	OpStar
	OpSlash
	OpPercent
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAssign

	Text // any run of literal prose outside a recognized construct
)

var keywords = map[string]Kind{
	"if":       KeywordIf,
	"else":     KeywordElse,
	"elsif":    KeywordElsif,
	"endif":    KeywordEndif,
	"for":      KeywordFor,
	"endfor":   KeywordEndfor,
	"in":       KeywordIn,
	"true":     KeywordTrue,
	"false":    KeywordFalse,
	"nil":      KeywordNil,
	"and":      KeywordAnd,
	"or":       KeywordOr,
	"not":      KeywordNot,
	"contains": KeywordContains,
}

// Token is a single lexical unit with its source span.
type Token struct {
	Kind    Kind
	Literal string
	Span    diagnostics.Span
}
