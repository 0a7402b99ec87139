package parser

import "github.com/writewhisker/whisker-core/diagnostics"

// PassageDecl is a parsed `:: Name [tags]` section plus its content.
type PassageDecl struct {
	ID          string
	DisplayName string
	Tags        []string
	Content     []Node
	OnEnter     Expr
	OnExit      Expr
	Span        diagnostics.Span
}

// Document is the root of a parsed WhiskerScript source file.
type Document struct {
	Passages []*PassageDecl
}
