package parser

import "github.com/writewhisker/whisker-core/diagnostics"

// FormatFlag tags inline text formatting, per spec §3.
type FormatFlag string

const (
	FormatBold      FormatFlag = "bold"
	FormatItalic    FormatFlag = "italic"
	FormatStrike    FormatFlag = "strike"
	FormatCode      FormatFlag = "code"
	FormatCodeBlock FormatFlag = "codeblock"
)

// Node is implemented by every content AST node variant from spec §3.
type Node interface {
	nodeType()
	Span() diagnostics.Span
}

type nodeBase struct {
	span diagnostics.Span
}

func (nodeBase) nodeType() {}
func (n nodeBase) Span() diagnostics.Span { return n.span }

// Text is Text(literal, format_flags).
type Text struct {
	nodeBase
	Literal string
	Flags   []FormatFlag
	Lang    string // only meaningful when Flags contains FormatCodeBlock
}

// Blockquote is Blockquote(depth, body).
type Blockquote struct {
	nodeBase
	Depth int
	Body  []Node
}

// ListItem is ListItem(ordered, body).
type ListItem struct {
	nodeBase
	Ordered bool
	Body    []Node
}

// HorizontalRule is HorizontalRule.
type HorizontalRule struct{ nodeBase }

// Interpolation is Interpolation(expr).
type Interpolation struct {
	nodeBase
	Expr Expr
}

// CondBranch is one `elsif` arm of a Conditional.
type CondBranch struct {
	Cond Expr
	Body []Node
}

// Conditional is Conditional(cond_expr, then_body, elsif, else_body?).
type Conditional struct {
	nodeBase
	Cond     Expr
	Then     []Node
	Elsif    []CondBranch
	Else     []Node
	HasElse  bool
}

// ForEach is ForEach(binder, collection_expr, body).
type ForEach struct {
	nodeBase
	Binder     string
	Collection Expr
	Body       []Node
}

// Assignment is Assignment(var, expr).
type Assignment struct {
	nodeBase
	Var  string
	Expr Expr
}

// Print is Print(expr).
type Print struct {
	nodeBase
	Expr Expr
}

// Choice is Choice(text, target_id?, inline_body, guard_expr?, action_script?).
type Choice struct {
	nodeBase
	Text        string
	TargetID    string // empty when the choice has an inline body instead
	HasTarget   bool
	InlineBody  []Node
	Guard       Expr // nil when unconditional
	Action      Expr // nil when the choice has no action script
	Metadata    map[string]string
}

// Divert is Divert(target_id).
type Divert struct {
	nodeBase
	TargetID string
}

// NamedHook is NamedHook(name, visible, body).
type NamedHook struct {
	nodeBase
	Name    string
	Visible bool
	Body    []Node
}

// ScriptBlock is ScriptBlock(text) — an opaque script body carried
// verbatim through import/export. The engine does not evaluate it as
// statements and renders no output for it.
type ScriptBlock struct {
	nodeBase
	Text string
}

// Warning is Warning(message) — a content node standing in for source the
// parser could not make sense of, carrying forward so compilation can
// still proceed (spec §4.4: "advisory; compilation proceeds").
type Warning struct {
	nodeBase
	Message string
}
