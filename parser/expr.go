// Package parser builds the content AST and Expression AST described in
// spec §3 from a lexer.Token stream, recovering on errors (spec §4.3).
package parser

import "github.com/writewhisker/whisker-core/diagnostics"

// BinaryOperator enumerates spec §3's BinaryOp operators.
type BinaryOperator string

const (
	OpAdd      BinaryOperator = "+"
	OpSub      BinaryOperator = "-"
	OpMul      BinaryOperator = "*"
	OpDiv      BinaryOperator = "/"
	OpMod      BinaryOperator = "%"
	OpEq       BinaryOperator = "=="
	OpNeq      BinaryOperator = "!="
	OpLt       BinaryOperator = "<"
	OpLte      BinaryOperator = "<="
	OpGt       BinaryOperator = ">"
	OpGte      BinaryOperator = ">="
	OpContains BinaryOperator = "contains"
	OpIn       BinaryOperator = "in"
)

// LogicalOperator enumerates spec §3's LogicalOp operators.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// UnaryOperator enumerates spec §3's UnaryOp operators.
type UnaryOperator string

const (
	UnaryNot UnaryOperator = "not"
	UnaryNeg UnaryOperator = "-"
)

// LiteralKind tags the variant held by a Literal expression.
type LiteralKind int

const (
	LitNil LiteralKind = iota
	LitBool
	LitNumber
	LitString
	LitArray
	LitMap
)

// Expr is implemented by every Expression AST node variant from spec §3.
type Expr interface {
	exprNode()
	Span() diagnostics.Span
}

type exprBase struct {
	span diagnostics.Span
}

func (exprBase) exprNode() {}
func (e exprBase) Span() diagnostics.Span { return e.span }

// Literal is Literal(Nil|Bool|Number|String|Array|Map).
type Literal struct {
	exprBase
	Kind   LiteralKind
	Bool   bool
	Number float64
	String string
	Array  []Expr
	Map    []MapPair
}

// MapPair is one key/value pair of a MapLiteral, preserving insertion order.
type MapPair struct {
	Key   string
	Value Expr
}

// VariableRef is VariableRef(name).
type VariableRef struct {
	exprBase
	Name string
}

// BinaryOp is BinaryOp(op, left, right).
type BinaryOp struct {
	exprBase
	Op    BinaryOperator
	Left  Expr
	Right Expr
}

// LogicalOp is LogicalOp(and|or, left, right).
type LogicalOp struct {
	exprBase
	Op    LogicalOperator
	Left  Expr
	Right Expr
}

// UnaryOp is UnaryOp(not|-, operand).
type UnaryOp struct {
	exprBase
	Op      UnaryOperator
	Operand Expr
}

// FunctionCall is FunctionCall(name, args).
type FunctionCall struct {
	exprBase
	Name string
	Args []Expr
}

// ArrayLiteral is ArrayLiteral(items).
type ArrayLiteral struct {
	exprBase
	Items []Expr
}

// MapLiteral is MapLiteral(pairs).
type MapLiteral struct {
	exprBase
	Pairs []MapPair
}

// Raw is an opaque escape-hatch expression emitted with a diagnostic and
// never evaluated by the sandbox (spec §3, §9 open question b).
type Raw struct {
	exprBase
	Text            string
	OriginalDialect string
}
