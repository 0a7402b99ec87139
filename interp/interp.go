// Package interp is the sandboxed tree-walking evaluator of spec §4.9: a
// single-threaded, synchronous, non-re-entrant evaluator over the
// Expression AST with a restricted standard library and a capability-
// gated variable store. It never loads code dynamically and never
// reflects over host objects — the teacher's yaegi-backed escape hatch
// (internal/autopoiesis/yaegi_executor.go) is deliberately not reused
// here; only its allow-list shape survives, retargeted from "which Go
// packages" to "which state capabilities".
package interp

import (
	"time"

	"github.com/writewhisker/whisker-core/capability"
	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/story"
)

// State is the variable store an Interpreter evaluates VariableRefs and
// Assignments against. The engine supplies an implementation layering
// temp_variables over variables; plugins never see this interface
// directly (spec §5: "plugins mutate it only via the context").
type State interface {
	Get(name string) (story.Value, bool)
	Set(name string, v story.Value)
}

// Budget bounds one turn's evaluation, per spec §4.8/§5: instructions and
// wall-clock time, breach of either aborts the turn.
type Budget struct {
	MaxInstructions int
	Deadline        time.Time

	instructions int
}

// NewBudget constructs a Budget with the given instruction cap and
// wall-clock timeout measured from now.
func NewBudget(maxInstructions int, timeout time.Duration) *Budget {
	return &Budget{MaxInstructions: maxInstructions, Deadline: time.Now().Add(timeout)}
}

// consume charges one instruction unit and reports a breach.
func (b *Budget) consume() *rterr.Error {
	if b == nil {
		return nil
	}
	b.instructions++
	if b.MaxInstructions > 0 && b.instructions > b.MaxInstructions {
		return rterr.New(rterr.ExecutionLimit, "max_instructions exceeded")
	}
	if !b.Deadline.IsZero() && time.Now().After(b.Deadline) {
		return rterr.New(rterr.ExecutionLimit, "max_execution_time exceeded")
	}
	return nil
}

// Spent returns the number of instruction units consumed so far.
func (b *Budget) Spent() int {
	if b == nil {
		return 0
	}
	return b.instructions
}

// Interpreter evaluates Expression ASTs against a State, mediated by its
// granted capabilities and an execution Budget.
type Interpreter struct {
	caps  capability.Set
	state State
	budg  *Budget
}

// New constructs an Interpreter. caps gates variable access: reads
// require capability.StateRead, writes require capability.StateWrite. A
// nil budget means unbounded (used for compile-time constant folding,
// never for running author scripts).
func New(state State, caps capability.Set, budget *Budget) *Interpreter {
	return &Interpreter{caps: caps, state: state, budg: budget}
}

// Eval evaluates e, returning its Value, any advisory diagnostics raised
// along the way (type mismatches, division by zero, capability denials),
// and a non-nil *rterr.Error only when the execution budget is breached
// (the only runtime error that aborts rather than degrading to Nil).
func (in *Interpreter) Eval(e parser.Expr) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	if err := in.budg.consume(); err != nil {
		return story.Nil, nil, err
	}
	switch n := e.(type) {
	case *parser.Literal:
		return in.evalLiteral(n)
	case *parser.VariableRef:
		return in.evalVariableRef(n)
	case *parser.BinaryOp:
		return in.evalBinaryOp(n)
	case *parser.LogicalOp:
		return in.evalLogicalOp(n)
	case *parser.UnaryOp:
		return in.evalUnaryOp(n)
	case *parser.FunctionCall:
		return in.evalFunctionCall(n)
	case *parser.ArrayLiteral:
		return in.evalArrayLiteral(n)
	case *parser.MapLiteral:
		return in.evalMapLiteral(n)
	case *parser.Raw:
		// Raw nodes are opaque escape hatches (spec §3, §9 open question
		// b): preserved through round-trip, never executed.
		return story.Nil, []diagnostics.Diagnostic{
			diagnostics.NewWarning(diagnostics.CodeRawEscapeHatch, "raw "+n.OriginalDialect+" expression is not evaluated"),
		}, nil
	default:
		return story.Nil, []diagnostics.Diagnostic{
			diagnostics.NewWarning(diagnostics.CodeMalformedAST, "unknown expression node"),
		}, nil
	}
}

func (in *Interpreter) evalLiteral(n *parser.Literal) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	switch n.Kind {
	case parser.LitNil:
		return story.Nil, nil, nil
	case parser.LitBool:
		return story.Bool(n.Bool), nil, nil
	case parser.LitNumber:
		return story.Float(n.Number), nil, nil
	case parser.LitString:
		return story.Str(n.String), nil, nil
	case parser.LitArray:
		items := make([]story.Value, 0, len(n.Array))
		var diags []diagnostics.Diagnostic
		for _, item := range n.Array {
			v, d, err := in.Eval(item)
			diags = append(diags, d...)
			if err != nil {
				return story.Nil, diags, err
			}
			items = append(items, v)
		}
		return story.Arr(items...), diags, nil
	case parser.LitMap:
		m := story.NewMap()
		var diags []diagnostics.Diagnostic
		for _, pair := range n.Map {
			v, d, err := in.Eval(pair.Value)
			diags = append(diags, d...)
			if err != nil {
				return story.Nil, diags, err
			}
			m = m.Set(pair.Key, v)
		}
		return m, diags, nil
	default:
		return story.Nil, nil, nil
	}
}

func (in *Interpreter) evalVariableRef(n *parser.VariableRef) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	if in.caps != nil && !in.caps.Has(capability.StateRead) {
		return story.Nil, []diagnostics.Diagnostic{
			diagnostics.NewWarning(diagnostics.CodeMalformedAST, string(rterr.CapabilityDenied)+": state:read not granted"),
		}, nil
	}
	if in.state == nil {
		return story.Nil, nil, nil
	}
	v, ok := in.state.Get(n.Name)
	if !ok {
		// Missing variable reads yield Nil, not an error (spec §4.9).
		return story.Nil, nil, nil
	}
	return v, nil, nil
}

func (in *Interpreter) evalArrayLiteral(n *parser.ArrayLiteral) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	items := make([]story.Value, 0, len(n.Items))
	var diags []diagnostics.Diagnostic
	for _, item := range n.Items {
		v, d, err := in.Eval(item)
		diags = append(diags, d...)
		if err != nil {
			return story.Nil, diags, err
		}
		items = append(items, v)
	}
	return story.Arr(items...), diags, nil
}

func (in *Interpreter) evalMapLiteral(n *parser.MapLiteral) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	m := story.NewMap()
	var diags []diagnostics.Diagnostic
	for _, pair := range n.Pairs {
		v, d, err := in.Eval(pair.Value)
		diags = append(diags, d...)
		if err != nil {
			return story.Nil, diags, err
		}
		m = m.Set(pair.Key, v)
	}
	return m, diags, nil
}

// Assign writes name = value, subject to the state:write capability.
func (in *Interpreter) Assign(name string, value story.Value) []diagnostics.Diagnostic {
	if in.caps != nil && !in.caps.Has(capability.StateWrite) {
		return []diagnostics.Diagnostic{
			diagnostics.NewWarning(diagnostics.CodeMalformedAST, string(rterr.CapabilityDenied)+": state:write not granted"),
		}
	}
	if in.state != nil {
		in.state.Set(name, value)
	}
	return nil
}

// IsTruthy implements spec §3's truthiness rule, the single gate for every
// boolean context in the engine and interpreter: falsy values are Nil,
// Bool(false), any numeric zero (including -0.0), and the empty string;
// everything else — including empty arrays/maps, "false", and "0" — is
// truthy.
func IsTruthy(v story.Value) bool {
	switch v.Kind {
	case story.KindNil:
		return false
	case story.KindBool:
		return v.AsBool()
	case story.KindInteger, story.KindFloat:
		return !v.IsZeroNumber()
	case story.KindString:
		s, _ := v.AsString()
		return s != ""
	default:
		return true
	}
}
