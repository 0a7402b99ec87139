package interp

import (
	"strings"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/story"
)

func typeMismatch(msg string) diagnostics.Diagnostic {
	return diagnostics.NewWarning(diagnostics.CodeMalformedAST, string(rterr.TypeMismatch)+": "+msg)
}

func (in *Interpreter) evalBinaryOp(n *parser.BinaryOp) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	l, d1, err := in.Eval(n.Left)
	if err != nil {
		return story.Nil, d1, err
	}
	r, d2, err := in.Eval(n.Right)
	diags := append(d1, d2...)
	if err != nil {
		return story.Nil, diags, err
	}

	switch n.Op {
	case parser.OpEq:
		return story.Bool(story.Equal(l, r)), diags, nil
	case parser.OpNeq:
		return story.Bool(!story.Equal(l, r)), diags, nil
	case parser.OpContains:
		return in.evalContains(l, r, diags)
	case parser.OpIn:
		return in.evalContains(r, l, diags)
	}

	// Arithmetic/comparison operators require two numbers; integer/float
	// mixing promotes to float (spec §4.9).
	ln, lok := l.AsNumber()
	rn, rok := r.AsNumber()
	if !lok || !rok {
		diags = append(diags, typeMismatch("operator "+string(n.Op)+" requires numeric operands"))
		return story.Nil, diags, nil
	}
	bothInt := l.Kind == story.KindInteger && r.Kind == story.KindInteger

	switch n.Op {
	case parser.OpAdd:
		if bothInt {
			return story.Int(int64(ln) + int64(rn)), diags, nil
		}
		return story.Float(ln + rn), diags, nil
	case parser.OpSub:
		if bothInt {
			return story.Int(int64(ln) - int64(rn)), diags, nil
		}
		return story.Float(ln - rn), diags, nil
	case parser.OpMul:
		if bothInt {
			return story.Int(int64(ln) * int64(rn)), diags, nil
		}
		return story.Float(ln * rn), diags, nil
	case parser.OpDiv:
		if rn == 0 {
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeMalformedAST, string(rterr.DivisionByZero)+": division by zero"))
			return story.Nil, diags, nil
		}
		if bothInt && int64(ln)%int64(rn) == 0 {
			return story.Int(int64(ln) / int64(rn)), diags, nil
		}
		return story.Float(ln / rn), diags, nil
	case parser.OpMod:
		if rn == 0 {
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeMalformedAST, string(rterr.DivisionByZero)+": division by zero"))
			return story.Nil, diags, nil
		}
		if bothInt {
			return story.Int(int64(ln) % int64(rn)), diags, nil
		}
		return story.Float(float64(int64(ln) % int64(rn))), diags, nil
	case parser.OpLt:
		return story.Bool(ln < rn), diags, nil
	case parser.OpLte:
		return story.Bool(ln <= rn), diags, nil
	case parser.OpGt:
		return story.Bool(ln > rn), diags, nil
	case parser.OpGte:
		return story.Bool(ln >= rn), diags, nil
	default:
		diags = append(diags, typeMismatch("unknown binary operator "+string(n.Op)))
		return story.Nil, diags, nil
	}
}

func (in *Interpreter) evalContains(container, needle story.Value, diags []diagnostics.Diagnostic) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	switch container.Kind {
	case story.KindArray:
		for _, item := range container.Array() {
			if story.Equal(item, needle) {
				return story.Bool(true), diags, nil
			}
		}
		return story.Bool(false), diags, nil
	case story.KindString:
		cs, _ := container.AsString()
		ns, ok := needle.AsString()
		if !ok {
			diags = append(diags, typeMismatch("contains needle must be a string for a string haystack"))
			return story.Nil, diags, nil
		}
		return story.Bool(strings.Contains(cs, ns)), diags, nil
	case story.KindMap:
		ns, ok := needle.AsString()
		if !ok {
			diags = append(diags, typeMismatch("contains key must be a string for a map haystack"))
			return story.Nil, diags, nil
		}
		_, found := container.Get(ns)
		return story.Bool(found), diags, nil
	default:
		diags = append(diags, typeMismatch("contains requires an array, string, or map"))
		return story.Nil, diags, nil
	}
}

func (in *Interpreter) evalLogicalOp(n *parser.LogicalOp) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	l, diags, err := in.Eval(n.Left)
	if err != nil {
		return story.Nil, diags, err
	}
	lt := IsTruthy(l)
	// Short-circuit: "and" skips the right side once the left is falsy,
	// "or" skips it once the left is truthy.
	if n.Op == parser.LogicalAnd && !lt {
		return story.Bool(false), diags, nil
	}
	if n.Op == parser.LogicalOr && lt {
		return story.Bool(true), diags, nil
	}
	r, d2, err := in.Eval(n.Right)
	diags = append(diags, d2...)
	if err != nil {
		return story.Nil, diags, err
	}
	return story.Bool(IsTruthy(r)), diags, nil
}

func (in *Interpreter) evalUnaryOp(n *parser.UnaryOp) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	v, diags, err := in.Eval(n.Operand)
	if err != nil {
		return story.Nil, diags, err
	}
	switch n.Op {
	case parser.UnaryNot:
		return story.Bool(!IsTruthy(v)), diags, nil
	case parser.UnaryNeg:
		num, ok := v.AsNumber()
		if !ok {
			diags = append(diags, typeMismatch("unary - requires a number"))
			return story.Nil, diags, nil
		}
		if v.Kind == story.KindInteger {
			return story.Int(-int64(num)), diags, nil
		}
		return story.Float(-num), diags, nil
	default:
		diags = append(diags, typeMismatch("unknown unary operator "+string(n.Op)))
		return story.Nil, diags, nil
	}
}

func (in *Interpreter) evalFunctionCall(n *parser.FunctionCall) (story.Value, []diagnostics.Diagnostic, *rterr.Error) {
	args := make([]story.Value, 0, len(n.Args))
	var diags []diagnostics.Diagnostic
	for _, a := range n.Args {
		v, d, err := in.Eval(a)
		diags = append(diags, d...)
		if err != nil {
			return story.Nil, diags, err
		}
		args = append(args, v)
	}
	fn, ok := stdlib[n.Name]
	if !ok {
		diags = append(diags, diagnostics.NewWarning(diagnostics.CodeMalformedAST, "unknown function "+n.Name))
		return story.Nil, diags, nil
	}
	v, d := fn(args)
	diags = append(diags, d...)
	return v, diags, nil
}
