package engine

import (
	"strings"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/interp"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/story"
)

// EnabledChoice is one Choice whose Guard evaluated truthy (or had none),
// offered to the host after on_choice_present transform hooks run.
type EnabledChoice struct {
	Text      string
	HasTarget bool
	TargetID  string
	hasInline bool
	inline    []parser.Node
	action    parser.Expr
}

// Rendered is what a passage-entry or choice-application turn returns to
// the host: the concatenated visible text and the choices on offer.
// Richer inline formatting (lists, blockquotes, named hooks) is flattened
// to plain text; hosts that need structure re-derive it from the Story
// IR directly.
type Rendered struct {
	PassageID  string
	Text       string
	Choices    []EnabledChoice
	AutoDivert string // non-empty when the passage unconditionally diverts
	Diags      []diagnostics.Diagnostic
}

// renderNodes walks body, evaluating expressions through in, and returns
// the flattened text, any Choice nodes whose guard is truthy, and the
// first unconditional Divert encountered (content after an executed
// Divert is unreachable within that render, mirroring how a narrative
// engine stops at the first navigation instruction).
func renderNodes(in *interp.Interpreter, body []parser.Node, onAssign func(name string, v story.Value)) (string, []EnabledChoice, string, []diagnostics.Diagnostic, *rterr.Error) {
	var sb strings.Builder
	var choices []EnabledChoice
	var diags []diagnostics.Diagnostic
	var divert string

	for _, node := range body {
		if divert != "" {
			break
		}
		switch n := node.(type) {
		case *parser.Text:
			sb.WriteString(n.Literal)
		case *parser.HorizontalRule:
			sb.WriteString("\n---\n")
		case *parser.Blockquote:
			text, ch, dv, d, err := renderNodes(in, n.Body, onAssign)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString(text)
			choices = append(choices, ch...)
			if dv != "" {
				divert = dv
			}
		case *parser.ListItem:
			text, ch, dv, d, err := renderNodes(in, n.Body, onAssign)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString("- " + text + "\n")
			choices = append(choices, ch...)
			if dv != "" {
				divert = dv
			}
		case *parser.Interpolation:
			v, d, err := in.Eval(n.Expr)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString(v.String())
		case *parser.Print:
			v, d, err := in.Eval(n.Expr)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString(v.String())
		case *parser.Assignment:
			v, d, err := in.Eval(n.Expr)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			diags = append(diags, in.Assign(n.Var, v)...)
			if onAssign != nil {
				onAssign(n.Var, v)
			}
		case *parser.Conditional:
			text, ch, dv, d, err := renderConditional(in, n, onAssign)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString(text)
			choices = append(choices, ch...)
			if dv != "" {
				divert = dv
			}
		case *parser.ForEach:
			text, ch, d, err := renderForEach(in, n, onAssign)
			diags = append(diags, d...)
			if err != nil {
				return sb.String(), choices, divert, diags, err
			}
			sb.WriteString(text)
			choices = append(choices, ch...)
		case *parser.Choice:
			enabled := true
			if n.Guard != nil {
				v, d, err := in.Eval(n.Guard)
				diags = append(diags, d...)
				if err != nil {
					return sb.String(), choices, divert, diags, err
				}
				enabled = interp.IsTruthy(v)
			}
			if enabled {
				choices = append(choices, EnabledChoice{
					Text:      n.Text,
					HasTarget: n.HasTarget,
					TargetID:  n.TargetID,
					hasInline: len(n.InlineBody) > 0,
					inline:    n.InlineBody,
					action:    n.Action,
				})
			}
		case *parser.Divert:
			divert = n.TargetID
		case *parser.NamedHook:
			if n.Visible {
				text, ch, dv, d, err := renderNodes(in, n.Body, onAssign)
				diags = append(diags, d...)
				if err != nil {
					return sb.String(), choices, divert, diags, err
				}
				sb.WriteString(text)
				choices = append(choices, ch...)
				if dv != "" {
					divert = dv
				}
			}
		case *parser.ScriptBlock:
			// Opaque script bodies preserved for round-trip are not
			// statement-parsed at this layer; they render as nothing.
		case *parser.Warning:
			// Diagnostic-only content; never rendered.
		}
	}
	return sb.String(), choices, divert, diags, nil
}

func renderConditional(in *interp.Interpreter, n *parser.Conditional, onAssign func(string, story.Value)) (string, []EnabledChoice, string, []diagnostics.Diagnostic, *rterr.Error) {
	v, diags, err := in.Eval(n.Cond)
	if err != nil {
		return "", nil, "", diags, err
	}
	if interp.IsTruthy(v) {
		text, ch, dv, d, err := renderNodes(in, n.Then, onAssign)
		return text, ch, dv, append(diags, d...), err
	}
	for _, branch := range n.Elsif {
		bv, d, err := in.Eval(branch.Cond)
		diags = append(diags, d...)
		if err != nil {
			return "", nil, "", diags, err
		}
		if interp.IsTruthy(bv) {
			text, ch, dv, d2, err := renderNodes(in, branch.Body, onAssign)
			return text, ch, dv, append(diags, d2...), err
		}
	}
	if n.HasElse {
		text, ch, dv, d, err := renderNodes(in, n.Else, onAssign)
		return text, ch, dv, append(diags, d...), err
	}
	return "", nil, "", diags, nil
}

func renderForEach(in *interp.Interpreter, n *parser.ForEach, onAssign func(string, story.Value)) (string, []EnabledChoice, []diagnostics.Diagnostic, *rterr.Error) {
	coll, diags, err := in.Eval(n.Collection)
	if err != nil {
		return "", nil, diags, err
	}
	var sb strings.Builder
	var choices []EnabledChoice

	iterate := func(item story.Value) *rterr.Error {
		diags = append(diags, in.Assign(n.Binder, item)...)
		if onAssign != nil {
			onAssign(n.Binder, item)
		}
		text, ch, _, d, err := renderNodes(in, n.Body, onAssign)
		diags = append(diags, d...)
		if err != nil {
			return err
		}
		sb.WriteString(text)
		choices = append(choices, ch...)
		return nil
	}

	switch coll.Kind {
	case story.KindArray:
		for _, item := range coll.Array() {
			if err := iterate(item); err != nil {
				return sb.String(), choices, diags, err
			}
		}
	case story.KindMap:
		for _, k := range coll.Keys() {
			v, _ := coll.Get(k)
			if err := iterate(v); err != nil {
				return sb.String(), choices, diags, err
			}
		}
	default:
		diags = append(diags, diagnostics.NewWarning(diagnostics.CodeMalformedAST, "for-each requires an array or map"))
	}
	return sb.String(), choices, diags, nil
}
