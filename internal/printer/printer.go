// Package printer renders a parsed Document back to canonical
// WhiskerScript text, the pretty-printer half of the whisker-fmt CLI
// surface named in spec §6.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/parser"
)

// Print renders doc using cfg's indentation settings.
func Print(doc *parser.Document, cfg config.FmtConfig) string {
	p := &printer{cfg: cfg}
	for i, passage := range doc.Passages {
		if i > 0 {
			p.out.WriteByte('\n')
		}
		p.printPassage(passage)
	}
	return p.out.String()
}

type printer struct {
	out strings.Builder
	cfg config.FmtConfig
}

func (p *printer) indent(depth int) string {
	unit := "\t"
	if !p.cfg.UseTabs {
		unit = strings.Repeat(" ", p.cfg.IndentWidth)
	}
	return strings.Repeat(unit, depth)
}

func (p *printer) printPassage(decl *parser.PassageDecl) {
	fmt.Fprintf(&p.out, ":: %s", decl.ID)
	if len(decl.Tags) > 0 {
		fmt.Fprintf(&p.out, " [%s]", strings.Join(decl.Tags, ", "))
	}
	p.out.WriteByte('\n')
	p.printNodes(decl.Content, 0)
}

func (p *printer) printNodes(nodes []parser.Node, depth int) {
	for _, n := range nodes {
		p.printNode(n, depth)
	}
}

func (p *printer) printNode(n parser.Node, depth int) {
	prefix := p.indent(depth)
	switch v := n.(type) {
	case *parser.Text:
		p.out.WriteString(prefix)
		p.out.WriteString(decorate(v.Literal, v.Flags))
		p.out.WriteByte('\n')
	case *parser.HorizontalRule:
		fmt.Fprintf(&p.out, "%s---\n", prefix)
	case *parser.Blockquote:
		fmt.Fprintf(&p.out, "%s%s ", prefix, strings.Repeat(">", v.Depth))
		p.printNodes(v.Body, 0)
	case *parser.ListItem:
		bullet := "-"
		if v.Ordered {
			bullet = "1."
		}
		fmt.Fprintf(&p.out, "%s%s ", prefix, bullet)
		p.printNodes(v.Body, 0)
	case *parser.Interpolation:
		fmt.Fprintf(&p.out, "%s{%s}\n", prefix, printExpr(v.Expr))
	case *parser.Print:
		fmt.Fprintf(&p.out, "%s${%s}\n", prefix, printExpr(v.Expr))
	case *parser.Assignment:
		fmt.Fprintf(&p.out, "%s~ $%s = %s\n", prefix, v.Var, printExpr(v.Expr))
	case *parser.Conditional:
		fmt.Fprintf(&p.out, "%s{ if %s }\n", prefix, printExpr(v.Cond))
		p.printNodes(v.Then, depth+1)
		for _, branch := range v.Elsif {
			fmt.Fprintf(&p.out, "%s{ elsif %s }\n", prefix, printExpr(branch.Cond))
			p.printNodes(branch.Body, depth+1)
		}
		if v.HasElse {
			fmt.Fprintf(&p.out, "%s{ else }\n", prefix)
			p.printNodes(v.Else, depth+1)
		}
		fmt.Fprintf(&p.out, "%s{ endif }\n", prefix)
	case *parser.ForEach:
		fmt.Fprintf(&p.out, "%s{ for %s in %s }\n", prefix, v.Binder, printExpr(v.Collection))
		p.printNodes(v.Body, depth+1)
		fmt.Fprintf(&p.out, "%s{ endfor }\n", prefix)
	case *parser.Choice:
		p.printChoice(v, depth)
	case *parser.Divert:
		fmt.Fprintf(&p.out, "%s-> %s\n", prefix, v.TargetID)
	case *parser.NamedHook:
		vis := ""
		if !v.Visible {
			vis = " hidden"
		}
		fmt.Fprintf(&p.out, "%s{hook %q%s}\n", prefix, v.Name, vis)
		p.printNodes(v.Body, depth+1)
		fmt.Fprintf(&p.out, "%s{endhook}\n", prefix)
	case *parser.ScriptBlock:
		fmt.Fprintf(&p.out, "%s```\n%s\n%s```\n", prefix, v.Text, prefix)
	case *parser.Warning:
		fmt.Fprintf(&p.out, "%s<!-- %s -->\n", prefix, v.Message)
	}
}

func (p *printer) printChoice(c *parser.Choice, depth int) {
	prefix := p.indent(depth)
	fmt.Fprintf(&p.out, "%s+ [%s]", prefix, c.Text)
	if c.Guard != nil {
		fmt.Fprintf(&p.out, " { if %s", printExpr(c.Guard))
		if c.HasTarget {
			fmt.Fprintf(&p.out, " -> %s", c.TargetID)
		}
		p.out.WriteString(" }")
	} else if c.HasTarget {
		fmt.Fprintf(&p.out, " -> %s", c.TargetID)
	}
	p.out.WriteByte('\n')
	if len(c.InlineBody) > 0 {
		p.printNodes(c.InlineBody, depth+1)
	}
}

func decorate(text string, flags []parser.FormatFlag) string {
	for _, f := range flags {
		switch f {
		case parser.FormatBold:
			text = "**" + text + "**"
		case parser.FormatItalic:
			text = "_" + text + "_"
		case parser.FormatStrike:
			text = "~~" + text + "~~"
		case parser.FormatCode:
			text = "`" + text + "`"
		}
	}
	return text
}

// printExpr renders e back to WhiskerScript expression syntax. It is a
// best-effort reconstruction, not guaranteed byte-identical to the
// original source (parenthesization/whitespace are not preserved by the
// AST), sufficient for a formatter's canonical output.
func printExpr(e parser.Expr) string {
	switch v := e.(type) {
	case nil:
		return ""
	case *parser.Literal:
		return printLiteral(v)
	case *parser.VariableRef:
		return "$" + v.Name
	case *parser.BinaryOp:
		return fmt.Sprintf("%s %s %s", printExpr(v.Left), v.Op, printExpr(v.Right))
	case *parser.LogicalOp:
		return fmt.Sprintf("%s %s %s", printExpr(v.Left), v.Op, printExpr(v.Right))
	case *parser.UnaryOp:
		if v.Op == parser.UnaryNeg {
			return "-" + printExpr(v.Operand)
		}
		return "not " + printExpr(v.Operand)
	case *parser.FunctionCall:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = printExpr(a)
		}
		return fmt.Sprintf("%s(%s)", v.Name, strings.Join(args, ", "))
	case *parser.ArrayLiteral:
		items := make([]string, len(v.Items))
		for i, it := range v.Items {
			items[i] = printExpr(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *parser.MapLiteral:
		pairs := make([]string, len(v.Pairs))
		for i, pr := range v.Pairs {
			pairs[i] = fmt.Sprintf("%q | %s", pr.Key, printExpr(pr.Value))
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	case *parser.Raw:
		return v.Text
	default:
		return ""
	}
}

func printLiteral(l *parser.Literal) string {
	switch l.Kind {
	case parser.LitNil:
		return "nil"
	case parser.LitBool:
		return strconv.FormatBool(l.Bool)
	case parser.LitNumber:
		return strconv.FormatFloat(l.Number, 'g', -1, 64)
	case parser.LitString:
		return strconv.Quote(l.String)
	case parser.LitArray:
		items := make([]string, len(l.Array))
		for i, it := range l.Array {
			items[i] = printExpr(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case parser.LitMap:
		pairs := make([]string, len(l.Map))
		for i, pr := range l.Map {
			pairs[i] = fmt.Sprintf("%q | %s", pr.Key, printExpr(pr.Value))
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	default:
		return ""
	}
}
