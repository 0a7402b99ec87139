// Package sugarcube implements the SugarCube Twine-story-format dialect
// adapter (spec §4.6): `<<set>>`, `<<if>>/<<elseif>>/<<else>>/<</if>>`,
// `<<link>>`, `<<goto>>`, `<<print>>`, and `<<script>>` blocks.
package sugarcube

import (
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/formats/twine"
	"github.com/writewhisker/whisker-core/lexer"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

func init() {
	formats.Global().MustRegister(Adapter{})
}

// Adapter implements formats.Format for the SugarCube dialect.
type Adapter struct{}

func (Adapter) Name() string         { return "sugarcube" }
func (Adapter) Extensions() []string { return []string{".html", ".htm"} }

func (Adapter) CanImport(source string) bool {
	return twine.CanImport(source) && strings.Contains(strings.ToLower(source), `format="sugarcube`)
}

func (Adapter) CanExport(s *story.Story) (bool, string) {
	if s == nil {
		return false, "nil story"
	}
	return true, ""
}

func (Adapter) Import(source string) (*story.Story, []diagnostics.Diagnostic) {
	var diags []diagnostics.Diagnostic
	doc, err := twine.Parse(source)
	if err != nil {
		return nil, []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodeMalformedAST, "sugarcube: "+err.Error())}
	}

	s := story.New(doc.Name)
	s.MetaInfo.IFID = doc.IFID
	s.MetaInfo.TargetFormat = "sugarcube"
	s.MetaInfo.TargetVersion = doc.FormatVersion

	pidToName := make(map[string]string)
	for _, p := range doc.Passages {
		pidToName[p.PID] = p.Name
	}
	for _, p := range doc.Passages {
		content, d := parseBody(p.Text)
		diags = append(diags, d...)
		passage := &story.Passage{ID: p.Name, DisplayName: p.Name, Content: content}
		if len(p.Tags) > 0 {
			passage.Tags = stringset.New(p.Tags...)
		}
		if err := s.AddPassage(passage); err != nil {
			diags = append(diags, diagnostics.New(diagnostics.CodeDuplicatePassage, err.Error()))
		}
	}
	if name, ok := pidToName[doc.StartNode]; ok {
		s.StartPassageID = name
	} else if len(doc.Passages) > 0 {
		s.StartPassageID = doc.Passages[0].Name
	}
	return s, diags
}

func (Adapter) Export(s *story.Story, opts formats.Options) (string, []diagnostics.Diagnostic) {
	doc := &twine.Doc{Name: s.MetaInfo.Title, IFID: s.MetaInfo.IFID, Format: "SugarCube", FormatVersion: "2.36.1"}
	for i, p := range s.GetAllPassages() {
		pid := twine.NextPID(i)
		if p.ID == s.StartPassageID {
			doc.StartNode = pid
		}
		doc.Passages = append(doc.Passages, twine.PassageData{
			PID: pid, Name: p.ID, Tags: p.Tags.Elements(), Text: renderBody(p.Content),
		})
	}
	return twine.Render(doc), nil
}

// parseBody is SugarCube's macro scanner: `<<macro args>>` replaces
// Harlowe's `(macro: args)`, and block macros close with `<</macro>>`
// rather than a trailing `[body]`.
func parseBody(s string) ([]parser.Node, []diagnostics.Diagnostic) {
	var nodes []parser.Node
	var diags []diagnostics.Diagnostic
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			nodes = append(nodes, &parser.Text{Literal: buf.String()})
			buf.Reset()
		}
	}

	i := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "<<set "):
			flush()
			close := strings.Index(s[i:], ">>")
			if close < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			args := s[i+len("<<set ") : i+close]
			node, d := parseSet(args)
			diags = append(diags, d...)
			nodes = append(nodes, node)
			i += close + 2

		case strings.HasPrefix(s[i:], "<<print "):
			flush()
			close := strings.Index(s[i:], ">>")
			if close < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			args := s[i+len("<<print ") : i+close]
			expr, d := translateExpr(args)
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Print{Expr: expr})
			i += close + 2

		case strings.HasPrefix(s[i:], "<<goto "):
			flush()
			close := strings.Index(s[i:], ">>")
			if close < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			target := unquote(strings.TrimSpace(s[i+len("<<goto ") : i+close]))
			nodes = append(nodes, &parser.Divert{TargetID: target})
			i += close + 2

		case strings.HasPrefix(s[i:], "<<link "):
			flush()
			node, next := parseLink(s, i)
			nodes = append(nodes, node)
			i = next

		case strings.HasPrefix(s[i:], "<<if "):
			flush()
			cond, then, elsif, els, hasElse, next, d := parseConditionalChain(s, i)
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Conditional{Cond: cond, Then: then, Elsif: elsif, Else: els, HasElse: hasElse})
			i = next

		case strings.HasPrefix(s[i:], "<<script>>"):
			flush()
			end := strings.Index(s[i:], "<</script>>")
			if end < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			body := s[i+len("<<script>>") : i+end]
			nodes = append(nodes, &parser.ScriptBlock{Text: body})
			i += end + len("<</script>>")

		default:
			buf.WriteByte(s[i])
			i++
		}
	}
	flush()
	return nodes, diags
}

func parseSet(args string) (parser.Node, []diagnostics.Diagnostic) {
	idx := strings.Index(args, " to ")
	if idx < 0 {
		idx = strings.Index(args, "=")
		if idx < 0 {
			return &parser.Warning{Message: "malformed <<set>>"}, nil
		}
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args[:idx]), "$"))
		expr, diags := translateExpr(args[idx+1:])
		return &parser.Assignment{Var: name, Expr: expr}, diags
	}
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args[:idx]), "$"))
	expr, diags := translateExpr(args[idx+len(" to "):])
	return &parser.Assignment{Var: name, Expr: expr}, diags
}

func parseLink(s string, i int) (parser.Node, int) {
	close := strings.Index(s[i:], ">>")
	if close < 0 {
		return &parser.Text{Literal: "<<link"}, i + len("<<link ")
	}
	args := s[i+len("<<link ") : i+close]
	text, target := splitQuotedArgs(args)
	pos := i + close + 2
	if target != "" {
		return &parser.Choice{Text: text, TargetID: target, HasTarget: true}, pos
	}
	end := strings.Index(s[pos:], "<</link>>")
	if end < 0 {
		return &parser.Choice{Text: text}, pos
	}
	inline, _ := parseBody(s[pos : pos+end])
	return &parser.Choice{Text: text, InlineBody: inline}, pos + end + len("<</link>>")
}

// splitQuotedArgs extracts the quoted string arguments of a SugarCube
// macro call, e.g. `"Go" "End"` -> ("Go", "End").
func splitQuotedArgs(args string) (first, second string) {
	var out []string
	var cur strings.Builder
	inQuote := false
	for _, r := range args {
		if r == '"' {
			inQuote = !inQuote
			if !inQuote {
				out = append(out, cur.String())
				cur.Reset()
			}
			continue
		}
		if inQuote {
			cur.WriteRune(r)
		}
	}
	if len(out) > 0 {
		first = out[0]
	}
	if len(out) > 1 {
		second = out[1]
	}
	return first, second
}

// parseConditionalChain scans a `<<if cond>> ... [<<elseif cond>> ...]*
// [<<else>> ...] <</if>>` block, tracking nested `<<if>>` depth so inner
// conditionals' own `<<elseif>>`/`<<else>>`/`<</if>>` markers don't get
// mistaken for this block's own branches.
func parseConditionalChain(s string, i int) (cond parser.Expr, then []parser.Node, elsif []parser.CondBranch, els []parser.Node, hasElse bool, next int, diags []diagnostics.Diagnostic) {
	close := strings.Index(s[i:], ">>")
	if close < 0 {
		return &parser.Literal{Kind: parser.LitBool, Bool: false}, nil, nil, nil, false, i + 1, diags
	}
	condText := s[i+len("<<if ") : i+close]
	e, d := translateExpr(condText)
	diags = append(diags, d...)
	cond = e

	conds := []parser.Expr{cond}
	var bodies []string
	var elseBody string

	pos := i + close + 2
	segStart := pos
	depth := 0
	j := pos
	for j < len(s) {
		switch {
		case strings.HasPrefix(s[j:], "<<if "):
			depth++
			c := strings.Index(s[j:], ">>")
			if c < 0 {
				j = len(s)
				continue
			}
			j += c + 2
		case depth == 0 && strings.HasPrefix(s[j:], "<<elseif "):
			bodies = append(bodies, s[segStart:j])
			c := strings.Index(s[j:], ">>")
			if c < 0 {
				j = len(s)
				continue
			}
			branchCond := s[j+len("<<elseif ") : j+c]
			be, bd := translateExpr(branchCond)
			diags = append(diags, bd...)
			conds = append(conds, be)
			j += c + 2
			segStart = j
		case depth == 0 && strings.HasPrefix(s[j:], "<<else>>"):
			bodies = append(bodies, s[segStart:j])
			j += len("<<else>>")
			segStart = j
			hasElse = true
		case strings.HasPrefix(s[j:], "<</if>>"):
			if depth > 0 {
				depth--
				j += len("<</if>>")
				continue
			}
			if hasElse {
				elseBody = s[segStart:j]
			} else {
				bodies = append(bodies, s[segStart:j])
			}
			j += len("<</if>>")
			pos = j
			j = len(s) + 1 // exit the loop
		default:
			j++
		}
	}

	if len(bodies) > 0 {
		then, _ = parseBody(bodies[0])
	}
	for k := 1; k < len(conds); k++ {
		var body []parser.Node
		if k < len(bodies) {
			body, _ = parseBody(bodies[k])
		}
		elsif = append(elsif, parser.CondBranch{Cond: conds[k], Body: body})
	}
	if hasElse {
		els, _ = parseBody(elseBody)
	}
	return cond, then, elsif, els, hasElse, pos, diags
}

// translateExpr rewrites SugarCube's word operators into WhiskerScript's
// symbolic ones before re-lexing. "neq" is replaced before "eq" since "eq"
// is a substring of "neq"; both are padded with spaces so they only match
// whole words, not substrings of variable names like "$frequency".
func translateExpr(src string) (parser.Expr, []diagnostics.Diagnostic) {
	translated := " " + strings.TrimSpace(src) + " "
	translated = strings.ReplaceAll(translated, " neq ", " != ")
	translated = strings.ReplaceAll(translated, " eq ", " == ")
	translated = strings.TrimSpace(translated)
	file := diagnostics.NewFile("<sugarcube-expr>", translated)
	toks := lexer.New(file).Tokenize()
	expr, diags := parser.ParseExpr(file, toks)
	if expr == nil {
		expr = &parser.Literal{Kind: parser.LitNil}
	}
	return expr, diags
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
		return s[1 : len(s)-1]
	}
	return s
}

func renderBody(nodes []parser.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case *parser.Text:
			b.WriteString(v.Literal)
		case *parser.Assignment:
			fmt.Fprintf(&b, "<<set $%s to %s>>", v.Var, renderExpr(v.Expr))
		case *parser.Print:
			fmt.Fprintf(&b, "<<print %s>>", renderExpr(v.Expr))
		case *parser.Choice:
			if v.HasTarget {
				fmt.Fprintf(&b, `<<link "%s" "%s">>`, v.Text, v.TargetID)
			} else {
				fmt.Fprintf(&b, `<<link "%s">>%s<</link>>`, v.Text, renderBody(v.InlineBody))
			}
		case *parser.Divert:
			fmt.Fprintf(&b, `<<goto "%s">>`, v.TargetID)
		case *parser.Conditional:
			fmt.Fprintf(&b, "<<if %s>>%s", renderExpr(v.Cond), renderBody(v.Then))
			for _, branch := range v.Elsif {
				fmt.Fprintf(&b, "<<elseif %s>>%s", renderExpr(branch.Cond), renderBody(branch.Body))
			}
			if v.HasElse {
				fmt.Fprintf(&b, "<<else>>%s", renderBody(v.Else))
			}
			b.WriteString("<</if>>")
		case *parser.ScriptBlock:
			fmt.Fprintf(&b, "<<script>>%s<</script>>", v.Text)
		}
	}
	return b.String()
}

func renderExpr(e parser.Expr) string {
	switch v := e.(type) {
	case *parser.Literal:
		switch v.Kind {
		case parser.LitNumber:
			return strconv.FormatFloat(v.Number, 'g', -1, 64)
		case parser.LitString:
			return strconv.Quote(v.String)
		case parser.LitBool:
			return strconv.FormatBool(v.Bool)
		default:
			return "null"
		}
	case *parser.VariableRef:
		return "$" + v.Name
	case *parser.BinaryOp:
		return fmt.Sprintf("%s %s %s", renderExpr(v.Left), v.Op, renderExpr(v.Right))
	case *parser.LogicalOp:
		return fmt.Sprintf("%s %s %s", renderExpr(v.Left), v.Op, renderExpr(v.Right))
	case *parser.UnaryOp:
		return fmt.Sprintf("not %s", renderExpr(v.Operand))
	default:
		return ""
	}
}
