// Package chapbook implements the Chapbook Twine-story-format dialect
// adapter (spec §4.6): a leading line-oriented `name: value` vars section,
// `[if cond]`/`[continue]` blocks, `{expr}` interpolation, and
// `[[text->target]]` links. Presentational-only directives (`[after Ns]`,
// `[align ...]`, `[note]`) have no Story IR equivalent and are preserved
// as Warning nodes rather than silently dropped.
package chapbook

import (
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

// Adapter implements formats.Format for the Chapbook dialect.
type Adapter struct{}

func (Adapter) Name() string         { return "chapbook" }
func (Adapter) Extensions() []string { return []string{".html", ".htm"} }

func (Adapter) CanImport(source string) bool {
	return twine.CanImport(source) && strings.Contains(strings.ToLower(source), `format="chapbook`)
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
		return nil, []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodeMalformedAST, "chapbook: "+err.Error())}
	}

	s := story.New(doc.Name)
	s.MetaInfo.IFID = doc.IFID
	s.MetaInfo.TargetFormat = "chapbook"
	s.MetaInfo.TargetVersion = doc.FormatVersion

	pidToName := make(map[string]string)
	for _, p := range doc.Passages {
		pidToName[p.PID] = p.Name
	}
	seenVar := make(map[string]bool)
	for _, p := range doc.Passages {
		content, d, vars := parseBodyWithVars(p.Text)
		diags = append(diags, d...)
		for _, v := range vars {
			if seenVar[v.Name] {
				continue
			}
			seenVar[v.Name] = true
			s.Variables = append(s.Variables, v)
		}
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
	doc := &twine.Doc{Name: s.MetaInfo.Title, IFID: s.MetaInfo.IFID, Format: "Chapbook", FormatVersion: "1.2.3"}
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

// parseBodyWithVars splits the leading vars section (consecutive
// `name: value` lines up to the `--` separator) from the body, returning
// each as a VariableDecl alongside the body's content nodes. Only literal
// initializers (numbers, strings, booleans, nil) become a VariableDecl; a
// computed initializer still advances the scan but is not represented,
// since VariableDecl holds a constant story.Value, not an expression.
func parseBodyWithVars(text string) ([]parser.Node, []diagnostics.Diagnostic, []story.VariableDecl) {
	var diags []diagnostics.Diagnostic
	var vars []story.VariableDecl
	body := text
	if idx := strings.Index(text, "\n--\n"); idx >= 0 {
		varLines := text[:idx]
		body = text[idx+len("\n--\n"):]
		for _, line := range strings.Split(varLines, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			colon := strings.Index(line, ":")
			if colon < 0 {
				continue
			}
			name := strings.TrimSpace(line[:colon])
			valueExpr, d := translateExpr(line[colon+1:])
			diags = append(diags, d...)
			if v, ok := literalToValue(valueExpr); ok {
				vars = append(vars, story.VariableDecl{Name: name, Initial: v})
			}
		}
	}
	nodes, d := parseBody(body)
	diags = append(diags, d...)
	return nodes, diags, vars
}

// literalToValue converts a constant-folded Literal expression into a
// story.Value, for the handful of forms Chapbook's vars section actually
// writes; any other expression shape returns ok=false.
func literalToValue(e parser.Expr) (story.Value, bool) {
	lit, ok := e.(*parser.Literal)
	if !ok {
		return story.Nil, false
	}
	switch lit.Kind {
	case parser.LitNumber:
		return story.Float(lit.Number), true
	case parser.LitString:
		return story.Str(lit.String), true
	case parser.LitBool:
		return story.Bool(lit.Bool), true
	case parser.LitNil:
		return story.Nil, true
	default:
		return story.Nil, false
	}
}

// parseBody scans a Chapbook passage body (vars section already removed)
// for `[if cond]`/`[continue]`, `{expr}`, `[[text->target]]`, and
// presentational bracket directives.
func parseBody(body string) ([]parser.Node, []diagnostics.Diagnostic) {
	var diags []diagnostics.Diagnostic
	var nodes []parser.Node
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			nodes = append(nodes, &parser.Text{Literal: buf.String()})
			buf.Reset()
		}
	}

	i := 0
	for i < len(body) {
		switch {
		case strings.HasPrefix(body[i:], "[if "):
			flush()
			close := strings.Index(body[i:], "]")
			if close < 0 {
				buf.WriteByte(body[i])
				i++
				continue
			}
			condText := body[i+len("[if ") : i+close]
			e, d := translateExpr(condText)
			diags = append(diags, d...)
			bodyStart := i + close + 1
			end := strings.Index(body[bodyStart:], "[continue]")
			var thenBody []parser.Node
			next := bodyStart
			if end >= 0 {
				thenBody, _ = parseBody(body[bodyStart : bodyStart+end])
				next = bodyStart + end + len("[continue]")
			}
			nodes = append(nodes, &parser.Conditional{Cond: e, Then: thenBody})
			i = next

		case strings.HasPrefix(body[i:], "{"):
			flush()
			close := strings.Index(body[i:], "}")
			if close < 0 {
				buf.WriteByte(body[i])
				i++
				continue
			}
			e, d := translateExpr(body[i+1 : i+close])
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Interpolation{Expr: e})
			i += close + 1

		case strings.HasPrefix(body[i:], "[["):
			flush()
			end := strings.Index(body[i:], "]]")
			if end < 0 {
				buf.WriteByte(body[i])
				i++
				continue
			}
			inner := body[i+2 : i+end]
			text, target := splitLinkShorthand(inner)
			nodes = append(nodes, &parser.Choice{Text: text, TargetID: target, HasTarget: true})
			i += end + 2

		case strings.HasPrefix(body[i:], "["):
			close := strings.Index(body[i:], "]")
			if close < 0 {
				buf.WriteByte(body[i])
				i++
				continue
			}
			directive := body[i+1 : i+close]
			nodes = append(nodes, &parser.Warning{Message: "unsupported Chapbook directive: [" + directive + "]"})
			i += close + 1

		default:
			buf.WriteByte(body[i])
			i++
		}
	}
	flush()
	return nodes, diags
}

func splitLinkShorthand(inner string) (text, target string) {
	if idx := strings.Index(inner, "->"); idx >= 0 {
		return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+2:])
	}
	if idx := strings.Index(inner, "<-"); idx >= 0 {
		return strings.TrimSpace(inner[idx+2:]), strings.TrimSpace(inner[:idx])
	}
	return strings.TrimSpace(inner), strings.TrimSpace(inner)
}

func translateExpr(src string) (parser.Expr, []diagnostics.Diagnostic) {
	translated := strings.TrimSpace(src)
	file := diagnostics.NewFile("<chapbook-expr>", translated)
	toks := lexer.New(file).Tokenize()
	expr, diags := parser.ParseExpr(file, toks)
	if expr == nil {
		expr = &parser.Literal{Kind: parser.LitNil}
	}
	return expr, diags
}

func renderBody(nodes []parser.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch v := n.(type) {
		case *parser.Text:
			b.WriteString(v.Literal)
		case *parser.Interpolation:
			b.WriteString("{")
			b.WriteString(renderExpr(v.Expr))
			b.WriteString("}")
		case *parser.Choice:
			b.WriteString("[[")
			b.WriteString(v.Text)
			b.WriteString("->")
			b.WriteString(v.TargetID)
			b.WriteString("]]")
		case *parser.Conditional:
			b.WriteString("[if ")
			b.WriteString(renderExpr(v.Cond))
			b.WriteString("]")
			b.WriteString(renderBody(v.Then))
			b.WriteString("[continue]")
		case *parser.Warning:
			b.WriteString("")
		}
	}
	return b.String()
}

func renderExpr(e parser.Expr) string {
	switch v := e.(type) {
	case *parser.VariableRef:
		return v.Name
	case *parser.Literal:
		return v.String
	default:
		return ""
	}
}
