// Package snowman implements the Snowman Twine-story-format dialect
// adapter (spec §4.6): JavaScript-flavored `<%= expr %>` interpolation and
// `<% ... %>` code blocks, plus anchor-style `<a data-passage="...">text</a>`
// links. Snowman's code is arbitrary JavaScript, which WhiskerScript's
// expression grammar cannot parse in general; `<% %>` blocks are preserved
// as Raw escape hatches rather than attempting partial translation, while
// `<%= %>` holding a bare `$var` or a simple comparison is translated like
// the other dialects so common cases still interpolate as real expressions.
package snowman

import (
	"html"
	"regexp"
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

// Adapter implements formats.Format for the Snowman dialect.
type Adapter struct{}

func (Adapter) Name() string         { return "snowman" }
func (Adapter) Extensions() []string { return []string{".html", ".htm"} }

func (Adapter) CanImport(source string) bool {
	return twine.CanImport(source) && strings.Contains(strings.ToLower(source), `format="snowman`)
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
		return nil, []diagnostics.Diagnostic{diagnostics.New(diagnostics.CodeMalformedAST, "snowman: "+err.Error())}
	}

	s := story.New(doc.Name)
	s.MetaInfo.IFID = doc.IFID
	s.MetaInfo.TargetFormat = "snowman"
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
	doc := &twine.Doc{Name: s.MetaInfo.Title, IFID: s.MetaInfo.IFID, Format: "Snowman", FormatVersion: "2.0.2"}
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

var anchorRe = regexp.MustCompile(`(?is)<a\s+[^>]*data-passage="([^"]*)"[^>]*>(.*?)</a>`)

// parseBody scans for `<%= expr %>` interpolation, `<% code %>` blocks
// (preserved opaque), and `<a data-passage="target">text</a>` links.
func parseBody(s string) ([]parser.Node, []diagnostics.Diagnostic) {
	var diags []diagnostics.Diagnostic
	var nodes []parser.Node
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			nodes = append(nodes, &parser.Text{Literal: html.UnescapeString(buf.String())})
			buf.Reset()
		}
	}

	i := 0
	for i < len(s) {
		switch {
		case strings.HasPrefix(s[i:], "<%="):
			flush()
			end := strings.Index(s[i:], "%>")
			if end < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			exprSrc := strings.TrimSpace(s[i+3 : i+end])
			e, d := translateExpr(exprSrc)
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Interpolation{Expr: e})
			i += end + 2

		case strings.HasPrefix(s[i:], "<%"):
			flush()
			end := strings.Index(s[i:], "%>")
			if end < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			code := s[i+2 : i+end]
			nodes = append(nodes, &parser.Raw{Text: strings.TrimSpace(code), OriginalDialect: "snowman"})
			diags = append(diags, diagnostics.NewWarning(diagnostics.CodeRawEscapeHatch,
				"Snowman JavaScript block preserved as a raw escape hatch"))
			i += end + 2

		case strings.HasPrefix(s[i:], "<a "):
			if loc := anchorRe.FindStringSubmatchIndex(s[i:]); loc != nil && loc[0] == 0 {
				target := s[i+loc[2] : i+loc[3]]
				text := s[i+loc[4] : i+loc[5]]
				flush()
				nodes = append(nodes, &parser.Choice{Text: html.UnescapeString(text), TargetID: target, HasTarget: true})
				i += loc[1]
				continue
			}
			buf.WriteByte(s[i])
			i++

		default:
			buf.WriteByte(s[i])
			i++
		}
	}
	flush()
	return nodes, diags
}

func translateExpr(src string) (parser.Expr, []diagnostics.Diagnostic) {
	file := diagnostics.NewFile("<snowman-expr>", src)
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
			b.WriteString(html.EscapeString(v.Literal))
		case *parser.Interpolation:
			b.WriteString("<%= ")
			b.WriteString(renderExpr(v.Expr))
			b.WriteString(" %>")
		case *parser.Raw:
			b.WriteString("<% ")
			b.WriteString(v.Text)
			b.WriteString(" %>")
		case *parser.Choice:
			b.WriteString(`<a data-passage="`)
			b.WriteString(v.TargetID)
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(v.Text))
			b.WriteString("</a>")
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
	case *parser.BinaryOp:
		return renderExpr(v.Left) + " " + string(v.Op) + " " + renderExpr(v.Right)
	default:
		return ""
	}
}
