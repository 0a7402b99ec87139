// Package harlowe implements the Harlowe Twine-story-format dialect
// adapter (spec §4.6): `(set:)`, `(put:)`, `(if:)`/`(else-if:)`/`(else:)`,
// `(unless:)`, `(link:)`, `(link-goto:)`, `(goto:)`, `(print:)`, and
// Twine's own `[[text->target]]` link shorthand.
package harlowe

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

// Adapter implements formats.Format for the Harlowe dialect.
type Adapter struct{}

func (Adapter) Name() string         { return "harlowe" }
func (Adapter) Extensions() []string { return []string{".html", ".htm"} }

func (Adapter) CanImport(source string) bool {
	return twine.CanImport(source) && strings.Contains(strings.ToLower(source), `format="harlowe`)
}

func (Adapter) CanExport(s *story.Story) (bool, string) {
	if s == nil {
		return false, "nil story"
	}
	return true, ""
}

// Import parses a Harlowe Twine HTML export into a Story IR.
func (Adapter) Import(source string) (*story.Story, []diagnostics.Diagnostic) {
	var diags []diagnostics.Diagnostic
	doc, err := twine.Parse(source)
	if err != nil {
		diags = append(diags, diagnostics.New(diagnostics.CodeMalformedAST, fmt.Sprintf("harlowe: %v", err)))
		return nil, diags
	}

	s := story.New(doc.Name)
	s.MetaInfo.IFID = doc.IFID
	s.MetaInfo.TargetFormat = "harlowe"
	s.MetaInfo.TargetVersion = doc.FormatVersion

	pidToName := make(map[string]string)
	for _, p := range doc.Passages {
		pidToName[p.PID] = p.Name
	}

	for _, p := range doc.Passages {
		content, nodeDiags := parseBody(p.Text)
		diags = append(diags, nodeDiags...)
		passage := &story.Passage{
			ID:          p.Name,
			DisplayName: p.Name,
			Content:     content,
		}
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

// Export renders a Story IR as Harlowe Twine HTML.
func (Adapter) Export(s *story.Story, opts formats.Options) (string, []diagnostics.Diagnostic) {
	doc := &twine.Doc{
		Name:          s.MetaInfo.Title,
		IFID:          s.MetaInfo.IFID,
		Format:        "Harlowe",
		FormatVersion: "3.3.0",
	}
	passages := s.GetAllPassages()
	for i, p := range passages {
		pid := twine.NextPID(i)
		if p.ID == s.StartPassageID {
			doc.StartNode = pid
		}
		tags := p.Tags.Elements()
		doc.Passages = append(doc.Passages, twine.PassageData{
			PID:  pid,
			Name: p.ID,
			Tags: tags,
			Text: renderBody(p.Content),
		})
	}
	return twine.Render(doc), nil
}

// parseBody scans Harlowe macro/markup text into content nodes. It is a
// tolerant scanner, not a validating parser: anything it doesn't
// recognize, unknown macros included, is kept verbatim as plain Text
// rather than being dropped; no diagnostic is emitted for it.
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
		case hasPrefixFold(s, i, "(set:") || hasPrefixFold(s, i, "(put:"):
			flush()
			isPut := hasPrefixFold(s, i, "(put:")
			argsEnd := matchParen(s, i)
			if argsEnd < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			args := s[i+strings.Index(s[i:], ":")+1 : argsEnd]
			node, d := parseAssign(args, isPut)
			diags = append(diags, d...)
			nodes = append(nodes, node)
			i = argsEnd + 1

		case hasPrefixFold(s, i, "(if:") || hasPrefixFold(s, i, "(unless:"):
			flush()
			cond, then, elsif, els, hasElse, next, d := parseConditionalChain(s, i)
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Conditional{Cond: cond, Then: then, Elsif: elsif, Else: els, HasElse: hasElse})
			i = next

		case hasPrefixFold(s, i, "(link-goto:"):
			flush()
			argsEnd := matchParen(s, i)
			if argsEnd < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			args := s[i+len("(link-goto:") : argsEnd]
			text, target := splitTwoStringArgs(args)
			nodes = append(nodes, &parser.Choice{Text: text, TargetID: target, HasTarget: true})
			i = argsEnd + 1

		case hasPrefixFold(s, i, "(link:"):
			flush()
			argsEnd := matchParen(s, i)
			if argsEnd < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			text := unquote(strings.TrimSpace(s[i+len("(link:") : argsEnd]))
			bodyStart, bodyEnd := -1, -1
			if argsEnd+1 < len(s) && s[argsEnd+1] == '[' {
				bodyEnd = matchBracket(s, argsEnd+1)
				bodyStart = argsEnd + 2
			}
			var inline []parser.Node
			if bodyStart >= 0 && bodyEnd >= 0 {
				inline, _ = parseBody(s[bodyStart:bodyEnd])
				i = bodyEnd + 1
			} else {
				i = argsEnd + 1
			}
			nodes = append(nodes, &parser.Choice{Text: text, InlineBody: inline})

		case hasPrefixFold(s, i, "(goto:"):
			flush()
			argsEnd := matchParen(s, i)
			if argsEnd < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			target := unquote(strings.TrimSpace(s[i+len("(goto:") : argsEnd]))
			nodes = append(nodes, &parser.Divert{TargetID: target})
			i = argsEnd + 1

		case hasPrefixFold(s, i, "(print:"):
			flush()
			argsEnd := matchParen(s, i)
			if argsEnd < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			expr, d := translateExpr(s[i+len("(print:") : argsEnd])
			diags = append(diags, d...)
			nodes = append(nodes, &parser.Print{Expr: expr})
			i = argsEnd + 1

		case strings.HasPrefix(s[i:], "[["):
			flush()
			end := strings.Index(s[i:], "]]")
			if end < 0 {
				buf.WriteByte(s[i])
				i++
				continue
			}
			inner := s[i+2 : i+end]
			text, target := splitLinkShorthand(inner)
			nodes = append(nodes, &parser.Choice{Text: text, TargetID: target, HasTarget: true})
			i = i + end + 2

		default:
			buf.WriteByte(s[i])
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
	if idx := strings.Index(inner, "|"); idx >= 0 {
		return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+1:])
	}
	return strings.TrimSpace(inner), strings.TrimSpace(inner)
}

func parseConditionalChain(s string, i int) (cond parser.Expr, then []parser.Node, elsif []parser.CondBranch, els []parser.Node, hasElse bool, next int, diags []diagnostics.Diagnostic) {
	negate := hasPrefixFold(s, i, "(unless:")
	macroLen := len("(if:")
	if negate {
		macroLen = len("(unless:")
	}
	argsEnd := matchParen(s, i)
	if argsEnd < 0 {
		return &parser.Literal{Kind: parser.LitBool, Bool: false}, nil, nil, nil, false, i + 1, diags
	}
	e, d := translateExpr(s[i+macroLen : argsEnd])
	diags = append(diags, d...)
	if negate {
		e = &parser.UnaryOp{Op: parser.UnaryNot, Operand: e}
	}
	cond = e
	pos := argsEnd + 1
	if pos < len(s) && s[pos] == '[' {
		bodyEnd := matchBracket(s, pos)
		then, _ = parseBody(s[pos+1 : bodyEnd])
		pos = bodyEnd + 1
	}
	for {
		trimmedPos := skipWhitespace(s, pos)
		if hasPrefixFold(s, trimmedPos, "(else-if:") {
			branchArgsEnd := matchParen(s, trimmedPos)
			be, bd := translateExpr(s[trimmedPos+len("(else-if:") : branchArgsEnd])
			diags = append(diags, bd...)
			bodyPos := branchArgsEnd + 1
			var body []parser.Node
			if bodyPos < len(s) && s[bodyPos] == '[' {
				bodyEnd := matchBracket(s, bodyPos)
				body, _ = parseBody(s[bodyPos+1 : bodyEnd])
				bodyPos = bodyEnd + 1
			}
			elsif = append(elsif, parser.CondBranch{Cond: be, Body: body})
			pos = bodyPos
			continue
		}
		if hasPrefixFold(s, trimmedPos, "(else:") {
			branchArgsEnd := matchParen(s, trimmedPos)
			bodyPos := branchArgsEnd + 1
			if bodyPos < len(s) && s[bodyPos] == '[' {
				bodyEnd := matchBracket(s, bodyPos)
				els, _ = parseBody(s[bodyPos+1 : bodyEnd])
				bodyPos = bodyEnd + 1
			}
			hasElse = true
			pos = bodyPos
		}
		break
	}
	return cond, then, elsif, els, hasElse, pos, diags
}

func skipWhitespace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\t' || s[i] == '\r') {
		i++
	}
	return i
}

func parseAssign(args string, isPut bool) (parser.Node, []diagnostics.Diagnostic) {
	var varName, exprText string
	if isPut {
		if idx := strings.Index(args, " into "); idx >= 0 {
			exprText = args[:idx]
			varName = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args[idx+len(" into "):]), "$"))
		}
	} else {
		if idx := strings.Index(args, " to "); idx >= 0 {
			varName = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args[:idx]), "$"))
			exprText = args[idx+len(" to "):]
		}
	}
	expr, diags := translateExpr(exprText)
	return &parser.Assignment{Var: varName, Expr: expr}, diags
}

// translateExpr rewrites Harlowe's word operators into WhiskerScript's
// symbolic ones and re-parses the result with the WhiskerScript
// expression grammar (parser.ParseExpr), so Harlowe import/export shares
// one evaluator-facing Expr representation with every other dialect.
func translateExpr(src string) (parser.Expr, []diagnostics.Diagnostic) {
	translated := " " + strings.TrimSpace(src) + " "
	translated = strings.ReplaceAll(translated, " is not ", " != ")
	translated = strings.ReplaceAll(translated, " is in ", " in ")
	translated = strings.ReplaceAll(translated, " is ", " == ")
	translated = strings.TrimSpace(translated)
	file := diagnostics.NewFile("<harlowe-expr>", translated)
	toks := lexer.New(file).Tokenize()
	expr, diags := parser.ParseExpr(file, toks)
	if expr == nil {
		expr = &parser.Literal{Kind: parser.LitNil}
	}
	return expr, diags
}

func hasPrefixFold(s string, i int, prefix string) bool {
	if i < 0 || i+len(prefix) > len(s) {
		return false
	}
	return strings.EqualFold(s[i:i+len(prefix)], prefix)
}

// matchParen finds the ')' matching the '(' at s[start], respecting
// nested parens.
func matchParen(s string, start int) int { return matchBalanced(s, start, '(', ')') }

// matchBracket finds the ']' matching the '[' at s[start].
func matchBracket(s string, start int) int { return matchBalanced(s, start, '[', ']') }

func matchBalanced(s string, start int, open, close byte) int {
	if start >= len(s) || s[start] != open {
		return -1
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
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

func splitTwoStringArgs(args string) (first, second string) {
	parts := strings.SplitN(args, ",", 2)
	first = unquote(parts[0])
	if len(parts) > 1 {
		second = unquote(parts[1])
	}
	return first, second
}

// renderBody is Export's inverse of parseBody for the content node
// variants import can actually produce; nodes with no Harlowe-native
// rendering fall back to their plain text where one exists.
func renderBody(nodes []parser.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		renderNode(&b, n)
	}
	return b.String()
}

func renderNode(b *strings.Builder, n parser.Node) {
	switch v := n.(type) {
	case *parser.Text:
		b.WriteString(v.Literal)
	case *parser.Assignment:
		fmt.Fprintf(b, "(set: $%s to %s)", v.Var, renderExpr(v.Expr))
	case *parser.Print:
		fmt.Fprintf(b, "(print: %s)", renderExpr(v.Expr))
	case *parser.Conditional:
		fmt.Fprintf(b, "(if: %s)[%s]", renderExpr(v.Cond), renderBody(v.Then))
		for _, branch := range v.Elsif {
			fmt.Fprintf(b, "(else-if: %s)[%s]", renderExpr(branch.Cond), renderBody(branch.Body))
		}
		if v.HasElse {
			fmt.Fprintf(b, "(else:)[%s]", renderBody(v.Else))
		}
	case *parser.Choice:
		if v.HasTarget {
			fmt.Fprintf(b, "(link-goto: %q, %q)", v.Text, v.TargetID)
		} else {
			fmt.Fprintf(b, "(link: %q)[%s]", v.Text, renderBody(v.InlineBody))
		}
	case *parser.Divert:
		fmt.Fprintf(b, "(goto: %q)", v.TargetID)
	default:
		b.WriteString("")
	}
}

func renderExpr(e parser.Expr) string {
	switch v := e.(type) {
	case *parser.Literal:
		switch v.Kind {
		case parser.LitNil:
			return "null"
		case parser.LitBool:
			return strconv.FormatBool(v.Bool)
		case parser.LitNumber:
			return strconv.FormatFloat(v.Number, 'g', -1, 64)
		case parser.LitString:
			return strconv.Quote(v.String)
		default:
			return ""
		}
	case *parser.VariableRef:
		return "$" + v.Name
	case *parser.BinaryOp:
		op := string(v.Op)
		switch v.Op {
		case parser.OpEq:
			op = "is"
		case parser.OpNeq:
			op = "is not"
		}
		return fmt.Sprintf("%s %s %s", renderExpr(v.Left), op, renderExpr(v.Right))
	case *parser.LogicalOp:
		return fmt.Sprintf("%s %s %s", renderExpr(v.Left), v.Op, renderExpr(v.Right))
	case *parser.UnaryOp:
		return fmt.Sprintf("not %s", renderExpr(v.Operand))
	default:
		return ""
	}
}
