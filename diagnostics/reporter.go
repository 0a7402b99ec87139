package diagnostics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Mode selects the shape diagnostics are rendered in, per spec §4.1/§6.
type Mode string

const (
	ModeText      Mode = "text"
	ModeAnnotated Mode = "annotated"
	ModeJSON      Mode = "json"
)

// Files resolves a path to the File needed to render an annotated snippet.
// A Reporter is handed one so it doesn't need to own file storage itself.
type Files interface {
	Get(path string) (*File, bool)
}

// FileSet is the trivial map-backed Files implementation.
type FileSet map[string]*File

func (fs FileSet) Get(path string) (*File, bool) {
	f, ok := fs[path]
	return f, ok
}

// Format renders diagnostics in the requested mode. Diagnostics are first
// sorted by (file, line, column) as required by spec §4.1.
func Format(diags []Diagnostic, mode Mode, files Files) string {
	sorted := append([]Diagnostic(nil), diags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i]) < sortKey(sorted[j])
	})

	switch mode {
	case ModeJSON:
		return formatJSON(sorted)
	case ModeAnnotated:
		return formatAnnotated(sorted, files)
	default:
		return formatText(sorted)
	}
}

func sortKey(d Diagnostic) string {
	if d.PrimarySpan == nil {
		return fmt.Sprintf("~\x00%s", d.Message)
	}
	p := d.PrimarySpan
	return fmt.Sprintf("%s\x00%08d\x00%08d", p.Path, p.Span.Start.Line, p.Span.Start.Column)
}

func formatText(diags []Diagnostic) string {
	var b strings.Builder
	for i, d := range diags {
		if i > 0 {
			b.WriteByte('\n')
		}
		if d.PrimarySpan != nil {
			fmt.Fprintf(&b, "%s:%d:%d: %s[%s]: %s",
				d.PrimarySpan.Path, d.PrimarySpan.Span.Start.Line, d.PrimarySpan.Span.Start.Column,
				d.Severity, d.Code, d.Message)
		} else {
			fmt.Fprintf(&b, "%s[%s]: %s", d.Severity, d.Code, d.Message)
		}
		if d.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", d.Suggestion)
		}
	}
	return b.String()
}

// formatAnnotated renders a Rust-style gutter + caret snippet under each
// diagnostic that has a primary span and a resolvable source file.
func formatAnnotated(diags []Diagnostic, files Files) string {
	var b strings.Builder
	for i, d := range diags {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if d.PrimarySpan == nil {
			fmt.Fprintf(&b, "%s[%s]: %s", d.Severity, d.Code, d.Message)
			continue
		}
		p := d.PrimarySpan
		fmt.Fprintf(&b, "%s[%s]: %s\n", d.Severity, d.Code, d.Message)
		fmt.Fprintf(&b, "  --> %s:%d:%d\n", p.Path, p.Span.Start.Line, p.Span.Start.Column)

		var file *File
		if files != nil {
			file, _ = files.Get(p.Path)
		}
		if file == nil {
			continue
		}
		lineNo := p.Span.Start.Line
		gutter := fmt.Sprintf("%d", lineNo)
		pad := strings.Repeat(" ", len(gutter))
		fmt.Fprintf(&b, "%s |\n", pad)
		fmt.Fprintf(&b, "%s | %s\n", gutter, file.Line(lineNo))

		caretCol := p.Span.Start.Column
		caretLen := 1
		if p.Span.End.Line == p.Span.Start.Line && p.Span.End.Column > p.Span.Start.Column {
			caretLen = p.Span.End.Column - p.Span.Start.Column
		}
		fmt.Fprintf(&b, "%s | %s%s\n", pad, strings.Repeat(" ", max(caretCol-1, 0)), strings.Repeat("^", caretLen))
		for _, sec := range d.SecondarySpans {
			fmt.Fprintf(&b, "%s = note: %s (line %d)\n", pad, sec.Label, sec.Span.Start.Line)
		}
		if d.Suggestion != "" {
			fmt.Fprintf(&b, "%s = suggestion: %s\n", pad, d.Suggestion)
		}
	}
	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// jsonDiagnostic is the wire shape for ModeJSON; strings are escaped by
// encoding/json, so no manual escaping is needed here.
type jsonDiagnostic struct {
	Code       Code             `json:"code"`
	Severity   Severity         `json:"severity"`
	Message    string           `json:"message"`
	Path       string           `json:"path,omitempty"`
	Line       int              `json:"line,omitempty"`
	Column     int              `json:"column,omitempty"`
	EndLine    int              `json:"end_line,omitempty"`
	EndColumn  int              `json:"end_column,omitempty"`
	Suggestion string           `json:"suggestion,omitempty"`
	Notes      []jsonSecondary  `json:"notes,omitempty"`
}

type jsonSecondary struct {
	Label  string `json:"label"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func formatJSON(diags []Diagnostic) string {
	out := make([]jsonDiagnostic, 0, len(diags))
	for _, d := range diags {
		jd := jsonDiagnostic{
			Code:       d.Code,
			Severity:   d.Severity,
			Message:    d.Message,
			Suggestion: d.Suggestion,
		}
		if d.PrimarySpan != nil {
			jd.Path = d.PrimarySpan.Path
			jd.Line = d.PrimarySpan.Span.Start.Line
			jd.Column = d.PrimarySpan.Span.Start.Column
			jd.EndLine = d.PrimarySpan.Span.End.Line
			jd.EndColumn = d.PrimarySpan.Span.End.Column
		}
		for _, sec := range d.SecondarySpans {
			jd.Notes = append(jd.Notes, jsonSecondary{
				Label: sec.Label, Line: sec.Span.Start.Line, Column: sec.Span.Start.Column,
			})
		}
		out = append(out, jd)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
