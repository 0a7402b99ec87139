package diagnostics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionAdvanceTabs(t *testing.T) {
	p := Position{Line: 1, Column: 1, Offset: 0}
	p = p.Advance('a')
	assert.Equal(t, 2, p.Column)
	p = p.Advance('\t')
	assert.Equal(t, 9, p.Column, "tab from column 2 should land on the next 8-column boundary")
	p = p.Advance('\n')
	assert.Equal(t, 1, p.Column)
	assert.Equal(t, 2, p.Line)
}

func TestSpanMerge(t *testing.T) {
	a := Span{Start: Position{Offset: 5}, End: Position{Offset: 10}}
	b := Span{Start: Position{Offset: 2}, End: Position{Offset: 7}}
	m := a.Merge(b)
	assert.Equal(t, 2, m.Start.Offset)
	assert.Equal(t, 10, m.End.Offset)
}

func TestFormatSortsByFileLineColumn(t *testing.T) {
	diags := []Diagnostic{
		Newf(CodeUnexpectedToken, SeverityError, Location{Path: "b.wsk", Span: Span{Start: Position{Line: 1, Column: 1}}}, "first"),
		Newf(CodeUnexpectedToken, SeverityError, Location{Path: "a.wsk", Span: Span{Start: Position{Line: 3, Column: 1}}}, "second"),
		Newf(CodeUnexpectedToken, SeverityError, Location{Path: "a.wsk", Span: Span{Start: Position{Line: 1, Column: 5}}}, "third"),
	}
	out := Format(diags, ModeText, nil)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "third")
	assert.Contains(t, lines[1], "second")
	assert.Contains(t, lines[2], "first")
}

func TestFormatAnnotatedRendersSnippet(t *testing.T) {
	file := NewFile("s.wsk", ":: Start\nHello @@\n")
	fs := FileSet{"s.wsk": file}
	diags := []Diagnostic{
		Newf(CodeUnexpectedChar, SeverityError, Location{
			Path: "s.wsk",
			Span: Span{Start: Position{Line: 2, Column: 7}, End: Position{Line: 2, Column: 9}},
		}, "unexpected metadata marker"),
	}
	out := Format(diags, ModeAnnotated, fs)
	assert.Contains(t, out, "s.wsk:2:7")
	assert.Contains(t, out, "Hello @@")
	assert.Contains(t, out, "^^")
}

func TestFormatJSONRoundTripsFields(t *testing.T) {
	diags := []Diagnostic{New(CodeNoPassages, "story has no passages")}
	out := Format(diags, ModeJSON, nil)
	assert.Contains(t, out, `"code": "WSK0290"`)
	assert.Contains(t, out, `"severity": "error"`)
}

func TestHasErrorsAndFatal(t *testing.T) {
	diags := []Diagnostic{{Severity: SeverityWarning, Code: CodeUnusedVariable}}
	assert.False(t, HasErrors(diags))
	assert.False(t, HasFatal(diags))

	diags = append(diags, Diagnostic{Severity: SeverityError, Code: CodeNoStartPassage})
	assert.True(t, HasErrors(diags))
	assert.True(t, HasFatal(diags))
}
