package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/lexer"
	"github.com/writewhisker/whisker-core/parser"
)

func analyze(t *testing.T, src string, opts Options) (*Table, []diagnostics.Diagnostic) {
	t.Helper()
	file := diagnostics.NewFile("t.wsk", src)
	toks := lexer.New(file).Tokenize()
	doc, parseDiags := parser.New(file, toks).Parse()
	require.Empty(t, filterSeverity(parseDiags, diagnostics.SeverityError))
	return Analyze(doc, opts)
}

func filterSeverity(diags []diagnostics.Diagnostic, sev diagnostics.Severity) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

func hasCode(diags []diagnostics.Diagnostic, code diagnostics.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestAnalyzeLinearStoryNoDiagnostics(t *testing.T) {
	src := ":: Start\nHello\n+ [Go] -> End\n:: End\nBye"
	_, diags := analyze(t, src, DefaultOptions())
	assert.False(t, hasCode(diags, diagnostics.CodeUnreachablePassage))
	assert.False(t, hasCode(diags, diagnostics.CodeUnresolvedReference))
}

func TestAnalyzeUnresolvedReferenceIsAdvisory(t *testing.T) {
	src := ":: Start\nHello\n+ [Go] -> Nowhere"
	table, diags := analyze(t, src, DefaultOptions())
	require.True(t, hasCode(diags, diagnostics.CodeUnresolvedReference))
	for _, d := range diags {
		if d.Code == diagnostics.CodeUnresolvedReference {
			assert.Equal(t, diagnostics.SeverityWarning, d.Severity, "unresolved reference must not be a hard error")
		}
	}
	_, ok := table.Get("Start")
	assert.True(t, ok)
}

func TestAnalyzeUnreachablePassage(t *testing.T) {
	src := ":: Start\nHello\n:: Orphan\nNever visited"
	_, diags := analyze(t, src, DefaultOptions())
	require.True(t, hasCode(diags, diagnostics.CodeUnreachablePassage))
}

func TestAnalyzeEmptyPassage(t *testing.T) {
	src := ":: Start\n"
	_, diags := analyze(t, src, DefaultOptions())
	assert.True(t, hasCode(diags, diagnostics.CodeEmptyPassage))
}

func TestAnalyzeUnusedVariable(t *testing.T) {
	src := ":: Start\n~ $unused = 1\nHello"
	_, diags := analyze(t, src, DefaultOptions())
	require.True(t, hasCode(diags, diagnostics.CodeUnusedVariable))
}

func TestAnalyzeUsedVariableIsNotFlagged(t *testing.T) {
	src := ":: Start\n~ $n = 1\n{$n}"
	_, diags := analyze(t, src, DefaultOptions())
	assert.False(t, hasCode(diags, diagnostics.CodeUnusedVariable))
}

func TestAnalyzeNoPassagesIsFatal(t *testing.T) {
	file := diagnostics.NewFile("t.wsk", "")
	toks := lexer.New(file).Tokenize()
	doc, _ := parser.New(file, toks).Parse()
	_, diags := Analyze(doc, DefaultOptions())
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeNoPassages, diags[0].Code)
	assert.True(t, diags[0].IsFatal())
}

func TestAnalyzeMissingStartPassage(t *testing.T) {
	src := ":: Intro\nHello"
	opts := DefaultOptions()
	opts.StartPassageID = "Start"
	_, diags := analyze(t, src, opts)
	require.True(t, hasCode(diags, diagnostics.CodeNoStartPassage))
}

func TestAnalyzeDuplicatePassageFirstWins(t *testing.T) {
	src := ":: Start\nFirst\n:: Start\nSecond"
	table, diags := analyze(t, src, DefaultOptions())
	require.True(t, hasCode(diags, diagnostics.CodeDuplicatePassage))
	p, ok := table.Get("Start")
	require.True(t, ok)
	text, _ := p.Content[0].(*parser.Text)
	require.NotNil(t, text)
	assert.Equal(t, "First", text.Literal)
}

func TestAnalyzeDuplicatePassageLastWins(t *testing.T) {
	src := ":: Start\nFirst\n:: Start\nSecond"
	opts := DefaultOptions()
	opts.DuplicatePassagePolicy = LastWins
	table, diags := analyze(t, src, opts)
	require.True(t, hasCode(diags, diagnostics.CodeDuplicatePassage))
	p, ok := table.Get("Start")
	require.True(t, ok)
	text, _ := p.Content[0].(*parser.Text)
	require.NotNil(t, text)
	assert.Equal(t, "Second", text.Literal)
}

func TestAnalyzeDuplicatePassageReject(t *testing.T) {
	src := ":: Start\nFirst\n:: Start\nSecond"
	opts := DefaultOptions()
	opts.DuplicatePassagePolicy = Reject
	_, diags := analyze(t, src, opts)
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeMalformedAST, diags[0].Code)
	assert.True(t, diags[0].IsFatal())
}
