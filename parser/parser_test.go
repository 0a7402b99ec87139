package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/lexer"
)

func parse(t *testing.T, src string) (*Document, []diagnostics.Diagnostic) {
	t.Helper()
	file := diagnostics.NewFile("t.wsk", src)
	toks := lexer.New(file).Tokenize()
	return New(file, toks).Parse()
}

func TestParseLinearStory(t *testing.T) {
	src := ":: Start\nHello\n+ [Go] -> End\n:: End\nBye"
	doc, diags := parse(t, src)
	require.Empty(t, diagnosticErrors(diags))
	require.Len(t, doc.Passages, 2)
	assert.Equal(t, "Start", doc.Passages[0].ID)
	assert.Equal(t, "End", doc.Passages[1].ID)

	var choice *Choice
	for _, n := range doc.Passages[0].Content {
		if c, ok := n.(*Choice); ok {
			choice = c
		}
	}
	require.NotNil(t, choice)
	assert.Equal(t, "Go", choice.Text)
	assert.Equal(t, "End", choice.TargetID)
	assert.True(t, choice.HasTarget)
}

func TestParseGuardedChoice(t *testing.T) {
	src := ":: S\n~ $n = 0\n+ [A] { if $n -> A }\n+ [B] -> B\n:: A\nA\n:: B\nB"
	doc, diags := parse(t, src)
	require.Empty(t, diagnosticErrors(diags))
	require.Len(t, doc.Passages, 3)

	var assign *Assignment
	var guarded *Choice
	for _, n := range doc.Passages[0].Content {
		switch v := n.(type) {
		case *Assignment:
			assign = v
		case *Choice:
			if v.Text == "A" {
				guarded = v
			}
		}
	}
	require.NotNil(t, assign)
	assert.Equal(t, "n", assign.Var)
	require.NotNil(t, guarded)
	require.NotNil(t, guarded.Guard)
	assert.Equal(t, "A", guarded.TargetID)
}

func TestParseConditionalBlock(t *testing.T) {
	src := ":: S\n{ if $x == 2 }Hello{ endif }"
	doc, diags := parse(t, src)
	require.Empty(t, diagnosticErrors(diags))
	require.Len(t, doc.Passages[0].Content, 1)
	cond, ok := doc.Passages[0].Content[0].(*Conditional)
	require.True(t, ok)
	bin, ok := cond.Cond.(*BinaryOp)
	require.True(t, ok)
	assert.Equal(t, OpEq, bin.Op)
	require.Len(t, cond.Then, 1)
}

func TestParsePassageTags(t *testing.T) {
	src := ":: Start [intro, important]\nHi"
	doc, diags := parse(t, src)
	require.Empty(t, diagnosticErrors(diags))
	assert.Equal(t, []string{"intro", "important"}, doc.Passages[0].Tags)
}

func diagnosticErrors(diags []diagnostics.Diagnostic) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError {
			out = append(out, d)
		}
	}
	return out
}
