package harlowe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

const sampleHTML = `<tw-storydata name="Test" startnode="1" ifid="ABC" format="Harlowe" format-version="3.3.0">
<tw-passagedata pid="1" name="Start" tags="intro" position="0,0">Hello (set: $n to 1)(link-goto: "Go", "End")</tw-passagedata>
<tw-passagedata pid="2" name="End" tags="" position="100,0">(if: $n is 1)[Yes](else:)[No]</tw-passagedata>
</tw-storydata>`

func TestImportParsesPassagesAndMacros(t *testing.T) {
	a := Adapter{}
	require.True(t, a.CanImport(sampleHTML))

	s, diags := a.Import(sampleHTML)
	require.Empty(t, errorDiags(diags))
	require.NotNil(t, s)
	assert.Equal(t, "Start", s.StartPassageID)

	start, ok := s.GetPassage("Start")
	require.True(t, ok)
	var assign *parser.Assignment
	var choice *parser.Choice
	for _, n := range start.Content {
		switch v := n.(type) {
		case *parser.Assignment:
			assign = v
		case *parser.Choice:
			choice = v
		}
	}
	require.NotNil(t, assign)
	assert.Equal(t, "n", assign.Var)
	require.NotNil(t, choice)
	assert.Equal(t, "End", choice.TargetID)

	end, ok := s.GetPassage("End")
	require.True(t, ok)
	require.Len(t, end.Content, 1)
	cond, ok := end.Content[0].(*parser.Conditional)
	require.True(t, ok)
	assert.True(t, cond.HasElse)
}

func TestExportRendersStoryData(t *testing.T) {
	s := story.New("Roundtrip")
	s.StartPassageID = "Start"
	_ = s.AddPassage(&story.Passage{ID: "Start", Content: []parser.Node{
		&parser.Text{Literal: "Hi"},
		&parser.Choice{Text: "Go", TargetID: "End", HasTarget: true},
	}})
	_ = s.AddPassage(&story.Passage{ID: "End", Content: []parser.Node{&parser.Text{Literal: "Bye"}}})

	out, diags := Adapter{}.Export(s, formats.Options{})
	assert.Empty(t, diags)
	assert.Contains(t, out, "tw-storydata")
	assert.Contains(t, out, "link-goto")
}

func errorDiags(diags []diagnostics.Diagnostic) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError {
			out = append(out, d)
		}
	}
	return out
}
