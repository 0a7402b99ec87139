package chapbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

const sampleHTML = `<tw-storydata name="Test" startnode="1" ifid="ABC" format="Chapbook" format-version="1.2.3">
<tw-passagedata pid="1" name="Start" tags="" position="0,0">n: 1
--
Hello {n}[[Go->End]][after 2s]Later[align center]</tw-passagedata>
<tw-passagedata pid="2" name="End" tags="" position="100,0">[if n]Yes[continue]</tw-passagedata>
</tw-storydata>`

func TestImportParsesInterpolationLinksAndDirectives(t *testing.T) {
	a := Adapter{}
	require.True(t, a.CanImport(sampleHTML))

	s, diags := a.Import(sampleHTML)
	require.NotNil(t, s)
	_ = diags
	assert.Equal(t, "Start", s.StartPassageID)
	require.Len(t, s.Variables, 1)
	assert.Equal(t, "n", s.Variables[0].Name)

	start, ok := s.GetPassage("Start")
	require.True(t, ok)
	var interp *parser.Interpolation
	var choice *parser.Choice
	var warnCount int
	for _, n := range start.Content {
		switch v := n.(type) {
		case *parser.Interpolation:
			interp = v
		case *parser.Choice:
			choice = v
		case *parser.Warning:
			warnCount++
		}
	}
	require.NotNil(t, interp)
	require.NotNil(t, choice)
	assert.Equal(t, "End", choice.TargetID)
	assert.Equal(t, 2, warnCount)

	end, ok := s.GetPassage("End")
	require.True(t, ok)
	require.Len(t, end.Content, 1)
	_, ok = end.Content[0].(*parser.Conditional)
	require.True(t, ok)
}

func TestExportRendersPassages(t *testing.T) {
	s := story.New("Roundtrip")
	s.StartPassageID = "Start"
	_ = s.AddPassage(&story.Passage{ID: "Start", Content: []parser.Node{
		&parser.Text{Literal: "Hi "},
		&parser.Choice{Text: "Go", TargetID: "End", HasTarget: true},
	}})
	_ = s.AddPassage(&story.Passage{ID: "End", Content: []parser.Node{&parser.Text{Literal: "Bye"}}})

	out, diags := Adapter{}.Export(s, formats.Options{})
	assert.Empty(t, diags)
	assert.Contains(t, out, "tw-storydata")
	assert.Contains(t, out, "Go")
}
