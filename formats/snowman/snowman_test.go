package snowman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

const sampleHTML = `<tw-storydata name="Test" startnode="1" ifid="ABC" format="Snowman" format-version="2.0.2">
<tw-passagedata pid="1" name="Start" tags="" position="0,0">Hello <%= n %><% window.n = 1; %><a data-passage="End">Go</a></tw-passagedata>
<tw-passagedata pid="2" name="End" tags="" position="100,0">Bye</tw-passagedata>
</tw-storydata>`

func TestImportParsesInterpolationCodeAndLinks(t *testing.T) {
	a := Adapter{}
	require.True(t, a.CanImport(sampleHTML))

	s, diags := a.Import(sampleHTML)
	require.NotNil(t, s)
	assert.NotEmpty(t, diags) // the raw JS block is flagged
	assert.Equal(t, "Start", s.StartPassageID)

	start, ok := s.GetPassage("Start")
	require.True(t, ok)
	var interp *parser.Interpolation
	var raw *parser.Raw
	var choice *parser.Choice
	for _, n := range start.Content {
		switch v := n.(type) {
		case *parser.Interpolation:
			interp = v
		case *parser.Raw:
			raw = v
		case *parser.Choice:
			choice = v
		}
	}
	require.NotNil(t, interp)
	require.NotNil(t, raw)
	assert.Equal(t, "snowman", raw.OriginalDialect)
	require.NotNil(t, choice)
	assert.Equal(t, "End", choice.TargetID)
	assert.Equal(t, "Go", choice.Text)
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
	assert.Contains(t, out, `data-passage="End"`)
}
