package ink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/formats"
	"github.com/writewhisker/whisker-core/parser"
	"github.com/writewhisker/whisker-core/story"
)

func TestSanitizeKnotName(t *testing.T) {
	assert.Equal(t, "the_start", sanitizeKnotName("The Start"))
	assert.Equal(t, "_1st_room", sanitizeKnotName("1st Room"))
	assert.Equal(t, "a_b_c", sanitizeKnotName("A.B-C"))
}

// TestExportMatchesInkRuntimeSchema is spec §8 scenario 5, byte for
// byte: a Story with passages "Start" and "End 1" and a divert
// Start -> "End 1" exports to JSON with inkVersion 20, a knot keyed
// "end_1", and root containing [["->","start"], "done", ["#f",1]].
func TestExportMatchesInkRuntimeSchema(t *testing.T) {
	s := story.New("Cave")
	s.StartPassageID = "Start"
	require.NoError(t, s.AddPassage(&story.Passage{ID: "Start", Content: []parser.Node{
		&parser.Divert{TargetID: "End 1"},
	}}))
	require.NoError(t, s.AddPassage(&story.Passage{ID: "End 1", Content: []parser.Node{
		&parser.Text{Literal: "Bye"},
	}}))

	out, diags := Adapter{}.Export(s, formats.Options{})
	assert.Empty(t, diags)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, float64(20), decoded["inkVersion"])
	assert.Contains(t, decoded, "listDefs")
	assert.Contains(t, decoded, "end_1", "knot key end_1 must be present")

	root, ok := decoded["root"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{
		[]any{"->", "start"},
		"done",
		[]any{"#f", float64(1)},
	}, root)

	endKnot, ok := decoded["end_1"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{
		[]any{"^", "Bye"},
		"\n",
		"done",
		[]any{"#f", float64(1)},
	}, endKnot)

	startKnot, ok := decoded["start"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{
		[]any{"->", "end_1"},
		[]any{"#f", float64(1)},
	}, startKnot)
}

func TestExportImportRoundTrips(t *testing.T) {
	s := story.New("Cave")
	s.StartPassageID = "Start"
	require.NoError(t, s.AddPassage(&story.Passage{ID: "Start", Content: []parser.Node{
		&parser.Text{Literal: "You enter a cave."},
		&parser.Choice{Text: "Go deeper", TargetID: "Deep", HasTarget: true},
	}}))
	require.NoError(t, s.AddPassage(&story.Passage{ID: "Deep", Content: []parser.Node{
		&parser.Text{Literal: "It's dark."},
	}}))

	out, diags := Adapter{}.Export(s, formats.Options{})
	assert.Empty(t, diags)
	require.True(t, Adapter{}.CanImport(out))

	imported, importDiags := Adapter{}.Import(out)
	assert.Empty(t, importDiags)
	require.NotNil(t, imported)
	assert.Equal(t, "start", imported.StartPassageID, "imported passage ids are the sanitized knot names")

	start, ok := imported.GetPassage("start")
	require.True(t, ok)
	var choice *parser.Choice
	for _, n := range start.Content {
		if c, ok := n.(*parser.Choice); ok {
			choice = c
		}
	}
	require.NotNil(t, choice)
	assert.Equal(t, "Go deeper", choice.Text)
	assert.Equal(t, "deep", choice.TargetID)

	deep, ok := imported.GetPassage("deep")
	require.True(t, ok)
	var text *parser.Text
	for _, n := range deep.Content {
		if txt, ok := n.(*parser.Text); ok {
			text = txt
		}
	}
	require.NotNil(t, text)
	assert.Equal(t, "It's dark.\n", text.Literal, "export appends Ink's glue newline, a documented lossy normalization")
}

func TestExportFlagsRawEscapeHatch(t *testing.T) {
	s := story.New("WithRaw")
	s.StartPassageID = "Start"
	require.NoError(t, s.AddPassage(&story.Passage{ID: "Start", Content: []parser.Node{
		&parser.Raw{Text: "<script>alert(1)</script>", OriginalDialect: "sugarcube"},
	}}))

	_, diags := Adapter{}.Export(s, formats.Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "WSK0104", string(diags[0].Code))
}

func TestExportFlagsKnotNameCollision(t *testing.T) {
	s := story.New("Collide")
	s.StartPassageID = "A.B"
	require.NoError(t, s.AddPassage(&story.Passage{ID: "A.B", Content: []parser.Node{&parser.Text{Literal: "x"}}}))
	require.NoError(t, s.AddPassage(&story.Passage{ID: "A-B", Content: []parser.Node{&parser.Text{Literal: "y"}}}))

	_, diags := Adapter{}.Export(s, formats.Options{})
	require.Len(t, diags, 1)
	assert.Equal(t, "WSK0200", string(diags[0].Code))
}
