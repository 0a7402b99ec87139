package story

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/parser"
)

func TestAddPassageRejectsEmptyAndDuplicateIDs(t *testing.T) {
	s := New("Test")
	require.NoError(t, s.AddPassage(&Passage{ID: "Start"}))

	err := s.AddPassage(&Passage{ID: ""})
	assert.Error(t, err)

	err = s.AddPassage(&Passage{ID: "Start"})
	assert.Error(t, err)
}

func TestValidateReportsNoPassages(t *testing.T) {
	s := New("Empty")
	diags := s.Validate()
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeNoPassages, diags[0].Code)
}

func TestValidateReportsMissingAndUnresolvableStart(t *testing.T) {
	s := New("Test")
	require.NoError(t, s.AddPassage(&Passage{ID: "Start"}))

	diags := s.Validate()
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeNoStartPassage, diags[0].Code)

	s.StartPassageID = "Nowhere"
	diags = s.Validate()
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.CodeNoStartPassage, diags[0].Code)

	s.StartPassageID = "Start"
	assert.Empty(t, s.Validate())
}

func TestGetAllPassagesPreservesInsertionOrder(t *testing.T) {
	s := New("Test")
	require.NoError(t, s.AddPassage(&Passage{ID: "C"}))
	require.NoError(t, s.AddPassage(&Passage{ID: "A"}))
	require.NoError(t, s.AddPassage(&Passage{ID: "B"}))

	var ids []string
	for _, p := range s.GetAllPassages() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)
}

func TestValueEqualAndClone(t *testing.T) {
	a := Arr(Int(1), Str("x"), NewMap().Set("k", Bool(true)))
	b := Clone(a)
	assert.True(t, Equal(a, b))

	b.Array()[0] = Int(2)
	assert.False(t, Equal(a, b), "clone must be deep, not aliasing the backing array")
}

func TestIsZeroNumberIncludesNegativeZero(t *testing.T) {
	assert.True(t, Float(0).IsZeroNumber())
	assert.True(t, Float(-0.0).IsZeroNumber())
	assert.True(t, Int(0).IsZeroNumber())
	assert.False(t, Int(1).IsZeroNumber())
	assert.False(t, Str("0").IsZeroNumber())
}

func TestMetadataPreservesInsertionOrder(t *testing.T) {
	var m Metadata
	m.Set("b", "2")
	m.Set("a", "1")
	m.Set("b", "20")
	assert.Equal(t, []string{"b", "a"}, m.Keys())
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "20", v)
}

func TestMarshalCanonicalRoundTripsAndIsStable(t *testing.T) {
	s := New("My Story")
	s.StartPassageID = "Start"
	require.NoError(t, s.AddPassage(&Passage{ID: "Start", DisplayName: "Start"}))
	s.Variables = append(s.Variables, VariableDecl{Name: "n", Initial: Int(0)})

	out1, err := MarshalCanonical(s)
	require.NoError(t, err)
	out2, err := MarshalCanonical(s)
	require.NoError(t, err)
	assert.Equal(t, string(out1), string(out2), "encoding the same story twice must byte-for-byte match")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out1, &decoded))
	assert.Equal(t, "My Story", decoded["title"])
	assert.Equal(t, "Start", decoded["start_passage_id"])
}

// TestCanonicalRoundTripIsIdentity exercises spec §8's "round-trip (IR →
// canonical JSON → IR) is the identity on all reachable IR shapes"
// property across every content and expression node variant, including
// the literal array/map kinds that once vanished on encode.
func TestCanonicalRoundTripIsIdentity(t *testing.T) {
	s := New("Round Trip")
	s.StartPassageID = "Start"
	s.GlobalCSS = "body { color: red; }"
	s.GlobalScript = "~ $seen = 0"
	s.SetMetadata("engine", "whisker")
	s.Variables = append(s.Variables,
		VariableDecl{Name: "hp", Initial: Int(10)},
		VariableDecl{Name: "tags", Initial: Arr(Str("a"), Str("b"))},
		VariableDecl{Name: "inventory", Initial: NewMap().Set("sword", Bool(true))},
	)

	start := &Passage{
		ID:          "Start",
		DisplayName: "Start",
		Tags:        nil,
		HasPosition: true,
		PositionX:   12,
		PositionY:   34,
		Content: []parser.Node{
			&parser.Text{Literal: "Hello", Flags: []parser.FormatFlag{parser.FormatBold}},
			&parser.Interpolation{Expr: &parser.VariableRef{Name: "hp"}},
			&parser.Conditional{
				Cond: &parser.BinaryOp{Op: parser.OpGt, Left: &parser.VariableRef{Name: "hp"}, Right: &parser.Literal{Kind: parser.LitNumber, Number: 0}},
				Then: []parser.Node{&parser.Text{Literal: "alive"}},
				Elsif: []parser.CondBranch{
					{Cond: &parser.Literal{Kind: parser.LitBool, Bool: true}, Body: []parser.Node{&parser.Text{Literal: "fallback"}}},
				},
				Else:    []parser.Node{&parser.Text{Literal: "dead"}},
				HasElse: true,
			},
			&parser.Assignment{Var: "hp", Expr: &parser.BinaryOp{Op: parser.OpSub, Left: &parser.VariableRef{Name: "hp"}, Right: &parser.Literal{Kind: parser.LitNumber, Number: 1}}},
			&parser.ScriptBlock{Text: "~ $hp = $hp - 1"},
			&parser.Choice{
				Text: "Go", TargetID: "End", HasTarget: true,
				Guard:    &parser.UnaryOp{Op: parser.UnaryNot, Operand: &parser.VariableRef{Name: "done"}},
				Action:   &parser.FunctionCall{Name: "log", Args: []parser.Expr{&parser.Literal{Kind: parser.LitString, String: "chose Go"}}},
				Metadata: map[string]string{"weight": "2"},
			},
			&parser.Divert{TargetID: "End"},
			&parser.Print{Expr: &parser.Literal{
				Kind:  parser.LitArray,
				Array: []parser.Expr{&parser.Literal{Kind: parser.LitNumber, Number: 1}, &parser.Literal{Kind: parser.LitString, String: "two"}},
			}},
			&parser.Print{Expr: &parser.Literal{
				Kind: parser.LitMap,
				Map:  []parser.MapPair{{Key: "k", Value: &parser.Literal{Kind: parser.LitBool, Bool: true}}},
			}},
			&parser.Print{Expr: &parser.MapLiteral{Pairs: []parser.MapPair{{Key: "x", Value: &parser.ArrayLiteral{Items: []parser.Expr{&parser.VariableRef{Name: "hp"}}}}}}},
			&parser.ForEach{Binder: "t", Collection: &parser.VariableRef{Name: "tags"}, Body: []parser.Node{&parser.Print{Expr: &parser.VariableRef{Name: "t"}}}},
			&parser.Blockquote{Depth: 1, Body: []parser.Node{&parser.Text{Literal: "quoted"}}},
			&parser.ListItem{Ordered: true, Body: []parser.Node{&parser.Text{Literal: "item"}}},
			&parser.HorizontalRule{},
			&parser.NamedHook{Name: "hook", Visible: true, Body: []parser.Node{&parser.Text{Literal: "hidden"}}},
			&parser.Warning{Message: "unresolved macro"},
		},
		OnEnterScript: &parser.LogicalOp{Op: parser.LogicalAnd, Left: &parser.VariableRef{Name: "a"}, Right: &parser.VariableRef{Name: "b"}},
		OnExitScript:  &parser.Raw{Text: "<<print 1>>", OriginalDialect: "harlowe"},
	}
	start.Metadata.Set("author_note", "opening beat")
	require.NoError(t, s.AddPassage(start))
	require.NoError(t, s.AddPassage(&Passage{ID: "End", DisplayName: "End", Content: []parser.Node{&parser.Text{Literal: "Bye"}}}))

	raw, err := MarshalCanonical(s)
	require.NoError(t, err)

	decodedStory, err := DecodeCanonical(raw)
	require.NoError(t, err)

	reencoded, err := MarshalCanonical(decodedStory)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(reencoded), "decoding then re-encoding must reproduce byte-identical canonical JSON")

	assert.Equal(t, "Round Trip", decodedStory.MetaInfo.Title)
	assert.Equal(t, s.GlobalCSS, decodedStory.GlobalCSS)
	assert.Equal(t, s.GlobalScript, decodedStory.GlobalScript)
	engineExtra, ok := decodedStory.MetaInfo.Extras.Get("engine")
	require.True(t, ok)
	assert.Equal(t, "whisker", engineExtra)

	require.Len(t, decodedStory.Variables, 3)
	assert.True(t, Equal(Int(10), decodedStory.Variables[0].Initial))
	assert.True(t, Equal(Arr(Str("a"), Str("b")), decodedStory.Variables[1].Initial))
	assert.True(t, Equal(NewMap().Set("sword", Bool(true)), decodedStory.Variables[2].Initial))

	decodedStart, ok := decodedStory.GetPassage("Start")
	require.True(t, ok)
	require.Len(t, decodedStart.Content, 16)

	text, ok := decodedStart.Content[0].(*parser.Text)
	require.True(t, ok)
	assert.Equal(t, "Hello", text.Literal)
	assert.Equal(t, []parser.FormatFlag{parser.FormatBold}, text.Flags)

	choice, ok := decodedStart.Content[5].(*parser.Choice)
	require.True(t, ok)
	assert.Equal(t, "End", choice.TargetID)
	assert.Equal(t, map[string]string{"weight": "2"}, choice.Metadata)
	require.NotNil(t, choice.Guard)
	require.NotNil(t, choice.Action)

	arrPrint, ok := decodedStart.Content[7].(*parser.Print)
	require.True(t, ok)
	arrLit, ok := arrPrint.Expr.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, parser.LitArray, arrLit.Kind)
	require.Len(t, arrLit.Array, 2)

	mapPrint, ok := decodedStart.Content[8].(*parser.Print)
	require.True(t, ok)
	mapLit, ok := mapPrint.Expr.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, parser.LitMap, mapLit.Kind)
	require.Len(t, mapLit.Map, 1)
	assert.Equal(t, "k", mapLit.Map[0].Key)

	note, ok := decodedStart.Metadata.Get("author_note")
	require.True(t, ok)
	assert.Equal(t, "opening beat", note)
}
