package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writewhisker/whisker-core/engine"
	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/whisker"
)

func compileOrFail(t *testing.T, src string) *engine.Engine {
	t.Helper()
	result := whisker.Compile(src, whisker.CompileOptions{SourcePath: "t.wsk"})
	for _, d := range result.Diagnostics {
		require.False(t, d.IsFatal(), "unexpected fatal diagnostic: %+v", d)
	}
	require.NotNil(t, result.Story)
	return engine.New(result.Story, config.DefaultConfig().Engine, nil)
}

// scenario 1: linear story, two passages, one choice, ending in Ended.
func TestLinearStoryReachesEnded(t *testing.T) {
	e := compileOrFail(t, ":: Start\nHello\n+ [Go] -> End\n:: End\nBye")

	rendered, err := e.Start()
	require.NoError(t, err)
	assert.Equal(t, "Start", rendered.PassageID)
	require.Len(t, rendered.Choices, 1)
	assert.Equal(t, engine.StateRunning, e.State())

	rendered, err = e.Choose(0)
	require.NoError(t, err)
	assert.Equal(t, "End", rendered.PassageID)
	assert.Empty(t, rendered.Choices)
	assert.Equal(t, engine.StateEnded, e.State())
}

// scenario 2: truthiness guard — $n=0 disables a guarded choice.
func TestTruthinessGuardDisablesChoice(t *testing.T) {
	e := compileOrFail(t, ":: S\n~ $n = 0\n+ [A] { if $n -> A }\n+ [B] -> B\n:: A\nA\n:: B\nB")

	rendered, err := e.Start()
	require.NoError(t, err)

	var texts []string
	for _, c := range rendered.Choices {
		texts = append(texts, c.Text)
	}
	require.Contains(t, texts, "B")
	require.NotContains(t, texts, "A", "choice guarded on a falsy $n must not be offered")
}

// scenario 3: undo round-trip, plus EmptyUndoStack on a second undo.
func TestUndoRestoresPriorStateAndExhausts(t *testing.T) {
	e := compileOrFail(t, ":: Start\nHello\n+ [Go] -> End\n:: End\nBye")

	_, err := e.Start()
	require.NoError(t, err)

	_, err = e.Choose(0)
	require.NoError(t, err)
	assert.Equal(t, engine.StateEnded, e.State())

	rendered, err := e.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Start", rendered.PassageID)
	assert.Equal(t, engine.StateRunning, e.State())

	_, err = e.Undo()
	require.Error(t, err)
	rtErr, ok := err.(*rterr.Error)
	require.True(t, ok)
	assert.Equal(t, rterr.EmptyUndoStack, rtErr.Code)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := compileOrFail(t, ":: Start\nHello\n+ [Go] -> End\n:: End\nBye")
	_, err := e.Start()
	require.NoError(t, err)

	bundle, err := e.Save()
	require.NoError(t, err)

	_, err = e.Choose(0)
	require.NoError(t, err)
	assert.Equal(t, engine.StateEnded, e.State())

	require.NoError(t, e.Load(bundle, engine.LoadOptions{}))
	assert.Equal(t, engine.StateRunning, e.State())

	rendered, err := e.CurrentPassage()
	require.NoError(t, err)
	assert.Equal(t, "Start", rendered.PassageID)
}

// TestSaveLoadSurvivesRealJSONRoundTrip proves spec §4.8/§6's "save
// bundles are stand-alone JSON documents" requirement: a Bundle must
// still restore correctly after going through an actual json.Marshal /
// json.Unmarshal, not just while held as live Go values in memory.
func TestSaveLoadSurvivesRealJSONRoundTrip(t *testing.T) {
	e := compileOrFail(t, ":: Start\n~ $hp = 10\n+ [Go] -> End\n:: End\nBye")
	_, err := e.Start()
	require.NoError(t, err)

	bundle, err := e.Save()
	require.NoError(t, err)

	raw, err := json.Marshal(bundle)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `{map}`, "plugin/variable data must not collapse to Value.String()")

	var revived engine.Bundle
	require.NoError(t, json.Unmarshal(raw, &revived))

	_, err = e.Choose(0)
	require.NoError(t, err)
	assert.Equal(t, engine.StateEnded, e.State())

	require.NoError(t, e.Load(revived, engine.LoadOptions{}))
	assert.Equal(t, engine.StateRunning, e.State())

	rendered, err := e.CurrentPassage()
	require.NoError(t, err)
	assert.Equal(t, "Start", rendered.PassageID)
}

func TestLoadRejectsMismatchedIFIDUnlessAllowed(t *testing.T) {
	e := compileOrFail(t, ":: Start\nHello")
	_, err := e.Start()
	require.NoError(t, err)

	bundle, err := e.Save()
	require.NoError(t, err)
	bundle["story_ifid"] = "not-the-real-ifid"

	err = e.Load(bundle, engine.LoadOptions{})
	require.Error(t, err)

	err = e.Load(bundle, engine.LoadOptions{AllowIFIDMismatch: true})
	require.NoError(t, err)
}

func TestAutosaveFailureIsNonFatal(t *testing.T) {
	result := whisker.Compile(":: Start\nHello\n+ [Go] -> End\n:: End\nBye", whisker.CompileOptions{SourcePath: "t.wsk"})
	for _, d := range result.Diagnostics {
		require.False(t, d.IsFatal(), "unexpected fatal diagnostic: %+v", d)
	}
	cfg := config.DefaultConfig().Engine
	cfg.AutosavePolicy = "per-choice"
	e := engine.New(result.Story, cfg, nil)

	var attempts int
	e.SetAutosave(func(engine.Bundle) error {
		attempts++
		return assertErr{}
	})

	_, err := e.Start()
	require.NoError(t, err)

	rendered, err := e.Choose(0)
	require.NoError(t, err)
	assert.Equal(t, "End", rendered.PassageID, "a failing autosave must not abort the turn")
	assert.Equal(t, 1, attempts)
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated autosave failure" }
