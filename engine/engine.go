package engine

import (
	"fmt"
	"time"

	"github.com/writewhisker/whisker-core/capability"
	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/interp"
	"github.com/writewhisker/whisker-core/plugin"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/story"
)

// Engine drives a single Story through the state machine of spec §4.8. It
// is single-threaded and non-re-entrant: one Engine per session (spec
// §5); hosts wanting parallel sessions construct one Engine each.
type Engine struct {
	story  *story.Story
	cfg    config.EngineConfig
	kernel *plugin.Kernel

	state    State
	gs       *GameState
	undo     *undoStack
	choices  []EnabledChoice
	autosave func(Bundle) error
}

// SetAutosave installs the function maybeAutosave calls according to
// cfg.AutosavePolicy ("off" | "per-choice" | "per-passage"). A nil
// autosave function (the default) makes autosave a no-op regardless of
// policy, since the engine has no host-provided persistence target.
func (e *Engine) SetAutosave(fn func(Bundle) error) { e.autosave = fn }

// New constructs an Engine over s. kernel may be nil for a plugin-free
// run.
func New(s *story.Story, cfg config.EngineConfig, kernel *plugin.Kernel) *Engine {
	return &Engine{
		story:  s,
		cfg:    cfg,
		kernel: kernel,
		state:  StateLoaded,
		undo:   newUndoStack(cfg.MaxUndoSteps),
	}
}

func (e *Engine) interpreter() *interp.Interpreter {
	budget := interp.NewBudget(e.cfg.MaxInstructions, time.Duration(e.cfg.MaxExecutionTimeMs)*time.Millisecond)
	return interp.New(&stateView{gs: e.gs}, capability.AllSet(), budget)
}

func (e *Engine) observe(name plugin.HookName, payload interface{}) {
	if e.kernel != nil {
		e.kernel.DispatchObserver(name, payload)
	}
}

func (e *Engine) transform(name plugin.HookName, value interface{}) interface{} {
	if e.kernel == nil {
		return value
	}
	return e.kernel.DispatchTransform(name, value)
}

// Start transitions Loaded → Running and renders the start passage.
func (e *Engine) Start() (*Rendered, error) {
	if e.state != StateLoaded && e.state != StateUninitialized {
		return nil, fmt.Errorf("engine: Start called from state %q", e.state)
	}
	if e.story.StartPassageID == "" || !e.story.Has(e.story.StartPassageID) {
		return nil, rterr.New(rterr.UnknownPassage, "story has no resolvable start passage")
	}
	e.gs = newGameState(e.story.Variables)
	e.undo.reset()
	e.state = StateRunning
	e.observe(plugin.HookStoryStart, e.story)
	return e.enterPassage(e.story.StartPassageID)
}

// CurrentPassage returns the most recently rendered turn without
// advancing the engine.
func (e *Engine) CurrentPassage() (*Rendered, error) {
	if e.gs == nil {
		return nil, fmt.Errorf("engine: not started")
	}
	p, ok := e.story.GetPassage(e.gs.CurrentPassageID)
	if !ok {
		return nil, rterr.New(rterr.UnknownPassage, e.gs.CurrentPassageID)
	}
	return e.renderPassage(p)
}

// enterPassage performs the passage-execution steps of spec §4.8: visit
// counting and history recording, on_passage_enter, on_enter_script in a
// fresh temp scope, then content rendering with on_choice_present.
func (e *Engine) enterPassage(id string) (*Rendered, error) {
	p, ok := e.story.GetPassage(id)
	if !ok {
		return nil, rterr.New(rterr.UnknownPassage, id)
	}
	e.gs.Visited[id]++
	e.gs.CurrentPassageID = id
	e.gs.History = append(e.gs.History, id)
	e.gs.TempVariables = story.NewMap()

	e.observe(plugin.HookPassageEnter, p)

	if p.OnEnterScript != nil {
		in := e.interpreter()
		if _, _, err := in.Eval(p.OnEnterScript); err != nil {
			return e.abortTurn(err)
		}
	}

	rendered, err := e.renderPassage(p)
	if err != nil {
		return nil, err
	}
	if len(rendered.Choices) == 0 && rendered.AutoDivert == "" {
		e.state = StateEnded
	}
	e.maybeAutosave()
	return rendered, nil
}

func (e *Engine) renderPassage(p *story.Passage) (*Rendered, error) {
	in := e.interpreter()
	text, choices, divert, diags, err := renderNodes(in, p.Content, e.onAssign)
	if err != nil {
		return e.abortTurn(err)
	}

	presented := e.transform(plugin.HookChoicePresent, choices)
	if pc, ok := presented.([]EnabledChoice); ok {
		choices = pc
	}
	e.choices = choices

	rendered := &Rendered{PassageID: p.ID, Text: text, Choices: choices, AutoDivert: divert, Diags: diags}

	renderedText := e.transform(plugin.HookPassageRender, rendered.Text)
	if rt, ok := renderedText.(string); ok {
		rendered.Text = rt
	}

	if divert != "" {
		return e.enterPassage(divert)
	}
	return rendered, nil
}

func (e *Engine) onAssign(name string, v story.Value) {
	e.observe(plugin.HookStateChange, map[string]interface{}{"name": name, "value": v.String()})
}

// Choose applies the choice at index, following the spec §4.8
// choice-selection steps: undo snapshot, on_choice_select, the choice's
// action script, then either the target passage or its inline body.
func (e *Engine) Choose(index int) (*Rendered, error) {
	if e.state != StateRunning {
		return nil, fmt.Errorf("engine: Choose called from state %q", e.state)
	}
	if index < 0 || index >= len(e.choices) {
		return nil, fmt.Errorf("engine: choice index %d out of range", index)
	}
	choice := e.choices[index]

	e.undo.push(e.gs.clone())
	e.gs.ChoiceStack = append(e.gs.ChoiceStack, index)
	e.observe(plugin.HookChoiceSelect, choice)

	if choice.action != nil {
		in := e.interpreter()
		if _, _, err := in.Eval(choice.action); err != nil {
			return e.abortTurn(err)
		}
	}

	outgoing, _ := e.story.GetPassage(e.gs.CurrentPassageID)
	if outgoing != nil && outgoing.OnExitScript != nil {
		in := e.interpreter()
		if _, _, err := in.Eval(outgoing.OnExitScript); err != nil {
			return e.abortTurn(err)
		}
	}
	e.observe(plugin.HookPassageExit, outgoing)

	if choice.HasTarget {
		return e.enterPassage(choice.TargetID)
	}
	if choice.hasInline {
		in := e.interpreter()
		text, inlineChoices, divert, diags, err := renderNodes(in, choice.inline, e.onAssign)
		if err != nil {
			return e.abortTurn(err)
		}
		e.choices = inlineChoices
		rendered := &Rendered{PassageID: e.gs.CurrentPassageID, Text: text, Choices: inlineChoices, AutoDivert: divert, Diags: diags}
		if divert != "" {
			return e.enterPassage(divert)
		}
		if len(inlineChoices) == 0 {
			e.state = StateEnded
		}
		e.maybeAutosave()
		return rendered, nil
	}
	e.state = StateEnded
	e.maybeAutosave()
	return &Rendered{PassageID: e.gs.CurrentPassageID}, nil
}

// abortTurn implements spec §5's cancellation rule: on an ExecutionLimit
// breach the turn is atomically aborted and state rolled back to the
// pre-turn snapshot, the same mechanism as undo. Non-aborting runtime
// errors (everything but ExecutionLimit) instead degrade to a Nil result
// upstream and never reach here.
func (e *Engine) abortTurn(err *rterr.Error) (*Rendered, error) {
	if err.Code.Aborting() {
		if snap, popErr := e.undo.pop(); popErr == nil {
			e.gs = snap
		}
		e.observe(plugin.HookError, err)
		return nil, err
	}
	e.observe(plugin.HookError, err)
	return nil, err
}

// Undo restores the most recent snapshot, pushed just before the last
// Choose call. Undo never partially restores: the whole GameState is
// swapped atomically (spec §4.8).
func (e *Engine) Undo() (*Rendered, error) {
	snap, err := e.undo.pop()
	if err != nil {
		return nil, err
	}
	e.gs = snap
	if e.state == StateEnded {
		e.state = StateRunning
	}
	return e.CurrentPassage()
}

// Reset returns the engine to a freshly Loaded state, discarding
// GameState and undo history.
func (e *Engine) Reset() {
	e.gs = nil
	e.choices = nil
	e.undo.reset()
	e.state = StateLoaded
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }
