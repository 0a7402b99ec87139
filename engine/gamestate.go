package engine

import "github.com/writewhisker/whisker-core/story"

// GameState is the Runtime State of spec §3: variables, temp_variables,
// visited counts, history, current_passage_id, choice_stack, and
// save_slot_metadata. It is owned exclusively by the engine (spec §5);
// plugins only ever see it through a capability-gated accessor.
type GameState struct {
	Variables     story.Value // Kind Map
	TempVariables story.Value // Kind Map, reset at every passage entry
	Visited       map[string]int
	History       []string
	CurrentPassageID string
	ChoiceStack   []int
	PluginData    map[string]story.Value // per-plugin Kind Map, prefix-scoped
	SaveSlotMeta  map[string]string
}

// newGameState builds an empty GameState seeded with a Story's declared
// variable initial values.
func newGameState(decls []story.VariableDecl) *GameState {
	vars := story.NewMap()
	for _, d := range decls {
		vars = vars.Set(d.Name, d.Initial)
	}
	return &GameState{
		Variables:     vars,
		TempVariables: story.NewMap(),
		Visited:       make(map[string]int),
		PluginData:    make(map[string]story.Value),
		SaveSlotMeta:  make(map[string]string),
	}
}

// clone deep-copies gs, used both for undo snapshots and for save-bundle
// isolation so a host mutating a returned bundle cannot corrupt live
// state.
func (gs *GameState) clone() *GameState {
	out := &GameState{
		Variables:        story.Clone(gs.Variables),
		TempVariables:    story.Clone(gs.TempVariables),
		Visited:          make(map[string]int, len(gs.Visited)),
		History:          append([]string(nil), gs.History...),
		CurrentPassageID: gs.CurrentPassageID,
		ChoiceStack:      append([]int(nil), gs.ChoiceStack...),
		PluginData:       make(map[string]story.Value, len(gs.PluginData)),
		SaveSlotMeta:     make(map[string]string, len(gs.SaveSlotMeta)),
	}
	for k, v := range gs.Visited {
		out.Visited[k] = v
	}
	for k, v := range gs.PluginData {
		out.PluginData[k] = story.Clone(v)
	}
	for k, v := range gs.SaveSlotMeta {
		out.SaveSlotMeta[k] = v
	}
	return out
}

// equal reports bit-for-bit equality of two snapshots, the undo
// invariant of spec §8 ("the resulting GameState is bit-for-bit equal to
// the state captured by the matching snapshot, including variable map
// iteration order").
func (gs *GameState) equal(other *GameState) bool {
	if gs.CurrentPassageID != other.CurrentPassageID {
		return false
	}
	if !story.Equal(gs.Variables, other.Variables) || !story.Equal(gs.TempVariables, other.TempVariables) {
		return false
	}
	if len(gs.Visited) != len(other.Visited) {
		return false
	}
	for k, v := range gs.Visited {
		if other.Visited[k] != v {
			return false
		}
	}
	if len(gs.History) != len(other.History) {
		return false
	}
	for i := range gs.History {
		if gs.History[i] != other.History[i] {
			return false
		}
	}
	if len(gs.ChoiceStack) != len(other.ChoiceStack) || len(gs.SaveSlotMeta) != len(other.SaveSlotMeta) {
		return false
	}
	for i := range gs.ChoiceStack {
		if gs.ChoiceStack[i] != other.ChoiceStack[i] {
			return false
		}
	}
	for k, v := range gs.SaveSlotMeta {
		if ov, ok := other.SaveSlotMeta[k]; !ok || ov != v {
			return false
		}
	}
	if len(gs.PluginData) != len(other.PluginData) {
		return false
	}
	for k, v := range gs.PluginData {
		ov, ok := other.PluginData[k]
		if !ok || !story.Equal(v, ov) {
			return false
		}
	}
	return true
}

// stateView adapts GameState into the interp.State an Interpreter
// evaluates against: TempVariables shadow Variables, matching the "fresh
// temp-variable scope" an on_enter_script runs in (spec §4.8).
type stateView struct {
	gs *GameState
}

func (v *stateView) Get(name string) (story.Value, bool) {
	if val, ok := v.gs.TempVariables.Get(name); ok {
		return val, true
	}
	return v.gs.Variables.Get(name)
}

func (v *stateView) Set(name string, val story.Value) {
	if _, ok := v.gs.TempVariables.Get(name); ok {
		v.gs.TempVariables = v.gs.TempVariables.Set(name, val)
		return
	}
	v.gs.Variables = v.gs.Variables.Set(name, val)
}
