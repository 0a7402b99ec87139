// Package plugin implements the Hook & Plugin Kernel of spec §4.10: a
// manifest-described extension, a closed capability set enforced at call
// time, topological dependency load ordering, and the two-category hook
// dispatch model (Observer and Transform). Plugins are native Go values
// implementing Manifest's handler fields, grounded on the teacher's
// internal/tools registry (register/validate/priority-sort/lookup)
// generalized from tools to plugins.
package plugin

import (
	"github.com/writewhisker/whisker-core/capability"
)

// HookName identifies one dispatchable event per spec §4.10.
type HookName string

const (
	// Observer hooks: every handler runs, return values ignored.
	HookStoryStart    HookName = "on_story_start"
	HookPassageEnter  HookName = "on_passage_enter"
	HookPassageExit   HookName = "on_passage_exit"
	HookChoiceSelect  HookName = "on_choice_select"
	HookStateChange   HookName = "on_state_change"
	HookError         HookName = "on_error"

	// Transform hooks: handlers left-fold over a value.
	HookPassageRender HookName = "on_passage_render"
	HookChoicePresent HookName = "on_choice_present"
	HookVariableSet   HookName = "on_variable_set"
	HookVariableGet   HookName = "on_variable_get"
	HookSave          HookName = "on_save"
	HookLoad          HookName = "on_load"
)

// transformHooks is the closed set of transform-category hook names;
// everything else dispatched through the Kernel is an observer hook.
var transformHooks = map[HookName]bool{
	HookPassageRender: true,
	HookChoicePresent: true,
	HookVariableSet:   true,
	HookVariableGet:   true,
	HookSave:          true,
	HookLoad:          true,
}

// IsTransform reports whether name dispatches as a transform (left-fold)
// hook rather than an observer (fan-out) hook.
func (n HookName) IsTransform() bool { return transformHooks[n] }

// ObserverHandler receives an event payload and performs a side effect;
// its return value is ignored (spec §4.10).
type ObserverHandler func(ctx *Context, payload interface{})

// TransformHandler receives the previous value and returns a replacement;
// returning (nil, false) means "no change", per spec §4.10's "returning
// Nil means no change".
type TransformHandler func(ctx *Context, value interface{}) (interface{}, bool)

// DefaultPriority is the priority a binding gets when none is specified,
// per spec §4.10 ("lower number earlier, default 50").
const DefaultPriority = 50

// ObserverBinding pairs a static manifest-declared observer with its
// dispatch priority.
type ObserverBinding struct {
	Priority int
	Handler  ObserverHandler
}

// TransformBinding pairs a static manifest-declared transform with its
// fold-order priority.
type TransformBinding struct {
	Priority int
	Handler  TransformHandler
}

// Manifest is one plugin's static description (spec §4.10).
type Manifest struct {
	Name         string
	Version      string
	Author       string
	Description  string
	License      string
	Dependencies map[string]string // name -> semver constraint (constraint text is opaque to the kernel)
	Capabilities capability.Set
	Trusted      bool

	OnInit    func(ctx *Context) error
	OnEnable  func(ctx *Context) error
	OnDisable func(ctx *Context) error
	OnDestroy func(ctx *Context) error

	Observers  map[HookName][]ObserverBinding
	Transforms map[HookName][]TransformBinding

	API map[string]func(args ...interface{}) (interface{}, error)
}

// EffectiveCapabilities returns every capability m may exercise: the full
// closed set for trusted plugins, or exactly its declared set otherwise
// (spec §4.10: "Trusted (core) plugins implicitly hold all capabilities").
func (m *Manifest) EffectiveCapabilities() capability.Set {
	if m.Trusted {
		return capability.AllSet()
	}
	if m.Capabilities == nil {
		return capability.Set{}
	}
	return m.Capabilities
}
