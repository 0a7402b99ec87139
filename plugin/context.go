package plugin

import (
	"go.uber.org/zap"

	"github.com/writewhisker/whisker-core/capability"
	"github.com/writewhisker/whisker-core/rterr"
)

// StateAccessor is the capability-gated view of engine GameState a plugin
// context routes through (spec §5: "plugins mutate it only via the
// context ... which routes through capability checks and the transform
// hook on_variable_set"). The engine supplies the implementation; this
// package never reaches into GameState directly.
type StateAccessor interface {
	Get(name string) (interface{}, bool)
	Set(name string, value interface{}) error
}

// Context is the plugin-scoped handle passed to every lifecycle and hook
// callback: log, storage, state, hooks, events, plugins (spec §4.10).
type Context struct {
	Plugin *Manifest

	log     *zap.SugaredLogger
	storage *scopedStorage
	state   StateAccessor
	kernel  *Kernel
}

// Log returns this plugin's scoped logger.
func (c *Context) Log() *zap.SugaredLogger { return c.log }

// State returns a capability-checked accessor over GameState.
func (c *Context) State() *GatedState {
	return &GatedState{manifest: c.Plugin, state: c.state}
}

// Storage returns this plugin's prefix-scoped persistent store, or nil if
// no Storage backend was configured on the Kernel.
func (c *Context) Storage() *scopedStorage { return c.storage }

// Hooks returns a handle for dynamic hook (un)registration.
func (c *Context) Hooks() *HookHandle { return &HookHandle{kernel: c.kernel, owner: c.Plugin.Name} }

// Events returns the engine-scoped synchronous event bus.
func (c *Context) Events() *EventBus { return c.kernel.events }

// Plugins returns a lookup over sibling plugins' manifests, for plugins
// that expose an `api` table to one another.
func (c *Context) Plugins() *PluginLookup { return &PluginLookup{kernel: c.kernel} }

// GatedState enforces state:read/state:write on every access, returning
// rterr.CapabilityDenied when the owning plugin lacks the capability
// (spec §4.10, scenario 6).
type GatedState struct {
	manifest *Manifest
	state    StateAccessor
}

func (g *GatedState) Get(name string) (interface{}, *rterr.Error) {
	if !g.manifest.EffectiveCapabilities().Has(capability.StateRead) {
		return nil, rterr.New(rterr.CapabilityDenied, "state:read not declared by "+g.manifest.Name)
	}
	if g.state == nil {
		return nil, nil
	}
	v, _ := g.state.Get(name)
	return v, nil
}

func (g *GatedState) Set(name string, value interface{}) *rterr.Error {
	if !g.manifest.EffectiveCapabilities().Has(capability.StateWrite) {
		return rterr.New(rterr.CapabilityDenied, "state:write not declared by "+g.manifest.Name)
	}
	if g.state == nil {
		return nil
	}
	if err := g.state.Set(name, value); err != nil {
		return rterr.New(rterr.TypeMismatch, err.Error())
	}
	return nil
}

// PluginLookup exposes read-only access to sibling plugins' manifests.
type PluginLookup struct {
	kernel *Kernel
}

func (p *PluginLookup) Get(name string) (*Manifest, bool) {
	p.kernel.mu.RLock()
	defer p.kernel.mu.RUnlock()
	entry, ok := p.kernel.plugins[name]
	if !ok || entry.state == StateErrored {
		return nil, false
	}
	return entry.manifest, true
}
