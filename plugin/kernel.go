package plugin

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/writewhisker/whisker-core/internal/logging"
	"github.com/writewhisker/whisker-core/rterr"
)

type pluginEntry struct {
	manifest *Manifest
	state    State
}

type observerEntry struct {
	owner    string
	priority int
	seq      int
	handler  ObserverHandler
}

type transformEntry struct {
	owner    string
	priority int
	seq      int
	handler  TransformHandler
}

// Kernel is the engine-scoped plugin runtime: load order, capability
// enforcement, and hook dispatch, grounded on the teacher's
// internal/tools.Registry (register/validate/priority-sort/lookup),
// generalized from tools to plugins with dependency ordering and two
// hook dispatch disciplines layered on top.
type Kernel struct {
	mu         sync.RWMutex
	plugins    map[string]*pluginEntry
	order      []string
	observers  map[HookName][]observerEntry
	transforms map[HookName][]transformEntry
	events     *EventBus
	storage    *Storage
	stateFor   func(pluginName string) StateAccessor
	nextSeq    int
	nextHandle int
	handles    map[int]dynamicHandle
}

type dynamicHandle struct {
	name  HookName
	owner string
	kind  string // "observer" | "transform"
}

// NewKernel constructs an empty Kernel. stateFor, if non-nil, supplies the
// StateAccessor each plugin's Context.State() routes through; storage, if
// non-nil, backs persistence:read/write.
func NewKernel(stateFor func(pluginName string) StateAccessor, storage *Storage) *Kernel {
	return &Kernel{
		plugins:    make(map[string]*pluginEntry),
		observers:  make(map[HookName][]observerEntry),
		transforms: make(map[HookName][]transformEntry),
		events:     newEventBus(),
		storage:    storage,
		stateFor:   stateFor,
		handles:    make(map[int]dynamicHandle),
	}
}

// Load validates, topologically orders by Dependencies, and initializes
// the given manifests. Circular dependencies abort the whole batch with
// PluginLoadError; a single plugin's on_init/on_enable failure marks only
// that plugin Errored (skipped by all subsequent dispatch) and is
// aggregated into the returned error rather than aborting its siblings.
func (k *Kernel) Load(manifests ...*Manifest) error {
	byName := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		if m.Name == "" {
			return rterr.New(rterr.PluginLoadError, "plugin manifest missing name")
		}
		byName[m.Name] = m
	}

	order, err := topoSort(byName)
	if err != nil {
		return err
	}

	var errs error
	for _, name := range order {
		m := byName[name]
		if loadErr := k.loadOne(m); loadErr != nil {
			errs = multierr.Append(errs, loadErr)
		}
	}
	return errs
}

func (k *Kernel) loadOne(m *Manifest) error {
	k.mu.Lock()
	k.plugins[m.Name] = &pluginEntry{manifest: m, state: StateLoading}
	k.order = append(k.order, m.Name)
	k.mu.Unlock()

	for name, bindings := range m.Observers {
		for _, b := range bindings {
			k.registerObserver(name, m.Name, b.Priority, b.Handler)
		}
	}
	for name, bindings := range m.Transforms {
		for _, b := range bindings {
			k.registerTransform(name, m.Name, b.Priority, b.Handler)
		}
	}

	ctx := k.contextFor(m)
	if err := runLifecycle(m.OnInit, ctx); err != nil {
		return k.fail(m, "on_init", err)
	}
	if err := runLifecycle(m.OnEnable, ctx); err != nil {
		return k.fail(m, "on_enable", err)
	}

	k.mu.Lock()
	k.plugins[m.Name].state = StateEnabled
	k.mu.Unlock()
	return nil
}

func runLifecycle(fn func(*Context) error, ctx *Context) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (k *Kernel) fail(m *Manifest, step string, cause error) error {
	k.mu.Lock()
	k.plugins[m.Name].state = StateErrored
	k.mu.Unlock()
	logging.Audit.Record(logging.AuditEvent{
		EventType: logging.AuditPluginLoadError,
		Plugin:    m.Name,
		Message:   fmt.Sprintf("%s: %v", step, cause),
	})
	return rterr.New(rterr.PluginLoadError, m.Name+"."+step+": "+cause.Error())
}

func (k *Kernel) contextFor(m *Manifest) *Context {
	var state StateAccessor
	if k.stateFor != nil {
		state = k.stateFor(m.Name)
	}
	var storage *scopedStorage
	if k.storage != nil {
		storage = k.storage.scoped(m.Name)
	}
	return &Context{
		Plugin:  m,
		log:     logging.Get(logging.CategoryPlugin).With("plugin", m.Name),
		storage: storage,
		state:   state,
		kernel:  k,
	}
}

// State reports a loaded plugin's current lifecycle state.
func (k *Kernel) State(name string) (State, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.plugins[name]
	if !ok {
		return "", false
	}
	return e.state, true
}

// Disable transitions a plugin from Enabled to Disabled, calling its
// on_disable hook.
func (k *Kernel) Disable(name string) error {
	k.mu.Lock()
	e, ok := k.plugins[name]
	k.mu.Unlock()
	if !ok {
		return fmt.Errorf("plugin: unknown plugin %q", name)
	}
	if err := runLifecycle(e.manifest.OnDisable, k.contextFor(e.manifest)); err != nil {
		return k.fail(e.manifest, "on_disable", err)
	}
	k.mu.Lock()
	e.state = StateDisabled
	k.mu.Unlock()
	return nil
}

// DestroyAll calls on_destroy for every loaded plugin in reverse load
// order (spec §4: "destroyed in reverse order").
func (k *Kernel) DestroyAll() error {
	k.mu.RLock()
	order := append([]string(nil), k.order...)
	k.mu.RUnlock()

	var errs error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		k.mu.RLock()
		e := k.plugins[name]
		k.mu.RUnlock()
		if e.state == StateErrored || e.state == StateDestroyed {
			continue
		}
		if err := runLifecycle(e.manifest.OnDestroy, k.contextFor(e.manifest)); err != nil {
			errs = multierr.Append(errs, k.fail(e.manifest, "on_destroy", err))
			continue
		}
		k.mu.Lock()
		e.state = StateDestroyed
		k.mu.Unlock()
	}
	return errs
}

// pluginLogger returns the shared plugin-category logger, used by dispatch to
// report caught handler panics/errors without aborting.
func pluginLogger() *zap.SugaredLogger { return logging.Get(logging.CategoryPlugin) }
