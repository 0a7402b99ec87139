// Package formats defines the shared Format contract (spec §4.6) and a
// registry of adapters. Each dialect package (ink, harlowe, sugarcube,
// chapbook, snowman) implements Format and registers an instance via
// init() in its own package, following the teacher's self-registering
// tool-registry convention (internal/tools/registry.go, MustRegister in
// init()).
package formats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/writewhisker/whisker-core/diagnostics"
	"github.com/writewhisker/whisker-core/story"
)

// Options controls import/export behavior (spec §4.6).
type Options struct {
	Pretty            bool
	IncludeMetadata   bool
	PreservePositions bool
	TwineFormat       string // "harlowe" | "sugarcube" | "chapbook" | "snowman"
	ConvertMacros     bool
}

// Format is the contract every dialect adapter implements.
type Format interface {
	Name() string
	Extensions() []string
	CanImport(source string) bool
	Import(source string) (*story.Story, []diagnostics.Diagnostic)
	CanExport(s *story.Story) (bool, string)
	Export(s *story.Story, opts Options) (string, []diagnostics.Diagnostic)
}

// Registry holds all available format adapters, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]Format
}

// global is the process-wide registry dialect packages register into via
// init(), mirroring the teacher's package-level tool registry.
var global = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Format)}
}

// Register adds f, returning an error if its name is already taken.
func (r *Registry) Register(f Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[f.Name()]; exists {
		return fmt.Errorf("formats: adapter %q already registered", f.Name())
	}
	r.byName[f.Name()] = f
	return nil
}

// MustRegister registers f and panics on error; used from dialect
// packages' init().
func (r *Registry) MustRegister(f Format) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Get returns the adapter named name, if registered.
func (r *Registry) Get(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[name]
	return f, ok
}

// Names returns all registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Detect returns the first registered adapter whose CanImport(source)
// reports true, scanning in name-sorted order for determinism.
func (r *Registry) Detect(source string) (Format, bool) {
	for _, name := range r.Names() {
		f := r.byName[name]
		if f.CanImport(source) {
			return f, true
		}
	}
	return nil, false
}

// Global returns the process-wide registry that dialect packages
// self-register into.
func Global() *Registry { return global }
