package whisker

import (
	"github.com/writewhisker/whisker-core/engine"
	"github.com/writewhisker/whisker-core/internal/config"
	"github.com/writewhisker/whisker-core/plugin"
	"github.com/writewhisker/whisker-core/story"
)

// NewEngine is spec §6's `engine.new(story, config) → Engine`.
func NewEngine(s *story.Story, cfg config.EngineConfig, kernel *plugin.Kernel) *engine.Engine {
	return engine.New(s, cfg, kernel)
}

// PluginRegistry is spec §6's `plugin_registry.register(manifest)` /
// `unregister(name)`, a thin façade over a plugin.Kernel kept separate
// from the engine so hosts can assemble plugins before constructing the
// Engine that will dispatch them.
type PluginRegistry struct {
	kernel *plugin.Kernel
}

// NewPluginRegistry constructs an empty registry; stateFor/storage are
// forwarded to the underlying Kernel (see plugin.NewKernel).
func NewPluginRegistry(stateFor func(string) plugin.StateAccessor, storage *plugin.Storage) *PluginRegistry {
	return &PluginRegistry{kernel: plugin.NewKernel(stateFor, storage)}
}

// Register loads manifest into the registry's Kernel.
func (r *PluginRegistry) Register(manifest *plugin.Manifest) error {
	return r.kernel.Load(manifest)
}

// Unregister disables a previously registered plugin by name.
func (r *PluginRegistry) Unregister(name string) error {
	return r.kernel.Disable(name)
}

// Kernel exposes the underlying plugin.Kernel for passing to NewEngine.
func (r *PluginRegistry) Kernel() *plugin.Kernel { return r.kernel }
