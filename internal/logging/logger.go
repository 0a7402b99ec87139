// Package logging provides category-scoped structured logging for every
// Whisker subsystem, backed by zap. Each core subsystem gets its own named
// logger obtained from Get(category); the engine and interpreter never
// write to stdout/stderr directly, only through a logger a host can
// silence (SetBase(zap.NewNop())) or redirect.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Category names a subsystem's logger, mirroring how each core component
// (compile, semantic, codegen, formats, engine, interpreter, plugin) is
// given its own scoped logger rather than one shared global one.
type Category string

const (
	CategoryCompile     Category = "compile"
	CategorySemantic    Category = "semantic"
	CategoryCodegen     Category = "codegen"
	CategoryFormats     Category = "formats"
	CategoryEngine      Category = "engine"
	CategoryInterpreter Category = "interpreter"
	CategoryPlugin      Category = "plugin"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

func init() {
	base = zap.NewNop()
}

// SetBase installs the zap.Logger every category logger is derived from.
// Hosts that want output call this with a configured logger
// (zap.NewProduction(), zap.NewDevelopment(), ...); the default is a no-op
// logger so the core is silent until a host opts in.
func SetBase(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	base = l
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Get returns (or creates) the *zap.SugaredLogger for category, named so
// log output can be filtered per subsystem.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}
