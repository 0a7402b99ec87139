// Package rterr defines the runtime error taxonomy of spec §7, shared by
// engine, interp, and plugin so a RuntimeError raised deep in expression
// evaluation can surface through the engine's on_error event without
// those packages importing one another.
package rterr

// Code enumerates spec §7's runtime error taxonomy, distinct from the
// compile-time WSK-prefixed diagnostics.Code space.
type Code string

const (
	ExecutionLimit  Code = "ExecutionLimit"
	CapabilityDenied Code = "CapabilityDenied"
	TypeMismatch    Code = "TypeMismatch"
	DivisionByZero  Code = "DivisionByZero"
	UnknownPassage  Code = "UnknownPassage"
	EmptyUndoStack  Code = "EmptyUndoStack"
	PluginLoadError Code = "PluginLoadError"
	HookHandlerError Code = "HookHandlerError"
	AutosaveFailed  Code = "AutosaveFailed"
)

// Error is a runtime fault, as opposed to a compile-time diagnostics.Diagnostic.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// New constructs a runtime error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Aborting reports whether code halts the current turn and rolls back
// rather than degrading to a Nil result (spec §7: only ExecutionLimit
// aborts; the rest become on_error events).
func (c Code) Aborting() bool {
	return c == ExecutionLimit
}
