package engine_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain confirms the engine's single-threaded, cooperative turn model
// (spec §5) never leaks a goroutine across a test run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
