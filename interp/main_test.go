package interp

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain confirms the evaluator's single-threaded execution model
// (spec §5) never leaks a goroutine across a test run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
