package plugin

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain confirms the synchronous, registration-order dispatch model
// (spec §4.10) never leaks a goroutine across a test run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
