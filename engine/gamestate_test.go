package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/writewhisker/whisker-core/story"
)

var valueCmp = cmp.Comparer(story.Equal)

// TestCloneRoundTripsBitForBit confirms spec §8's undo invariant: cloning
// a GameState and mutating the clone must never perturb the original, and
// an untouched clone must compare bit-for-bit equal, including variable
// map insertion order.
func TestCloneRoundTripsBitForBit(t *testing.T) {
	gs := newGameState([]story.VariableDecl{
		{Name: "hp", Initial: story.Int(10)},
		{Name: "name", Initial: story.Str("Rook")},
	})
	gs.CurrentPassageID = "Start"
	gs.Visited["Start"] = 1
	gs.History = append(gs.History, "Start")

	clone := gs.clone()
	assert.True(t, gs.equal(clone))
	if diff := cmp.Diff(gs.Variables, clone.Variables, valueCmp); diff != "" {
		t.Fatalf("clone diverges from original before mutation:\n%s", diff)
	}

	clone.Variables = clone.Variables.Set("hp", story.Int(0))
	clone.Visited["Start"] = 99

	hp, ok := gs.Variables.Get("hp")
	assert.True(t, ok)
	assert.Equal(t, 10, mustInt(hp), "mutating the clone must not affect the original")
	assert.Equal(t, 1, gs.Visited["Start"])
	assert.False(t, gs.equal(clone))
}

func mustInt(v story.Value) int {
	n, _ := v.AsNumber()
	return int(n)
}
