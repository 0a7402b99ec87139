package engine

import "github.com/writewhisker/whisker-core/rterr"

// undoStack is a bounded deque of GameState snapshots (spec §4.8: default
// 50, never partially restores). max == 0 disables undo entirely (spec
// §8 boundary behavior).
type undoStack struct {
	max   int
	items []*GameState
}

func newUndoStack(max int) *undoStack {
	return &undoStack{max: max}
}

// push records snapshot, evicting the oldest entry once max is exceeded.
func (u *undoStack) push(snapshot *GameState) {
	if u.max <= 0 {
		return
	}
	u.items = append(u.items, snapshot)
	if len(u.items) > u.max {
		u.items = u.items[len(u.items)-u.max:]
	}
}

// pop returns and removes the most recent snapshot, or EmptyUndoStack if
// none remain.
func (u *undoStack) pop() (*GameState, *rterr.Error) {
	if len(u.items) == 0 {
		return nil, rterr.New(rterr.EmptyUndoStack, "no undo snapshot available")
	}
	last := u.items[len(u.items)-1]
	u.items = u.items[:len(u.items)-1]
	return last, nil
}

func (u *undoStack) reset() {
	u.items = nil
}
