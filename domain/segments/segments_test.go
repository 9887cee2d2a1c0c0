package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionHappyPath(t *testing.T) {
	path := []State{
		StateQueued, StateRetrieving, StateGenerating, StateRendering,
		StateNormalizing, StateReady, StateAiring, StateAired, StateArchived,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]),
			"%s -> %s should be allowed", path[i], path[i+1])
	}
}

func TestCanTransitionFailurePaths(t *testing.T) {
	for _, from := range []State{StateGenerating, StateRendering, StateNormalizing} {
		assert.True(t, CanTransition(from, StateFailed), "%s -> failed should be allowed", from)
	}
	// Operator requeue is the only way out of failed.
	assert.True(t, CanTransition(StateFailed, StateQueued))
	assert.False(t, CanTransition(StateFailed, StateGenerating))
}

func TestCanTransitionRejectsSkipsAndReversals(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StateQueued, StateGenerating},      // skip
		{StateQueued, StateReady},           // skip
		{StateGenerating, StateRetrieving},  // reversal
		{StateReady, StateQueued},           // reversal
		{StateAired, StateAiring},           // reversal
		{StateArchived, StateQueued},        // terminal
		{StateAiring, StateFailed},          // on air cannot fail
	}
	for _, tt := range tests {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s should be rejected", tt.from, tt.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StateArchived))
	assert.False(t, Terminal(StateFailed)) // operator can still requeue
	assert.False(t, Terminal(StateReady))
}
