package nodes

import (
	"github.com/eurocup-agent/server/internal/agent/model"
)

const DefaultMaxToolRounds = 10

// normalizeMaxToolRounds returns a sane default when the provided value is invalid.
func normalizeMaxToolRounds(n int) int {
	if n <= 0 {
		return DefaultMaxToolRounds
	}
	return n
}

// checkAndMarkRoundLimit evaluates whether another strategy round would exceed
// the limit and, if so, marks the state accordingly. Returns true when marked now.
func checkAndMarkRoundLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolRounds(max)
	if !state.ToolRoundLimitReached && state.ToolRoundCount >= max {
		state.ToolRoundLimitReached = true
		return true
	}
	return false
}

// incrementRoundAndCheck increments the round count and marks the state if it
// exceeds the limit after incrementing. Returns true when exceeded.
func incrementRoundAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolRounds(max)
	state.ToolRoundCount++
	if state.ToolRoundCount > max {
		state.ToolRoundLimitReached = true
		return true
	}
	return false
}
