package turn

import "errors"

type State string

const (
	StatePending   State = "pending"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var (
	ErrInvalidTransition  = errors.New("turn: invalid state transition")
	ErrStreamInterrupted  = errors.New("turn: event stream interrupted")
	ErrIncomplete         = errors.New("turn: stream ended without completion")
	ErrTurnInProgress     = errors.New("turn: previous turn still streaming")
	ErrTurnAlreadyStarted = errors.New("turn: already consumed")
	ErrAbandoned          = errors.New("turn: consumer stopped before completion")
)

// ValidTransition checks if a turn state transition is allowed.
// Allowed: pending->streaming, streaming->completed, streaming->failed.
func (s State) ValidTransition(to State) bool {
	switch s {
	case StatePending:
		return to == StateStreaming
	case StateStreaming:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
