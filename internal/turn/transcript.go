package turn

import (
	"fmt"
	"strings"
	"sync"
)

// Entry pairs a user message with the assistant text produced for it.
type Entry struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Turn is the mutable slot for one user-message-to-response exchange.
// Only the Consumer mutates it; readers get copies.
type Turn struct {
	mu    sync.RWMutex
	user  string
	text  strings.Builder
	state State
	err   error
}

// NewTurn returns a pending turn for the given user message.
func NewTurn(user string) *Turn {
	return &Turn{user: user, state: StatePending}
}

// Entry returns a snapshot of the turn's transcript entry.
func (t *Turn) Entry() Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Entry{User: t.user, Assistant: t.text.String()}
}

func (t *Turn) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err returns the failure recorded when the turn entered StateFailed.
func (t *Turn) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Turn) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

func (t *Turn) transitionLocked(to State) error {
	if !t.state.ValidTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.state, to)
	}
	t.state = to
	return nil
}

// appendDelta appends text and returns the resulting snapshot.
func (t *Turn) appendDelta(text string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateStreaming {
		return Entry{}, fmt.Errorf("%w: delta in state %s", ErrInvalidTransition, t.state)
	}
	t.text.WriteString(text)
	return Entry{User: t.user, Assistant: t.text.String()}, nil
}

// Fail moves the turn to StateFailed, passing through StateStreaming when the
// stream produced no events at all. Callers use it when the stream could not
// be opened; it is a no-op on a terminal turn.
func (t *Turn) Fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePending {
		_ = t.transitionLocked(StateStreaming)
	}
	if t.transitionLocked(StateFailed) == nil {
		t.err = cause
	}
}

// Transcript is the ordered list of turns of one conversation. At most one
// turn is non-terminal at a time.
type Transcript struct {
	mu    sync.Mutex
	turns []*Turn
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Begin appends a pending turn for message. It fails with ErrTurnInProgress
// while the previous turn has not reached a terminal state.
func (tr *Transcript) Begin(message string) (*Turn, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if n := len(tr.turns); n > 0 && !tr.turns[n-1].State().Terminal() {
		return nil, ErrTurnInProgress
	}

	t := NewTurn(message)
	tr.turns = append(tr.turns, t)
	return t, nil
}

// Entries returns a snapshot of every entry, including the one streaming.
func (tr *Transcript) Entries() []Entry {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	out := make([]Entry, 0, len(tr.turns))
	for _, t := range tr.turns {
		out = append(out, t.Entry())
	}
	return out
}

func (tr *Transcript) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.turns)
}

// Reset drops every entry. It refuses while a turn is streaming.
func (tr *Transcript) Reset() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if n := len(tr.turns); n > 0 && !tr.turns[n-1].State().Terminal() {
		return ErrTurnInProgress
	}
	tr.turns = nil
	return nil
}
