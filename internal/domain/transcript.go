package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TurnOutcome string

const (
	TurnOutcomeCompleted TurnOutcome = "completed"
	TurnOutcomeFailed    TurnOutcome = "failed"
)

// TranscriptEntry is one finished turn of a conversation, kept for replay.
type TranscriptEntry struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Seq            int // 1-based position within the conversation
	StackSession   string
	User           string
	Assistant      string
	Outcome        TurnOutcome
	Error          string
	CreatedAt      time.Time
}

// Validate checks the fields every repository relies on.
func (e *TranscriptEntry) Validate() error {
	switch {
	case e.ConversationID == uuid.Nil:
		return fmt.Errorf("transcript entry: conversation id: %w", ErrInvalidInput)
	case e.Seq < 1:
		return fmt.Errorf("transcript entry: seq %d: %w", e.Seq, ErrInvalidInput)
	case strings.TrimSpace(e.User) == "":
		return fmt.Errorf("transcript entry: empty user message: %w", ErrInvalidInput)
	case e.Outcome != TurnOutcomeCompleted && e.Outcome != TurnOutcomeFailed:
		return fmt.Errorf("transcript entry: outcome %q: %w", e.Outcome, ErrInvalidInput)
	}
	return nil
}

// TranscriptRepository stores finished turns ordered by Seq per conversation.
// Append returns ErrConflict when the (conversation, seq) pair already exists.
type TranscriptRepository interface {
	Append(ctx context.Context, entry *TranscriptEntry) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*TranscriptEntry, error)
	CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
}
