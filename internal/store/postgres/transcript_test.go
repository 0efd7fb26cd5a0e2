package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/store/postgres"
)

var _ domain.TranscriptRepository = (*postgres.TranscriptRepo)(nil)

// Runs only against a real database.
func TestTranscriptRepo_Integration(t *testing.T) {
	dsn := os.Getenv("STACKCHAT_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("STACKCHAT_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	store, err := postgres.New(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))

	repo := store.Transcripts()
	conv := uuid.New()
	for i, msg := range []string{"first", "second"} {
		require.NoError(t, repo.Append(ctx, &domain.TranscriptEntry{
			ID:             uuid.New(),
			ConversationID: conv,
			Seq:            i + 1,
			User:           msg,
			Assistant:      "reply to " + msg,
			Outcome:        domain.TurnOutcomeCompleted,
			CreatedAt:      time.Now().UTC(),
		}))
	}

	err = repo.Append(ctx, &domain.TranscriptEntry{
		ID: uuid.New(), ConversationID: conv, Seq: 1, User: "dup", Outcome: domain.TurnOutcomeFailed, CreatedAt: time.Now(),
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	entries, err := repo.ListByConversation(ctx, conv, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].User)
	assert.Equal(t, domain.TurnOutcomeCompleted, entries[1].Outcome)

	count, err := repo.CountByConversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
