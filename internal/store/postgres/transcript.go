package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/stackchat/internal/domain"
)

const uniqueViolation = "23505"

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

func (r *TranscriptRepo) Append(ctx context.Context, entry *domain.TranscriptEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("transcriptRepo.Append: %w", err)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcript_entries
		 (id, conversation_id, seq, stack_session, user_message, assistant, outcome, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ConversationID, entry.Seq, entry.StackSession,
		entry.User, entry.Assistant, string(entry.Outcome), entry.Error, entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("transcriptRepo.Append: %w", domain.ErrConflict)
		}
		return fmt.Errorf("transcriptRepo.Append: %w", err)
	}

	return nil
}

func (r *TranscriptRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.TranscriptEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, seq, stack_session, user_message, assistant, outcome, error, created_at
		 FROM transcript_entries WHERE conversation_id = $1
		 ORDER BY seq ASC
		 LIMIT $2 OFFSET $3`,
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("transcriptRepo.ListByConversation: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TranscriptEntry
	for rows.Next() {
		var (
			e       domain.TranscriptEntry
			outcome string
		)

		err = rows.Scan(&e.ID, &e.ConversationID, &e.Seq, &e.StackSession, &e.User, &e.Assistant, &outcome, &e.Error, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("transcriptRepo.ListByConversation: scan: %w", err)
		}
		e.Outcome = domain.TurnOutcome(outcome)
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("transcriptRepo.ListByConversation: rows: %w", err)
	}

	return entries, nil
}

func (r *TranscriptRepo) CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transcript_entries WHERE conversation_id = $1`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("transcriptRepo.CountByConversation: %w", err)
	}

	return count, nil
}
