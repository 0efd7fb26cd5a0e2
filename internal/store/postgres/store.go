package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/stackchat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript_entries (
	id              UUID PRIMARY KEY,
	conversation_id UUID        NOT NULL,
	seq             INTEGER     NOT NULL,
	stack_session   TEXT        NOT NULL DEFAULT '',
	user_message    TEXT        NOT NULL,
	assistant       TEXT        NOT NULL DEFAULT '',
	outcome         TEXT        NOT NULL,
	error           TEXT        NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (conversation_id, seq)
)`

type Store struct {
	pool        *pgxpool.Pool
	transcripts *TranscriptRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		transcripts: NewTranscriptRepo(pool),
	}, nil
}

// EnsureSchema creates the tables the store needs if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres.Store.EnsureSchema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Transcripts() domain.TranscriptRepository { return s.transcripts }
