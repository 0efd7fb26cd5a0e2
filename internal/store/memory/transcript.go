// Package memory keeps transcripts in process memory. It backs the web chat
// when no database is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/stackchat/internal/domain"
)

type TranscriptRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]domain.TranscriptEntry
}

func NewTranscriptRepo() *TranscriptRepo {
	return &TranscriptRepo{entries: make(map[uuid.UUID][]domain.TranscriptEntry)}
}

func (r *TranscriptRepo) Append(_ context.Context, entry *domain.TranscriptEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("memory.TranscriptRepo.Append: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[entry.ConversationID]
	i, found := slices.BinarySearchFunc(list, entry.Seq, func(e domain.TranscriptEntry, seq int) int { return e.Seq - seq })
	if found {
		return fmt.Errorf("memory.TranscriptRepo.Append: %w", domain.ErrConflict)
	}
	r.entries[entry.ConversationID] = slices.Insert(list, i, *entry)
	return nil
}

func (r *TranscriptRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.TranscriptEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.entries[conversationID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) || limit <= 0 {
		return nil, nil
	}
	end := min(offset+limit, len(list))

	out := make([]*domain.TranscriptEntry, 0, end-offset)
	for _, e := range list[offset:end] {
		out = append(out, &e)
	}
	return out, nil
}

func (r *TranscriptRepo) CountByConversation(_ context.Context, conversationID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries[conversationID])), nil
}
