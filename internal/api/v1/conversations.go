package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/turn"
)

type GetConversationInput struct {
	ID uuid.UUID `path:"id" doc:"Conversation ID"`
}

type GetConversationOutput struct {
	Body struct {
		ID        uuid.UUID    `json:"id"`
		SessionID string       `json:"session_id"`
		History   []turn.Entry `json:"history"`
	}
}

type TranscriptEntry struct {
	Seq          int       `json:"seq"`
	StackSession string    `json:"stack_session"`
	User         string    `json:"user"`
	Assistant    string    `json:"assistant"`
	Outcome      string    `json:"outcome" enum:"completed,failed"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListTranscriptInput struct {
	ID     uuid.UUID `path:"id" doc:"Conversation ID"`
	Limit  int       `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int       `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListTranscriptOutput struct {
	Body struct {
		Total   int64             `json:"total"`
		Entries []TranscriptEntry `json:"entries"`
	}
}

// RegisterConversationRoutes exposes live conversations and, when repo is
// non-nil, their persisted transcripts.
func RegisterConversationRoutes(api huma.API, convs Conversations, repo domain.TranscriptRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        "/conversations/{id}",
		Summary:     "Get the live history of an open conversation",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *GetConversationInput) (*GetConversationOutput, error) {
		conv, err := convs.Conversation(input.ID)
		if err != nil {
			if errors.Is(err, chat.ErrConversationNotFound) {
				return nil, huma.Error404NotFound("conversation not found")
			}
			return nil, huma.Error500InternalServerError("failed to get conversation", err)
		}

		out := &GetConversationOutput{}
		out.Body.ID = conv.ID()
		out.Body.SessionID = conv.SessionID()
		out.Body.History = conv.History()
		return out, nil
	})

	if repo == nil {
		return
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-transcript",
		Method:      http.MethodGet,
		Path:        "/conversations/{id}/transcript",
		Summary:     "List the finished turns of a conversation",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *ListTranscriptInput) (*ListTranscriptOutput, error) {
		total, err := repo.CountByConversation(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count transcript", err)
		}

		entries, err := repo.ListByConversation(ctx, input.ID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list transcript", err)
		}

		out := &ListTranscriptOutput{}
		out.Body.Total = total
		out.Body.Entries = make([]TranscriptEntry, 0, len(entries))
		for _, e := range entries {
			out.Body.Entries = append(out.Body.Entries, TranscriptEntry{
				Seq:          e.Seq,
				StackSession: e.StackSession,
				User:         e.User,
				Assistant:    e.Assistant,
				Outcome:      string(e.Outcome),
				Error:        e.Error,
				CreatedAt:    e.CreatedAt,
			})
		}
		return out, nil
	})
}
