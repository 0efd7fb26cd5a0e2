package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stackchat/internal/agent"
	v1 "github.com/gosuda/stackchat/internal/api/v1"
	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/stack"
	"github.com/gosuda/stackchat/internal/stack/stacktest"
	"github.com/gosuda/stackchat/internal/store/memory"
)

var (
	_ v1.StackInfo     = (*stack.Client)(nil)
	_ v1.Conversations = (*chat.Service)(nil)
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type mockConversations struct {
	conversationFunc func(id uuid.UUID) (*chat.Conversation, error)
}

func (m *mockConversations) Conversation(id uuid.UUID) (*chat.Conversation, error) {
	return m.conversationFunc(id)
}

type mockTranscripts struct {
	domain.TranscriptRepository
	countFunc func(ctx context.Context, id uuid.UUID) (int64, error)
}

func (m *mockTranscripts) CountByConversation(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.countFunc(ctx, id)
}

func parseErrorBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

// ---------------------------------------------------------------------------
// Stack routes
// ---------------------------------------------------------------------------

func TestListProviders(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterStackRoutes(api, stacktest.New(), v1.WidgetSettings{})

	resp := api.Get("/providers")
	require.Equal(t, http.StatusOK, resp.Code)

	var got map[string][]stack.ProviderInfo
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Len(t, got["memory"], 1)
	assert.Equal(t, "faiss-0", got["memory"][0].ProviderID)
	assert.Contains(t, got, "inference")
}

func TestListProviders_StackDown(t *testing.T) {
	t.Parallel()

	fake := stacktest.New()
	fake.Err = errors.New("connection refused")

	_, api := humatest.New(t)
	v1.RegisterStackRoutes(api, fake, v1.WidgetSettings{})

	resp := api.Get("/providers")
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	body := parseErrorBody(t, resp.Body.Bytes())
	assert.Equal(t, "failed to list providers", body["detail"])
}

func TestListMemoryBanks(t *testing.T) {
	t.Parallel()

	fake := stacktest.New()
	_, api := humatest.New(t)
	v1.RegisterStackRoutes(api, fake, v1.WidgetSettings{})

	resp := api.Get("/memory-banks")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())

	_, err := fake.RegisterMemoryBank(context.Background(), stack.RegisterMemoryBankRequest{
		MemoryBankID: "docs",
		ProviderID:   "faiss-0",
		Params:       stack.VectorBankParams{EmbeddingModel: "all-MiniLM-L6-v2"},
	})
	require.NoError(t, err)

	resp = api.Get("/memory-banks")
	require.Equal(t, http.StatusOK, resp.Code)

	var banks []stack.MemoryBank
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &banks))
	require.Len(t, banks, 1)
	assert.Equal(t, "docs", banks[0].Identifier)
	assert.Equal(t, "all-MiniLM-L6-v2", banks[0].EmbeddingModel)
}

func TestGetWidgetSettings(t *testing.T) {
	t.Parallel()

	settings := v1.WidgetSettings{
		Title:          "Docs",
		Model:          "Llama3.2-3B-Instruct",
		BankID:         "test_bank_235",
		ExamplePrompts: []string{"a", "b"},
	}

	_, api := humatest.New(t)
	v1.RegisterStackRoutes(api, stacktest.New(), settings)

	resp := api.Get("/widget")
	require.Equal(t, http.StatusOK, resp.Code)

	var got v1.WidgetSettings
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, settings, got)
}

// ---------------------------------------------------------------------------
// Conversation routes
// ---------------------------------------------------------------------------

func TestGetConversation(t *testing.T) {
	t.Parallel()

	cfg, err := agent.NewConfig("m")
	require.NoError(t, err)
	svc := chat.NewService(stacktest.New(), chat.Options{Agent: cfg})

	ctx := context.Background()
	conv, err := svc.Open(ctx)
	require.NoError(t, err)
	for _, err := range conv.Send(ctx, "hello there") {
		require.NoError(t, err)
	}

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, svc, nil)

	resp := api.Get("/conversations/" + conv.ID().String())
	require.Equal(t, http.StatusOK, resp.Code)

	var got struct {
		ID        uuid.UUID `json:"id"`
		SessionID string    `json:"session_id"`
		History   []struct {
			User      string `json:"user"`
			Assistant string `json:"assistant"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, conv.ID(), got.ID)
	assert.Equal(t, conv.SessionID(), got.SessionID)
	require.Len(t, got.History, 1)
	assert.Equal(t, "hello there", got.History[0].User)
	assert.Equal(t, "hello there", got.History[0].Assistant)

	resp = api.Get("/conversations/" + uuid.New().String())
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetConversation_InternalError(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{
		conversationFunc: func(uuid.UUID) (*chat.Conversation, error) { return nil, errors.New("boom") },
	}, nil)

	resp := api.Get("/conversations/" + uuid.New().String())
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestGetConversation_InvalidID(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{
		conversationFunc: func(uuid.UUID) (*chat.Conversation, error) {
			t.Fatal("should not be called")
			return nil, nil
		},
	}, nil)

	resp := api.Get("/conversations/not-a-uuid")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestListTranscript(t *testing.T) {
	t.Parallel()

	repo := memory.NewTranscriptRepo()
	ctx := context.Background()
	convID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Append(ctx, &domain.TranscriptEntry{
			ID:             uuid.New(),
			ConversationID: convID,
			Seq:            i,
			StackSession:   "sess-1",
			User:           "q",
			Assistant:      "a",
			Outcome:        domain.TurnOutcomeCompleted,
			CreatedAt:      now,
		}))
	}

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{}, repo)

	resp := api.Get("/conversations/" + convID.String() + "/transcript?limit=2&offset=1")
	require.Equal(t, http.StatusOK, resp.Code)

	var got struct {
		Total   int64                `json:"total"`
		Entries []v1.TranscriptEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.Total)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, 2, got.Entries[0].Seq)
	assert.Equal(t, 3, got.Entries[1].Seq)
	assert.Equal(t, "completed", got.Entries[0].Outcome)
	assert.True(t, now.Equal(got.Entries[0].CreatedAt))

	resp = api.Get("/conversations/" + uuid.New().String() + "/transcript")
	require.Equal(t, http.StatusOK, resp.Code)

	got.Entries = nil
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, int64(0), got.Total)
	assert.NotNil(t, got.Entries)
	assert.Empty(t, got.Entries)
}

func TestListTranscript_LimitBounds(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{}, memory.NewTranscriptRepo())

	resp := api.Get("/conversations/" + uuid.New().String() + "/transcript?limit=500")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestListTranscript_RepoError(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{}, &mockTranscripts{
		countFunc: func(context.Context, uuid.UUID) (int64, error) { return 0, errors.New("db down") },
	})

	resp := api.Get("/conversations/" + uuid.New().String() + "/transcript")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	body := parseErrorBody(t, resp.Body.Bytes())
	assert.Equal(t, "failed to count transcript", body["detail"])
}

func TestListTranscript_NotRegisteredWithoutRepo(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterConversationRoutes(api, &mockConversations{}, nil)

	resp := api.Get("/conversations/" + uuid.New().String() + "/transcript")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
