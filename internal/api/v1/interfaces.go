package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/stackchat/internal/chat"
	"github.com/gosuda/stackchat/internal/stack"
)

// StackInfo abstracts the read-only stack queries for handler testing.
// *stack.Client satisfies this interface.
type StackInfo interface {
	ListProviders(ctx context.Context) (map[string][]stack.ProviderInfo, error)
	ListMemoryBanks(ctx context.Context) ([]stack.MemoryBank, error)
}

// Conversations looks up open conversations. *chat.Service satisfies this
// interface.
type Conversations interface {
	Conversation(id uuid.UUID) (*chat.Conversation, error)
}

// WidgetSettings is what the chat widget needs to render itself.
type WidgetSettings struct {
	Title          string   `json:"title"`
	Model          string   `json:"model"`
	BankID         string   `json:"bank_id"`
	ExamplePrompts []string `json:"example_prompts"`
	Watch          bool     `json:"watch" doc:"Whether conversations can be watched from other tabs"`
}
