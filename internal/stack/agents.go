package stack

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/gosuda/stackchat/internal/turn"
)

// SamplingParams controls decoding.
type SamplingParams struct {
	Strategy    string  `json:"strategy"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// SearchToolDefinition is the wire form of the web-search tool.
type SearchToolDefinition struct {
	Type   string `json:"type"` // "brave_search"
	Engine string `json:"engine"`
	APIKey string `json:"api_key,omitempty"`
}

// MemoryBankConfig selects one bank for the memory tool.
type MemoryBankConfig struct {
	BankID string `json:"bank_id"`
	Type   string `json:"type"` // "vector"
}

// QueryGeneratorConfig controls how the memory tool builds its query.
type QueryGeneratorConfig struct {
	Type string `json:"type"` // "default"
	Sep  string `json:"sep"`
}

// MemoryToolDefinition is the wire form of the retrieval tool.
type MemoryToolDefinition struct {
	Type                 string                `json:"type"` // "memory"
	MemoryBankConfigs    []MemoryBankConfig    `json:"memory_bank_configs"`
	QueryGeneratorConfig *QueryGeneratorConfig `json:"query_generator_config,omitempty"`
	MaxTokensInContext   int                   `json:"max_tokens_in_context"`
	MaxChunks            int                   `json:"max_chunks"`
}

// AgentConfig is the wire form of an agent configuration. Tools holds
// SearchToolDefinition and MemoryToolDefinition values.
type AgentConfig struct {
	Model                    string         `json:"model"`
	Instructions             string         `json:"instructions"`
	SamplingParams           SamplingParams `json:"sampling_params"`
	Tools                    []any          `json:"tools"`
	ToolChoice               string         `json:"tool_choice"`
	ToolPromptFormat         string         `json:"tool_prompt_format"`
	InputShields             []string       `json:"input_shields"`
	OutputShields            []string       `json:"output_shields"`
	EnableSessionPersistence bool           `json:"enable_session_persistence"`
}

// Message is one chat message sent with a turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a single user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

type createAgentRequest struct {
	AgentConfig AgentConfig `json:"agent_config"`
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// CreateAgent activates cfg on the stack and returns the agent id.
func (c *Client) CreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	var out createAgentResponse
	if err := c.doJSON(ctx, "agents.create", http.MethodPost, "/agents/create", createAgentRequest{AgentConfig: cfg}, &out); err != nil {
		return "", fmt.Errorf("stack.Client.CreateAgent: %w", err)
	}
	if out.AgentID == "" {
		return "", errors.New("stack.Client.CreateAgent: empty agent_id in response")
	}
	return out.AgentID, nil
}

type createSessionRequest struct {
	AgentID     string `json:"agent_id"`
	SessionName string `json:"session_name"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession opens a named session on agentID.
func (c *Client) CreateSession(ctx context.Context, agentID, name string) (string, error) {
	var out createSessionResponse
	req := createSessionRequest{AgentID: agentID, SessionName: name}
	if err := c.doJSON(ctx, "agents.session.create", http.MethodPost, "/agents/session/create", req, &out); err != nil {
		return "", fmt.Errorf("stack.Client.CreateSession: %w", err)
	}
	if out.SessionID == "" {
		return "", errors.New("stack.Client.CreateSession: empty session_id in response")
	}
	return out.SessionID, nil
}

type createTurnRequest struct {
	AgentID   string    `json:"agent_id"`
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
}

// CreateTurn starts a turn and returns its events as a lazy sequence. The
// request is sent when iteration begins; stopping the iteration closes the
// connection. A failed request or a broken stream is yielded as an error and
// ends the sequence.
func (c *Client) CreateTurn(ctx context.Context, agentID, sessionID string, messages []Message) iter.Seq2[turn.Event, error] {
	req := createTurnRequest{AgentID: agentID, SessionID: sessionID, Messages: messages, Stream: true}

	return func(yield func(turn.Event, error) bool) {
		resp, err := c.do(ctx, "agents.turn.create", http.MethodPost, "/agents/turn/create", req, "text/event-stream")
		if err != nil {
			yield(nil, fmt.Errorf("stack.Client.CreateTurn: %w", err))
			return
		}
		defer resp.Body.Close()

		for frame, err := range readSSE(ctx, resp.Body) {
			if err != nil {
				yield(nil, fmt.Errorf("stack.Client.CreateTurn: %w", err))
				return
			}
			events, err := decodeTurnFrame(frame.data)
			if err != nil {
				yield(nil, fmt.Errorf("stack.Client.CreateTurn: %w", err))
				return
			}
			for _, ev := range events {
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}
