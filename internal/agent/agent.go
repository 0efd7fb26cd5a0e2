// Package agent binds an immutable configuration to a remote agent and runs
// sessions and turns against it.
package agent

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/stack"
	"github.com/gosuda/stackchat/internal/turn"
)

// Backend is the part of the stack API an agent needs.
type Backend interface {
	CreateAgent(ctx context.Context, cfg stack.AgentConfig) (string, error)
	CreateSession(ctx context.Context, agentID, name string) (string, error)
	CreateTurn(ctx context.Context, agentID, sessionID string, messages []stack.Message) iter.Seq2[turn.Event, error]
}

// Agent is a configuration activated on the stack.
type Agent struct {
	id      string
	config  Config
	backend Backend
}

// Create activates cfg on the backend.
func Create(ctx context.Context, backend Backend, cfg Config) (*Agent, error) {
	id, err := backend.CreateAgent(ctx, cfg.Wire())
	if err != nil {
		return nil, fmt.Errorf("agent.Create: %w", err)
	}
	log.Info().Str("agent_id", id).Str("model", cfg.Model()).Int("tools", len(cfg.tools)).Msg("agent created")
	return &Agent{id: id, config: cfg, backend: backend}, nil
}

func (a *Agent) ID() string     { return a.id }
func (a *Agent) Config() Config { return a.config }

// Session scopes a sequence of turns on an agent.
type Session struct {
	id    string
	name  string
	agent *Agent
}

// CreateSession opens a named session.
func (a *Agent) CreateSession(ctx context.Context, name string) (*Session, error) {
	id, err := a.backend.CreateSession(ctx, a.id, name)
	if err != nil {
		return nil, fmt.Errorf("agent.Agent.CreateSession: %w", err)
	}
	log.Info().Str("agent_id", a.id).Str("session_id", id).Str("session_name", name).Msg("session created")
	return &Session{id: id, name: name, agent: a}, nil
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Name() string  { return s.name }
func (s *Session) Agent() *Agent { return s.agent }

// CreateTurn sends one user message and returns the streamed events.
func (s *Session) CreateTurn(ctx context.Context, message string) iter.Seq2[turn.Event, error] {
	return s.agent.backend.CreateTurn(ctx, s.agent.id, s.id, []stack.Message{stack.UserMessage(message)})
}
