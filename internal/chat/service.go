// Package chat runs document-grounded conversations for the web widget.
// A Service owns one agent; each browser connection gets its own
// Conversation, backed by its own stack session and transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/agent"
	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/memorybank"
	"github.com/gosuda/stackchat/internal/stack"
	"github.com/gosuda/stackchat/internal/turn"
)

// DocsInstructions keep answers to the documents and short.
const DocsInstructions = "You are a helpful assistant that can answer questions based on provided documents. " +
	"Return your answer short and concise, less than 50 words."

// Sentinel errors for the chat layer.
var (
	ErrConversationNotFound = errors.New("chat: conversation not found") //nolint:gochecknoglobals // sentinel error
	ErrEmptyMessage         = errors.New("chat: message is empty")       //nolint:gochecknoglobals // sentinel error
)

// Backend is the stack API a Service needs.
type Backend interface {
	agent.Backend
	memorybank.Backend
}

// Publisher fans snapshots out to watchers in other processes.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any) error
}

// TurnObserver is told when a turn starts and, through the returned
// function, how it ended.
type TurnObserver interface {
	TurnStarted() func(state turn.State)
}

// Options configure a Service. Only Agent is required.
type Options struct {
	Agent agent.Config

	// Bank is ensured before the agent is created, loading documents from
	// DocsDir when it has to be registered. A zero Bank skips setup.
	Bank    memorybank.Spec
	DocsDir string

	Sink        turn.Sink
	Observer    TurnObserver
	Transcripts domain.TranscriptRepository
	Publisher   Publisher
	Channel     func(conversationID uuid.UUID) string
}

type bankState int

const (
	bankUnchecked  bankState = iota
	bankRegistered           // registered by this process, documents not yet in
	bankReady
)

// Service owns the agent and the open conversations.
type Service struct {
	backend  Backend
	opts     Options
	consumer *turn.Consumer

	initMu    sync.Mutex
	bankState bankState // guarded by initMu
	agent     *agent.Agent

	mu    sync.RWMutex
	convs map[uuid.UUID]*Conversation
}

func NewService(backend Backend, opts Options) *Service {
	return &Service{
		backend:  backend,
		opts:     opts,
		consumer: turn.NewConsumer(opts.Sink),
		convs:    make(map[uuid.UUID]*Conversation),
	}
}

// NewDocsConfig returns the agent configuration for answering from bankID.
func NewDocsConfig(model, bankID string, maxTokens, maxChunks int, shields []string) (agent.Config, error) {
	return agent.NewConfig(agent.ResolveModel(model),
		agent.WithInstructions(DocsInstructions),
		agent.WithTools(agent.MemoryTool{
			BankIDs:            []string{bankID},
			MaxTokensInContext: maxTokens,
			MaxChunks:          maxChunks,
		}),
		agent.WithShields(shields, shields),
		agent.WithSessionPersistence(true),
	)
}

// Init prepares the memory bank and creates the agent. It is safe to call
// repeatedly; only the first successful call does any work.
func (s *Service) Init(ctx context.Context) error {
	_, err := s.ensureAgent(ctx)
	return err
}

func (s *Service) ensureAgent(ctx context.Context) (*agent.Agent, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.agent != nil {
		return s.agent, nil
	}

	if err := s.ensureBank(ctx); err != nil {
		return nil, fmt.Errorf("chat.Service.Init: %w", err)
	}

	a, err := agent.Create(ctx, s.backend, s.opts.Agent)
	if err != nil {
		return nil, fmt.Errorf("chat.Service.Init: %w", err)
	}
	s.agent = a
	return a, nil
}

// ensureBank gets the memory bank to hold the docs directory. A bank this
// process registered is not ready until its documents are in, so a retry
// after a failed insert inserts again instead of trusting the bank.
func (s *Service) ensureBank(ctx context.Context) error {
	if s.opts.Bank.ID == "" || s.bankState == bankReady {
		return nil
	}

	load := func() ([]stack.Document, error) {
		return memorybank.LoadDir(s.opts.DocsDir)
	}

	if s.bankState == bankRegistered {
		if err := memorybank.Insert(ctx, s.backend, s.opts.Bank.ID, load); err != nil {
			return err //nolint:wrapcheck // wrapped by caller
		}
		s.bankState = bankReady
		return nil
	}

	created, err := memorybank.Ensure(ctx, s.backend, s.opts.Bank, load)
	if err != nil {
		if created {
			s.bankState = bankRegistered
		}
		return err //nolint:wrapcheck // wrapped by caller
	}
	s.bankState = bankReady
	return nil
}

// Open starts a conversation on a fresh stack session, initialising the
// service first if needed.
func (s *Service) Open(ctx context.Context) (*Conversation, error) {
	a, err := s.ensureAgent(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	sess, err := a.CreateSession(ctx, "session-"+id.String())
	if err != nil {
		return nil, fmt.Errorf("chat.Service.Open: %w", err)
	}

	c := &Conversation{
		id:         id,
		session:    sess,
		svc:        s,
		transcript: turn.NewTranscript(),
	}

	s.mu.Lock()
	s.convs[id] = c
	s.mu.Unlock()

	log.Info().Str("conversation_id", id.String()).Str("session_id", sess.ID()).Msg("conversation opened")
	return c, nil
}

// Conversation returns an open conversation by id.
func (s *Service) Conversation(id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("chat.Service.Conversation(%s): %w", id, ErrConversationNotFound)
	}
	return c, nil
}

// Close forgets a conversation. Its persisted transcript is kept.
func (s *Service) Close(id uuid.UUID) {
	s.mu.Lock()
	delete(s.convs, id)
	s.mu.Unlock()
}

// Len returns the number of open conversations.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Transcripts returns the repository finished turns are written to, or nil.
func (s *Service) Transcripts() domain.TranscriptRepository {
	return s.opts.Transcripts
}

// Model returns the model the agent runs on.
func (s *Service) Model() string { return s.opts.Agent.Model() }
