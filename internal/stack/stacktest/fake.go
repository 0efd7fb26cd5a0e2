// Package stacktest provides an in-memory stack for tests.
package stacktest

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/gosuda/stackchat/internal/stack"
	"github.com/gosuda/stackchat/internal/turn"
)

// Fake implements every stack operation in memory. The zero value is not
// usable; call New.
type Fake struct {
	mu sync.Mutex

	providers map[string][]stack.ProviderInfo
	banks     []stack.MemoryBank
	inserted  map[string][]stack.Document
	agents    []stack.AgentConfig
	sessions  []string
	messages  []string

	providerLookups int

	// Reply scripts the events of a turn. Defaults to Echo.
	Reply func(message string) []turn.Event
	// Err, when set, is returned by every call.
	Err error
	// InsertErr, when set, is returned by InsertDocuments only.
	InsertErr error
}

func New() *Fake {
	return &Fake{
		providers: map[string][]stack.ProviderInfo{
			"memory":    {{ProviderID: "faiss-0", ProviderType: "inline::faiss"}},
			"inference": {{ProviderID: "meta-reference-0", ProviderType: "inline::meta-reference"}},
		},
		inserted: map[string][]stack.Document{},
	}
}

// Echo replies with the message itself, one content delta per word.
func Echo(message string) []turn.Event {
	events := []turn.Event{
		turn.TurnStarted{TurnID: "turn"},
		turn.StepStarted{Step: turn.StepInference, StepID: "step"},
	}
	words := strings.SplitAfter(message, " ")
	for _, w := range words {
		if w != "" {
			events = append(events, turn.ContentDelta{Text: w})
		}
	}
	return append(events,
		turn.StepCompleted{Step: turn.StepInference, StepID: "step"},
		turn.TurnCompleted{Output: message},
	)
}

func (f *Fake) ListProviders(context.Context) (map[string][]stack.ProviderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.providerLookups++
	out := make(map[string][]stack.ProviderInfo, len(f.providers))
	for k, v := range f.providers {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

func (f *Fake) ListMemoryBanks(context.Context) ([]stack.MemoryBank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return slices.Clone(f.banks), nil
}

func (f *Fake) RegisterMemoryBank(_ context.Context, req stack.RegisterMemoryBankRequest) (*stack.MemoryBank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	b := stack.MemoryBank{
		Identifier:     req.MemoryBankID,
		ProviderID:     req.ProviderID,
		Type:           "vector",
		EmbeddingModel: req.Params.EmbeddingModel,
	}
	f.banks = append(f.banks, b)
	return &b, nil
}

func (f *Fake) InsertDocuments(_ context.Context, bankID string, docs []stack.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.inserted[bankID] = append(f.inserted[bankID], docs...)
	return nil
}

func (f *Fake) CreateAgent(_ context.Context, cfg stack.AgentConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.agents = append(f.agents, cfg)
	return fmt.Sprintf("agent-%d", len(f.agents)), nil
}

func (f *Fake) CreateSession(_ context.Context, _, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.sessions = append(f.sessions, name)
	return fmt.Sprintf("sess-%d", len(f.sessions)), nil
}

// CreateTurn records the last user message and streams the scripted reply.
func (f *Fake) CreateTurn(ctx context.Context, _, _ string, messages []stack.Message) iter.Seq2[turn.Event, error] {
	return func(yield func(turn.Event, error) bool) {
		f.mu.Lock()
		err := f.Err
		reply := f.Reply
		var msg string
		if n := len(messages); n > 0 {
			msg = messages[n-1].Content
		}
		f.messages = append(f.messages, msg)
		f.mu.Unlock()

		if err != nil {
			yield(nil, err)
			return
		}
		if reply == nil {
			reply = Echo
		}
		for _, ev := range reply(msg) {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Banks returns the registered banks.
// ProviderLookups reports how many times ListProviders was called.
func (f *Fake) ProviderLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providerLookups
}

func (f *Fake) Banks() []stack.MemoryBank {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.banks)
}

// Inserted returns the documents inserted into bankID.
func (f *Fake) Inserted(bankID string) []stack.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.inserted[bankID])
}

// Agents returns the configurations of every created agent.
func (f *Fake) Agents() []stack.AgentConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.agents)
}

// Sessions returns the names of every created session.
func (f *Fake) Sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sessions)
}

// Messages returns the user message of every turn, in order.
func (f *Fake) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}
