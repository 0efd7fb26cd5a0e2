package chat

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/agent"
	"github.com/gosuda/stackchat/internal/domain"
	"github.com/gosuda/stackchat/internal/turn"
)

// Snapshot is the whole visible history of a conversation at one moment.
type Snapshot struct {
	ConversationID uuid.UUID    `json:"conversation_id"`
	History        []turn.Entry `json:"history"`
	State          turn.State   `json:"state"`
	Error          string       `json:"error,omitempty"`
}

// Conversation is one chat history bound to one stack session. Turns on a
// conversation run one at a time.
type Conversation struct {
	id      uuid.UUID
	session *agent.Session
	svc     *Service

	turnMu     sync.Mutex // held for the whole of a turn
	seq        int        // guarded by turnMu
	transcript *turn.Transcript
}

func (c *Conversation) ID() uuid.UUID         { return c.id }
func (c *Conversation) SessionID() string     { return c.session.ID() }
func (c *Conversation) History() []turn.Entry { return c.transcript.Entries() }
func (c *Conversation) snapshot(t *turn.Turn) Snapshot {
	snap := Snapshot{ConversationID: c.id, History: c.transcript.Entries(), State: t.State()}
	if err := t.Err(); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// Clear drops the visible history. It fails with turn.ErrTurnInProgress
// while a turn is running, including after the turn is terminal but before
// its final snapshot has gone out.
func (c *Conversation) Clear() error {
	if !c.turnMu.TryLock() {
		return turn.ErrTurnInProgress
	}
	defer c.turnMu.Unlock()
	return c.transcript.Reset()
}

// Send runs one turn for message. It yields a snapshot after every content
// delta and a final snapshot once the turn is terminal; a failed turn's final
// snapshot comes with its error. A second Send on the same conversation
// waits for the first to finish.
func (c *Conversation) Send(ctx context.Context, message string) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		if strings.TrimSpace(message) == "" {
			yield(Snapshot{ConversationID: c.id, History: c.transcript.Entries()}, ErrEmptyMessage)
			return
		}

		c.turnMu.Lock()
		defer c.turnMu.Unlock()

		t, err := c.transcript.Begin(message)
		if err != nil {
			yield(Snapshot{ConversationID: c.id, History: c.transcript.Entries()}, err)
			return
		}
		c.seq++

		var done func(turn.State)
		if c.svc.opts.Observer != nil {
			done = c.svc.opts.Observer.TurnStarted()
		}

		open := true
		var turnErr error
		for _, err := range c.svc.consumer.Stream(ctx, c.session.CreateTurn(ctx, message), t) {
			if err != nil {
				turnErr = err
				break
			}
			snap := c.snapshot(t)
			c.publish(ctx, snap)
			if !yield(snap, nil) {
				open = false
				break
			}
		}

		if done != nil {
			done(t.State())
		}
		final := c.snapshot(t)
		c.publish(ctx, final)
		c.persist(ctx, t)

		if open {
			yield(final, turnErr)
		}
	}
}

func (c *Conversation) publish(ctx context.Context, snap Snapshot) {
	p := c.svc.opts.Publisher
	if p == nil || c.svc.opts.Channel == nil {
		return
	}
	if err := p.PublishJSON(context.WithoutCancel(ctx), c.svc.opts.Channel(c.id), snap); err != nil {
		log.Warn().Err(err).Str("conversation_id", c.id.String()).Msg("publish snapshot")
	}
}

func (c *Conversation) persist(ctx context.Context, t *turn.Turn) {
	repo := c.svc.opts.Transcripts
	if repo == nil {
		return
	}

	e := t.Entry()
	rec := &domain.TranscriptEntry{
		ID:             uuid.New(),
		ConversationID: c.id,
		Seq:            c.seq,
		StackSession:   c.session.ID(),
		User:           e.User,
		Assistant:      e.Assistant,
		Outcome:        domain.TurnOutcomeCompleted,
		CreatedAt:      time.Now().UTC(),
	}
	if t.State() == turn.StateFailed {
		rec.Outcome = domain.TurnOutcomeFailed
		if err := t.Err(); err != nil {
			rec.Error = err.Error()
		}
	}

	if err := repo.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("conversation_id", c.id.String()).Int("seq", c.seq).Msg("persist transcript entry")
	}
}
