// Package turn consumes streamed turn events into an incrementally built
// transcript entry.
package turn

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"
)

// Consumer applies a stream of turn events to a Turn.
type Consumer struct {
	sink Sink
}

// NewConsumer returns a consumer that records every event to sink.
// sink may be nil.
func NewConsumer(sink Sink) *Consumer {
	if sink == nil {
		sink = MultiSink()
	}
	return &Consumer{sink: sink}
}

// Consume applies events to t in arrival order until the terminal event, the
// end of the sequence, a sequence error, or ctx cancellation. onUpdate, when
// non-nil, receives a snapshot after every content delta.
//
// A nil return means t reached StateCompleted. Any other outcome leaves t in
// StateFailed with the text applied so far, and the same error is returned.
func (c *Consumer) Consume(ctx context.Context, events iter.Seq2[Event, error], t *Turn, onUpdate func(Entry)) error {
	return c.consume(ctx, events, t, func(e Entry) bool {
		if onUpdate != nil {
			onUpdate(e)
		}
		return true
	})
}

// Stream is the generator form of Consume: it yields a snapshot after every
// content delta and, if the turn fails, a final (snapshot, err) pair.
// Stopping the iteration early stops consumption and fails the turn with
// ErrAbandoned.
func (c *Consumer) Stream(ctx context.Context, events iter.Seq2[Event, error], t *Turn) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		stopped := false
		err := c.consume(ctx, events, t, func(e Entry) bool {
			if !yield(e, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(t.Entry(), err)
		}
	}
}

func (c *Consumer) consume(ctx context.Context, events iter.Seq2[Event, error], t *Turn, update func(Entry) bool) error {
	if t.State() != StatePending {
		return fmt.Errorf("turn.Consumer.Consume: %w", ErrTurnAlreadyStarted)
	}

	var failure error
	completed := false

	for ev, err := range events {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failure = fmt.Errorf("turn.Consumer.Consume: %w", ctxErr)
			break
		}
		if err != nil {
			failure = fmt.Errorf("turn.Consumer.Consume: %w: %w", ErrStreamInterrupted, err)
			break
		}
		if ev == nil {
			failure = fmt.Errorf("turn.Consumer.Consume: %w: nil event", ErrStreamInterrupted)
			break
		}

		if t.State() == StatePending {
			if tErr := t.transition(StateStreaming); tErr != nil {
				failure = fmt.Errorf("turn.Consumer.Consume: %w", tErr)
				break
			}
		}

		c.sink.Record(ev)

		switch e := ev.(type) {
		case ContentDelta:
			snap, dErr := t.appendDelta(e.Text)
			if dErr != nil {
				failure = fmt.Errorf("turn.Consumer.Consume: %w", dErr)
				break
			}
			if !update(snap) {
				failure = fmt.Errorf("turn.Consumer.Consume: %w", ErrAbandoned)
			}
		case TurnCompleted:
			if e.Output != "" && e.Output != t.Entry().Assistant {
				log.Debug().Int("streamed_bytes", len(t.Entry().Assistant)).Int("output_bytes", len(e.Output)).
					Msg("turn.Consumer: final output differs from streamed text")
			}
			if tErr := t.transition(StateCompleted); tErr != nil {
				failure = fmt.Errorf("turn.Consumer.Consume: %w", tErr)
				break
			}
			completed = true
		}

		if failure != nil || completed {
			break
		}
	}

	if completed {
		return nil
	}
	if failure == nil {
		failure = fmt.Errorf("turn.Consumer.Consume: %w", ErrIncomplete)
	}
	t.Fail(failure)
	return failure
}
