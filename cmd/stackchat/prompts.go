package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/stackchat/internal/agent"
	"github.com/gosuda/stackchat/internal/eventlog"
	"github.com/gosuda/stackchat/internal/turn"
)

// runPrompts creates an agent and one session, then sends each prompt as its
// own turn, printing events as they stream.
func runPrompts(ctx context.Context, backend agent.Backend, cfg agent.Config, out io.Writer, prompts []string) error {
	a, err := agent.Create(ctx, backend, cfg)
	if err != nil {
		return err
	}

	sess, err := a.CreateSession(ctx, "test-session")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created session_id=%s for Agent(%s)\n", sess.ID(), a.ID())

	printer := eventlog.NewPrinter(out)
	consumer := turn.NewConsumer(turn.MultiSink(printer, turn.NewLogSink(log.Logger)))

	for _, prompt := range prompts {
		printer.User(prompt)
		t := turn.NewTurn(prompt)
		if err := consumer.Consume(ctx, sess.CreateTurn(ctx, prompt), t, nil); err != nil {
			return fmt.Errorf("turn %q: %w", truncate(prompt, 40), err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
