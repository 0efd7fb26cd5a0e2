package eventlog_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/stackchat/internal/eventlog"
	"github.com/gosuda/stackchat/internal/turn"
)

func record(p *eventlog.Printer, events ...turn.Event) {
	for _, ev := range events {
		p.Record(ev)
	}
}

func TestPrinter_InferenceStreamsInline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := eventlog.NewPrinter(&buf)
	p.User("  What is 2+2?\n")
	record(p,
		turn.TurnStarted{TurnID: "t1"},
		turn.StepStarted{Step: turn.StepInference, StepID: "s1"},
		turn.ContentDelta{Text: "Hel"},
		turn.ContentDelta{Text: "lo"},
		turn.StepCompleted{Step: turn.StepInference, StepID: "s1"},
		turn.TurnCompleted{Output: "Hello"},
	)

	assert.Equal(t, "User> What is 2+2?\ninference> Hello\n", buf.String())
}

func TestPrinter_ToolShieldAndMemory(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := eventlog.NewPrinter(&buf)
	record(p,
		turn.ShieldCall{},
		turn.StepStarted{Step: turn.StepInference},
		turn.ToolCallDelta{Content: "brave_search.call"},
		turn.StepCompleted{Step: turn.StepInference},
		turn.ToolExecution{
			Calls:     []turn.ToolCall{{CallID: "c1", Name: "brave_search", Arguments: json.RawMessage(`{"query":"x"}`)}},
			Responses: []turn.ToolResponse{{CallID: "c1", Name: "brave_search", Content: "result"}},
		},
		turn.MemoryRetrieval{Banks: []string{"a", "b"}, Context: "12345"},
		turn.ShieldCall{Violation: "unsafe"},
	)

	want := "shield_call> No Violation\n" +
		"inference> brave_search.call\n" +
		"tool_execution> Tool:brave_search Args:{\"query\":\"x\"}\n" +
		"tool_execution> Tool:brave_search Response:result\n" +
		"memory_retrieval> fetched 5 bytes from a,b\n" +
		"shield_call> unsafe\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_TurnCompletedEndsOpenLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := eventlog.NewPrinter(&buf)
	record(p, turn.ContentDelta{Text: "partial"}, turn.TurnCompleted{})
	p.User("next")

	assert.Equal(t, "partial\nUser> next\n", buf.String())
}

func TestPrinter_IsSink(t *testing.T) {
	t.Parallel()

	var _ turn.Sink = eventlog.NewPrinter(&bytes.Buffer{})
}
