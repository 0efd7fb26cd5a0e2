package stack

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/gosuda/stackchat/internal/turn"
)

// ErrMalformedEvent is returned when a stream frame cannot be decoded.
var ErrMalformedEvent = errors.New("stack: malformed turn event") //nolint:gochecknoglobals // sentinel error

type sseFrame struct {
	event string
	data  string
}

// readSSE splits a Server-Sent Events body into frames. Comment lines are
// skipped and multi-line data fields are joined with '\n'. A "[DONE]" data
// field ends the stream.
func readSSE(ctx context.Context, r io.Reader) iter.Seq2[sseFrame, error] {
	return func(yield func(sseFrame, error) bool) {
		scanner := bufio.NewScanner(r)
		// Set a larger buffer for long JSON lines.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var eventName string
		var data strings.Builder

		// flush emits the pending frame; it reports false when iteration must stop.
		flush := func() bool {
			if data.Len() == 0 {
				eventName = ""
				return true
			}
			f := sseFrame{event: eventName, data: data.String()}
			data.Reset()
			eventName = ""
			if f.data == "[DONE]" {
				return false
			}
			return yield(f, nil)
		}

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(sseFrame{}, err)
				return
			}

			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimSpace(line[len("data:"):]))
			}
		}
		if err := scanner.Err(); err != nil {
			yield(sseFrame{}, fmt.Errorf("read event stream: %w", err))
			return
		}
		flush()
	}
}

// Wire shapes of a turn stream frame.
type (
	turnFrame struct {
		Event *struct {
			Payload *turnPayload `json:"payload"`
		} `json:"event"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	turnPayload struct {
		EventType string `json:"event_type"`
		TurnID    string `json:"turn_id"`
		StepType  string `json:"step_type"`
		StepID    string `json:"step_id"`

		ModelResponseTextDelta *string `json:"model_response_text_delta"`
		ToolCallDelta          *struct {
			Content json.RawMessage `json:"content"`
		} `json:"tool_call_delta"`

		StepDetails *stepDetails `json:"step_details"`
		Turn        *struct {
			TurnID        string `json:"turn_id"`
			OutputMessage *struct {
				Content json.RawMessage `json:"content"`
			} `json:"output_message"`
		} `json:"turn"`
	}

	stepDetails struct {
		StepID    string `json:"step_id"`
		ToolCalls []struct {
			CallID    string          `json:"call_id"`
			ToolName  string          `json:"tool_name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"tool_calls"`
		ToolResponses []struct {
			CallID   string          `json:"call_id"`
			ToolName string          `json:"tool_name"`
			Content  json.RawMessage `json:"content"`
		} `json:"tool_responses"`
		Violation *struct {
			UserMessage string `json:"user_message"`
		} `json:"violation"`
		MemoryBankIDs   []string        `json:"memory_bank_ids"`
		InsertedContext json.RawMessage `json:"inserted_context"`
	}
)

// decodeTurnFrame maps one frame to zero or more turn events. A step
// completion with details yields the detail event followed by StepCompleted.
func decodeTurnFrame(data string) ([]turn.Event, error) {
	var f turnFrame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if f.Error != nil {
		return nil, fmt.Errorf("stack error event: %s", f.Error.Message)
	}
	if f.Event == nil || f.Event.Payload == nil {
		return nil, fmt.Errorf("%w: missing event payload", ErrMalformedEvent)
	}

	p := f.Event.Payload
	step := turn.StepType(p.StepType)

	switch p.EventType {
	case "turn_start":
		return []turn.Event{turn.TurnStarted{TurnID: p.TurnID}}, nil

	case "step_start":
		return []turn.Event{turn.StepStarted{Step: step, StepID: p.StepID}}, nil

	case "step_progress":
		switch {
		case p.ModelResponseTextDelta != nil:
			return []turn.Event{turn.ContentDelta{Text: *p.ModelResponseTextDelta}}, nil
		case p.ToolCallDelta != nil:
			return []turn.Event{turn.ToolCallDelta{Content: contentText(p.ToolCallDelta.Content)}}, nil
		default:
			return nil, nil
		}

	case "step_complete":
		done := turn.StepCompleted{Step: step, StepID: p.StepID}
		if p.StepDetails == nil {
			return []turn.Event{done}, nil
		}
		if done.StepID == "" {
			done.StepID = p.StepDetails.StepID
		}
		detail := stepDetailEvent(step, p.StepDetails)
		if detail == nil {
			return []turn.Event{done}, nil
		}
		return []turn.Event{detail, done}, nil

	case "turn_complete":
		out := turn.TurnCompleted{}
		if p.Turn != nil && p.Turn.OutputMessage != nil {
			out.Output = contentText(p.Turn.OutputMessage.Content)
		}
		return []turn.Event{out}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrMalformedEvent, p.EventType)
	}
}

func stepDetailEvent(step turn.StepType, d *stepDetails) turn.Event {
	switch step {
	case turn.StepToolExecution:
		ev := turn.ToolExecution{}
		for _, c := range d.ToolCalls {
			ev.Calls = append(ev.Calls, turn.ToolCall{CallID: c.CallID, Name: c.ToolName, Arguments: c.Arguments})
		}
		for _, r := range d.ToolResponses {
			ev.Responses = append(ev.Responses, turn.ToolResponse{CallID: r.CallID, Name: r.ToolName, Content: contentText(r.Content)})
		}
		return ev
	case turn.StepShieldCall:
		ev := turn.ShieldCall{}
		if d.Violation != nil {
			ev.Violation = d.Violation.UserMessage
		}
		return ev
	case turn.StepMemoryRetrieval:
		return turn.MemoryRetrieval{Banks: d.MemoryBankIDs, Context: contentText(d.InsertedContext)}
	default:
		return nil
	}
}

// contentText flattens the stack's interleaved content: a plain string, an
// object with a "text" field, or a list of either.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var obj struct {
		Text *string `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Text != nil {
		return *obj.Text
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var b strings.Builder
		for _, item := range list {
			b.WriteString(contentText(item))
		}
		return b.String()
	}

	return string(raw)
}
