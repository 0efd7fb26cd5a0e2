package turn

import "encoding/json"

// StepType identifies the kind of step a turn is executing.
type StepType string

const (
	StepInference       StepType = "inference"
	StepToolExecution   StepType = "tool_execution"
	StepShieldCall      StepType = "shield_call"
	StepMemoryRetrieval StepType = "memory_retrieval"
)

// Event is one incremental unit of a streamed turn. The set of variants is
// closed: only types in this package implement it.
type Event interface {
	// Kind returns a short stable name, used for logging and metrics.
	Kind() string
	isEvent()
}

// TurnStarted is emitted once before any step runs.
type TurnStarted struct {
	TurnID string
}

// StepStarted marks the beginning of a step.
type StepStarted struct {
	Step   StepType
	StepID string
}

// ContentDelta carries a fragment of assistant text.
type ContentDelta struct {
	Text string
}

// ToolCallDelta carries a fragment of a tool call being generated by the model.
type ToolCallDelta struct {
	Content string
}

// ToolCall is a single tool invocation.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// ToolResponse is the result of a single tool invocation.
type ToolResponse struct {
	CallID  string
	Name    string
	Content string
}

// ToolExecution reports the calls made and responses received in a tool step.
type ToolExecution struct {
	Calls     []ToolCall
	Responses []ToolResponse
}

// ShieldCall reports the outcome of a safety filter. Violation is empty when
// the shield passed.
type ShieldCall struct {
	Violation string
}

// MemoryRetrieval reports the context inserted from memory banks.
type MemoryRetrieval struct {
	Banks   []string
	Context string
}

// StepCompleted marks the end of a step.
type StepCompleted struct {
	Step   StepType
	StepID string
}

// TurnCompleted is the terminal event of a turn. Output is the server's view
// of the final message and is informational only.
type TurnCompleted struct {
	Output string
}

func (TurnStarted) Kind() string     { return "turn_start" }
func (StepStarted) Kind() string     { return "step_start" }
func (ContentDelta) Kind() string    { return "content_delta" }
func (ToolCallDelta) Kind() string   { return "tool_call_delta" }
func (ToolExecution) Kind() string   { return "tool_execution" }
func (ShieldCall) Kind() string      { return "shield_call" }
func (MemoryRetrieval) Kind() string { return "memory_retrieval" }
func (StepCompleted) Kind() string   { return "step_complete" }
func (TurnCompleted) Kind() string   { return "turn_complete" }

func (TurnStarted) isEvent()     {}
func (StepStarted) isEvent()     {}
func (ContentDelta) isEvent()    {}
func (ToolCallDelta) isEvent()   {}
func (ToolExecution) isEvent()   {}
func (ShieldCall) isEvent()      {}
func (MemoryRetrieval) isEvent() {}
func (StepCompleted) isEvent()   {}
func (TurnCompleted) isEvent()   {}
