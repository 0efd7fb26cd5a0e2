package turn

import (
	"github.com/rs/zerolog"
)

// Sink receives every event of a turn, in arrival order, before it is applied.
type Sink interface {
	Record(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Record(ev Event) { f(ev) }

type multiSink []Sink

func (m multiSink) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// MultiSink fans each event out to every non-nil sink.
func MultiSink(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes one structured log line per event.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ev Event) {
	e := s.logger.Debug().Str("event", ev.Kind())

	switch v := ev.(type) {
	case TurnStarted:
		e = e.Str("turn_id", v.TurnID)
	case StepStarted:
		e = e.Str("step", string(v.Step)).Str("step_id", v.StepID)
	case ContentDelta:
		e = e.Int("bytes", len(v.Text))
	case ToolCallDelta:
		e = e.Int("bytes", len(v.Content))
	case ToolExecution:
		names := make([]string, 0, len(v.Calls))
		for _, c := range v.Calls {
			names = append(names, c.Name)
		}
		e = e.Strs("tools", names).Int("responses", len(v.Responses))
	case ShieldCall:
		e = e.Bool("violation", v.Violation != "")
	case MemoryRetrieval:
		e = e.Strs("banks", v.Banks).Int("context_bytes", len(v.Context))
	case StepCompleted:
		e = e.Str("step", string(v.Step)).Str("step_id", v.StepID)
	case TurnCompleted:
		e = e.Int("output_bytes", len(v.Output))
	}

	e.Msg("turn event")
}
