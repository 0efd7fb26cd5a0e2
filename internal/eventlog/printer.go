// Package eventlog renders turn events to a terminal.
package eventlog

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/gosuda/stackchat/internal/turn"
)

// Printer is a turn.Sink that prints events the way a person reads a chat:
// role prefixes on their own lines, model text streamed inline.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	inline bool // last write left the cursor mid-line

	user      lipgloss.Style
	inference lipgloss.Style
	tool      lipgloss.Style
	memory    lipgloss.Style
	shieldOK  lipgloss.Style
	shieldBad lipgloss.Style
}

// NewPrinter returns a printer writing to w. Colours are used only when w is
// a terminal that supports them.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:         w,
		user:      r.NewStyle().Foreground(lipgloss.Color("6")),
		inference: r.NewStyle().Foreground(lipgloss.Color("3")),
		tool:      r.NewStyle().Foreground(lipgloss.Color("2")),
		memory:    r.NewStyle().Foreground(lipgloss.Color("4")),
		shieldOK:  r.NewStyle().Foreground(lipgloss.Color("2")),
		shieldBad: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// User prints the user's message before a turn starts.
func (p *Printer) User(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.line(p.user.Render("User>") + " " + strings.TrimSpace(message))
}

// Record implements turn.Sink.
func (p *Printer) Record(ev turn.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := ev.(type) {
	case turn.StepStarted:
		if e.Step == turn.StepInference {
			p.breakLine()
			p.write(p.inference.Render("inference>") + " ")
		}
	case turn.ContentDelta:
		p.write(e.Text)
	case turn.ToolCallDelta:
		p.write(e.Content)
	case turn.StepCompleted:
		if e.Step == turn.StepInference {
			p.breakLine()
		}
	case turn.ToolExecution:
		for _, c := range e.Calls {
			p.line(fmt.Sprintf("%s Tool:%s Args:%s", p.tool.Render("tool_execution>"), c.Name, string(c.Arguments)))
		}
		for _, r := range e.Responses {
			p.line(fmt.Sprintf("%s Tool:%s Response:%s", p.tool.Render("tool_execution>"), r.Name, r.Content))
		}
	case turn.ShieldCall:
		if e.Violation == "" {
			p.line(p.shieldOK.Render("shield_call>") + " No Violation")
		} else {
			p.line(p.shieldBad.Render("shield_call>") + " " + e.Violation)
		}
	case turn.MemoryRetrieval:
		p.line(fmt.Sprintf("%s fetched %d bytes from %s", p.memory.Render("memory_retrieval>"), len(e.Context), strings.Join(e.Banks, ",")))
	case turn.TurnCompleted:
		p.breakLine()
	}
}

// line writes s on its own line.
func (p *Printer) line(s string) {
	p.breakLine()
	p.write(s + "\n")
}

func (p *Printer) breakLine() {
	if p.inline {
		p.write("\n")
	}
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	_, _ = io.WriteString(p.w, s)
	p.inline = !strings.HasSuffix(s, "\n")
}
