package agent

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/gosuda/stackchat/internal/stack"
)

const (
	DefaultInstructions = "You are a helpful assistant"
	DefaultShield       = "llama_guard"
)

// ErrNoModel is returned when a configuration names no model.
var ErrNoModel = errors.New("agent: model is required") //nolint:gochecknoglobals // sentinel error

// Sampling controls decoding on the remote model.
type Sampling struct {
	Strategy    string
	Temperature float64
	TopP        float64
}

// DefaultSampling is greedy decoding with temperature 1.0 and top-p 0.9.
func DefaultSampling() Sampling {
	return Sampling{Strategy: "greedy", Temperature: 1.0, TopP: 0.9}
}

// Tool is a tool descriptor. The set of variants is closed.
type Tool interface {
	definition() any
}

// SearchTool enables web search through the named engine.
type SearchTool struct {
	Engine string
	APIKey string
}

func (t SearchTool) definition() any {
	return stack.SearchToolDefinition{Type: "brave_search", Engine: t.Engine, APIKey: t.APIKey}
}

// QueryGenerator controls how the memory tool turns messages into a query.
type QueryGenerator struct {
	Type string
	Sep  string
}

// MemoryTool enables retrieval from vector memory banks.
type MemoryTool struct {
	BankIDs            []string
	QueryGenerator     *QueryGenerator
	MaxTokensInContext int
	MaxChunks          int
}

func (t MemoryTool) definition() any {
	def := stack.MemoryToolDefinition{
		Type:               "memory",
		MemoryBankConfigs:  make([]stack.MemoryBankConfig, 0, len(t.BankIDs)),
		MaxTokensInContext: t.MaxTokensInContext,
		MaxChunks:          t.MaxChunks,
	}
	for _, id := range t.BankIDs {
		def.MemoryBankConfigs = append(def.MemoryBankConfigs, stack.MemoryBankConfig{BankID: id, Type: "vector"})
	}
	if t.QueryGenerator != nil {
		def.QueryGeneratorConfig = &stack.QueryGeneratorConfig{Type: t.QueryGenerator.Type, Sep: t.QueryGenerator.Sep}
	}
	return def
}

// Config is an immutable agent configuration. Build it with NewConfig.
type Config struct {
	model            string
	instructions     string
	sampling         Sampling
	tools            []Tool
	toolChoice       string
	toolPromptFormat string
	inputShields     []string
	outputShields    []string
	persistSessions  bool
}

// Option customises a Config under construction.
type Option func(*Config)

func WithInstructions(s string) Option { return func(c *Config) { c.instructions = s } }
func WithSampling(s Sampling) Option   { return func(c *Config) { c.sampling = s } }
func WithToolChoice(s string) Option   { return func(c *Config) { c.toolChoice = s } }

// WithToolPromptFormat sets how tools are described to the model ("json",
// "function_tag").
func WithToolPromptFormat(s string) Option { return func(c *Config) { c.toolPromptFormat = s } }

// WithTools appends tool descriptors, in order.
func WithTools(tools ...Tool) Option {
	return func(c *Config) { c.tools = append(c.tools, tools...) }
}

// WithShields sets the safety filters applied to input and output.
func WithShields(input, output []string) Option {
	return func(c *Config) {
		c.inputShields = append([]string{}, input...)
		c.outputShields = append([]string{}, output...)
	}
}

// WithSessionPersistence asks the stack to persist sessions.
func WithSessionPersistence(enabled bool) Option {
	return func(c *Config) { c.persistSessions = enabled }
}

// NewConfig builds a configuration for model with the defaults used by every
// program here: default instructions, greedy sampling, automatic tool choice,
// JSON tool prompts and no shields.
func NewConfig(model string, opts ...Option) (Config, error) {
	if strings.TrimSpace(model) == "" {
		return Config{}, ErrNoModel
	}

	c := Config{
		model:            model,
		instructions:     DefaultInstructions,
		sampling:         DefaultSampling(),
		toolChoice:       "auto",
		toolPromptFormat: "json",
		inputShields:     []string{},
		outputShields:    []string{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	// Copy tool descriptors so later edits to the caller's slices cannot leak in.
	tools := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		if m, ok := t.(MemoryTool); ok {
			m.BankIDs = slices.Clone(m.BankIDs)
			t = m
		}
		tools = append(tools, t)
	}
	c.tools = tools
	return c, nil
}

func (c Config) Model() string            { return c.model }
func (c Config) Instructions() string     { return c.instructions }
func (c Config) Sampling() Sampling       { return c.sampling }
func (c Config) Tools() []Tool            { return slices.Clone(c.tools) }
func (c Config) ToolChoice() string       { return c.toolChoice }
func (c Config) ToolPromptFormat() string { return c.toolPromptFormat }
func (c Config) InputShields() []string   { return slices.Clone(c.inputShields) }
func (c Config) OutputShields() []string  { return slices.Clone(c.outputShields) }
func (c Config) SessionPersistence() bool { return c.persistSessions }

// Wire returns the request form sent to the stack.
func (c Config) Wire() stack.AgentConfig {
	tools := make([]any, 0, len(c.tools))
	for _, t := range c.tools {
		tools = append(tools, t.definition())
	}
	return stack.AgentConfig{
		Model:        c.model,
		Instructions: c.instructions,
		SamplingParams: stack.SamplingParams{
			Strategy:    c.sampling.Strategy,
			Temperature: c.sampling.Temperature,
			TopP:        c.sampling.TopP,
		},
		Tools:                    tools,
		ToolChoice:               c.toolChoice,
		ToolPromptFormat:         c.toolPromptFormat,
		InputShields:             c.InputShields(),
		OutputShields:            c.OutputShields(),
		EnableSessionPersistence: c.persistSessions,
	}
}

// Shields returns the default shield list, or none when safety is disabled.
func Shields(disableSafety bool) []string {
	if disableSafety {
		return []string{}
	}
	return []string{DefaultShield}
}

// modelSize matches a size token such as "3B" that is not part of a larger
// number, so "11B" never reads as "1B".
var modelSize = regexp.MustCompile(`(?i)(?:^|[^0-9])([138])b`) //nolint:gochecknoglobals // compiled once

// ResolveModel maps a model name such as "meta-llama/Llama-3.2-3B-Instruct"
// to the identifier the stack registers for it. Unknown names pass through.
func ResolveModel(name string) string {
	m := modelSize.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	switch m[1] {
	case "1":
		return "Llama3.2-1B-Instruct"
	case "3":
		return "Llama3.2-3B-Instruct"
	default:
		return "Llama3.1-8B-Instruct"
	}
}
