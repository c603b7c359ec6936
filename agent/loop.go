// Package agent orchestrates the conversation loop between a Provider and a
// ToolExecutor: stream a turn, execute the completed tool calls, append the
// results, repeat until the model stops requesting tools.
package agent

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gowatsonx/watsonx"
)

// ErrMaxTurns is returned when a run hits its turn cap before the model
// stops requesting tools.
var ErrMaxTurns = errors.New("agent: max turns reached")

// Loop orchestrates the conversation between a Provider and a ToolExecutor.
type Loop struct {
	provider watsonx.Provider
	executor watsonx.ToolExecutor
}

// New creates a new Loop with the given provider and tool executor.
func New(provider watsonx.Provider, executor watsonx.ToolExecutor) *Loop {
	return &Loop{provider: provider, executor: executor}
}

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent  func(watsonx.Event)
	model    string
	maxTurns int
}

// WithEventHandler sets a callback that receives each streaming event during
// the run. If nil or not set, events are silently discarded.
func WithEventHandler(h func(watsonx.Event)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithModel sets the model ID for provider requests during this run.
// Empty string means the provider uses its default model.
func WithModel(model string) RunOption {
	return func(c *runConfig) {
		c.model = model
	}
}

// WithMaxTurns caps the number of provider turns in one run. Zero or
// negative means unlimited.
func WithMaxTurns(n int) RunOption {
	return func(c *runConfig) {
		c.maxTurns = n
	}
}

// Run executes the agent loop. It sends the session's messages to the provider,
// streams the response, executes any tool calls, and repeats until the assistant
// stops requesting tools. It appends all messages to session.Messages.
func (l *Loop) Run(ctx context.Context, session *watsonx.Session, tools []watsonx.Tool, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	for turn := 0; ; turn++ {
		if cfg.maxTurns > 0 && turn >= cfg.maxTurns {
			return ErrMaxTurns
		}
		cont, err := l.turn(ctx, session, tools, &cfg)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// turn executes a single turn of the conversation loop. It returns true if the
// loop should continue (tool calls were made), false if it should stop.
func (l *Loop) turn(ctx context.Context, session *watsonx.Session, tools []watsonx.Tool, cfg *runConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req := watsonx.Request{
		Model:        cfg.model,
		SystemPrompt: session.SystemPrompt,
		Messages:     session.Messages,
		Tools:        tools,
	}

	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	// Drain the stream, forwarding events to handler if set.
	var streamErr error
	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if cfg.onEvent != nil {
			cfg.onEvent(evt)
		}
	}

	// Get the assembled message (partial or complete).
	msg, msgErr := stream.Message()
	if msgErr != nil {
		if streamErr != nil {
			return false, streamErr
		}
		return false, msgErr
	}

	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now()

	if streamErr != nil {
		return false, streamErr
	}

	toolCalls := msg.ToolCalls()
	if len(toolCalls) == 0 {
		return false, nil
	}

	// Execute each tool call and append results to the session.
	for _, tc := range toolCalls {
		result, execErr := l.executor.Execute(ctx, tc.Name, tc.Arguments)
		if execErr != nil {
			result = &watsonx.ToolResult{
				Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: execErr.Error()}},
				IsError: true,
			}
		}

		trm := watsonx.ToolResultMessage{
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Content:    result.Content,
			IsError:    result.IsError,
			Timestamp:  time.Now(),
		}
		session.Messages = append(session.Messages, trm)
	}
	session.UpdatedAt = time.Now()

	return true, nil
}
