package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/agent"
	"github.com/gowatsonx/watsonx/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns a mock stream that yields the message's blocks as events
// and then the assembled message.
func scripted(msg watsonx.AssistantMessage) *mock.Stream {
	var events []watsonx.Event
	for i, block := range msg.Content {
		switch b := block.(type) {
		case watsonx.TextBlock:
			events = append(events, watsonx.EventTextDelta{Delta: b.Text})
		case watsonx.ToolCallBlock:
			events = append(events, watsonx.EventToolCallEnd{Index: i, Call: b})
		}
	}
	i := 0
	return &mock.Stream{
		NextFn: func() (watsonx.Event, error) {
			if i >= len(events) {
				return nil, io.EOF
			}
			evt := events[i]
			i++
			return evt, nil
		},
		MessageFn: func() (watsonx.AssistantMessage, error) {
			return msg, nil
		},
	}
}

func textMsg(text string) watsonx.AssistantMessage {
	return watsonx.AssistantMessage{
		Content:    []watsonx.ContentBlock{watsonx.TextBlock{Text: text}},
		StopReason: watsonx.StopEndTurn,
	}
}

func toolMsg(id, name, args string) watsonx.AssistantMessage {
	return watsonx.AssistantMessage{
		Content: []watsonx.ContentBlock{
			watsonx.ToolCallBlock{ID: id, Name: name, Arguments: json.RawMessage(args)},
		},
		StopReason: watsonx.StopToolUse,
	}
}

func TestRun_NoToolCalls(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			return scripted(textMsg("done")), nil
		},
	}

	loop := agent.New(provider, &mock.ToolExecutor{})
	session := &watsonx.Session{
		Messages: []watsonx.Message{
			watsonx.UserMessage{Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "hi"}}},
		},
	}

	require.NoError(t, loop.Run(context.Background(), session, nil))
	require.Len(t, session.Messages, 2)
	got, ok := session.Messages[1].(watsonx.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "done", got.Text())
	assert.False(t, session.UpdatedAt.IsZero())
}

func TestRun_ExecutesToolCallsThenStops(t *testing.T) {
	t.Parallel()
	var turn int
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			turn++
			if turn == 1 {
				return scripted(toolMsg("tc_1", "read", `{"path": "a.go"}`)), nil
			}
			// The second request must carry the tool result.
			last, ok := req.Messages[len(req.Messages)-1].(watsonx.ToolResultMessage)
			require.True(t, ok)
			assert.Equal(t, "tc_1", last.ToolCallID)
			assert.False(t, last.IsError)
			return scripted(textMsg("file read")), nil
		},
	}
	executor := &mock.ToolExecutor{
		ExecuteFn: func(ctx context.Context, name string, args json.RawMessage) (*watsonx.ToolResult, error) {
			assert.Equal(t, "read", name)
			assert.JSONEq(t, `{"path": "a.go"}`, string(args))
			return &watsonx.ToolResult{
				Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "package main"}},
			}, nil
		},
	}

	loop := agent.New(provider, executor)
	session := &watsonx.Session{
		Messages: []watsonx.Message{
			watsonx.UserMessage{Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "read a.go"}}},
		},
	}

	require.NoError(t, loop.Run(context.Background(), session, nil))
	assert.Equal(t, 2, turn)
	// user, assistant(tool call), tool result, assistant(final)
	require.Len(t, session.Messages, 4)
}

func TestRun_ExecutorErrorBecomesErrorResult(t *testing.T) {
	t.Parallel()
	var turn int
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			turn++
			if turn == 1 {
				return scripted(toolMsg("tc_1", "read", `{}`)), nil
			}
			return scripted(textMsg("recovered")), nil
		},
	}
	executor := &mock.ToolExecutor{
		ExecuteFn: func(ctx context.Context, name string, args json.RawMessage) (*watsonx.ToolResult, error) {
			return nil, errors.New("disk unavailable")
		},
	}

	loop := agent.New(provider, executor)
	session := &watsonx.Session{}

	require.NoError(t, loop.Run(context.Background(), session, nil))

	trm, ok := session.Messages[1].(watsonx.ToolResultMessage)
	require.True(t, ok)
	assert.True(t, trm.IsError)
	require.Len(t, trm.Content, 1)
	assert.Equal(t, watsonx.TextBlock{Text: "disk unavailable"}, trm.Content[0])
}

func TestRun_EventHandler(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			return scripted(textMsg("hello")), nil
		},
	}

	var events []watsonx.Event
	loop := agent.New(provider, &mock.ToolExecutor{})
	err := loop.Run(context.Background(), &watsonx.Session{}, nil,
		agent.WithEventHandler(func(evt watsonx.Event) { events = append(events, evt) }))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, watsonx.EventTextDelta{Delta: "hello"}, events[0])
}

func TestRun_ModelOverride(t *testing.T) {
	t.Parallel()
	var gotModel string
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			gotModel = req.Model
			return scripted(textMsg("ok")), nil
		},
	}

	loop := agent.New(provider, &mock.ToolExecutor{})
	err := loop.Run(context.Background(), &watsonx.Session{}, nil,
		agent.WithModel("mistralai/mistral-large"))
	require.NoError(t, err)
	assert.Equal(t, "mistralai/mistral-large", gotModel)
}

func TestRun_MaxTurns(t *testing.T) {
	t.Parallel()
	var turns int
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			turns++
			// Always request another tool call.
			return scripted(toolMsg("tc", "loop", `{}`)), nil
		},
	}
	executor := &mock.ToolExecutor{
		ExecuteFn: func(ctx context.Context, name string, args json.RawMessage) (*watsonx.ToolResult, error) {
			return &watsonx.ToolResult{Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "again"}}}, nil
		},
	}

	loop := agent.New(provider, executor)
	err := loop.Run(context.Background(), &watsonx.Session{}, nil, agent.WithMaxTurns(3))
	assert.ErrorIs(t, err, agent.ErrMaxTurns)
	assert.Equal(t, 3, turns)
}

func TestRun_StreamErrorStops(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("connection reset")
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			return &mock.Stream{
				NextFn: func() (watsonx.Event, error) { return nil, wantErr },
				MessageFn: func() (watsonx.AssistantMessage, error) {
					return watsonx.AssistantMessage{StopReason: watsonx.StopError}, nil
				},
			}, nil
		},
	}

	loop := agent.New(provider, &mock.ToolExecutor{})
	session := &watsonx.Session{}
	err := loop.Run(context.Background(), session, nil)
	assert.ErrorIs(t, err, wantErr)
	// The partial message is still appended to the session.
	require.Len(t, session.Messages, 1)
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{
		StreamFn: func(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
			t.Fatal("provider should not be called")
			return nil, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := agent.New(provider, &mock.ToolExecutor{})
	err := loop.Run(ctx, &watsonx.Session{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
