package json_test

import (
	encjson "encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gowatsonx/watsonx"
	jsonstore "github.com/gowatsonx/watsonx/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() watsonx.Session {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return watsonx.Session{
		ID:           "sess-1",
		SystemPrompt: "Be terse.",
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Minute),
		Messages: []watsonx.Message{
			watsonx.UserMessage{
				Content: []watsonx.ContentBlock{
					watsonx.TextBlock{Text: "read a.go"},
					watsonx.ImageBlock{Data: []byte{0x89, 0x50}, MimeType: "image/png"},
				},
				Timestamp: created,
			},
			watsonx.AssistantMessage{
				Content: []watsonx.ContentBlock{
					watsonx.ThinkingBlock{Thinking: "needs the read tool"},
					watsonx.ToolCallBlock{ID: "tc_1", Name: "read", Arguments: encjson.RawMessage(`{"path":"a.go"}`)},
				},
				StopReason:    watsonx.StopToolUse,
				RawStopReason: "tool_calls",
				Usage:         watsonx.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
				Timestamp:     created,
			},
			watsonx.ToolResultMessage{
				ToolCallID: "tc_1",
				ToolName:   "read",
				Content:    []watsonx.ContentBlock{watsonx.TextBlock{Text: "package main"}},
				IsError:    false,
				Timestamp:  created,
			},
		},
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleSession()

	data, err := jsonstore.MarshalSession(want)
	require.NoError(t, err)

	got, err := jsonstore.UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMarshal_Envelope(t *testing.T) {
	t.Parallel()
	data, err := jsonstore.MarshalSession(sampleSession())
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, encjson.Unmarshal(data, &env))
	assert.Equal(t, float64(1), env["version"])
	assert.Equal(t, "sess-1", env["id"])

	msgs := env["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].(map[string]any)["type"])
	assistant := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["type"])
	assert.Equal(t, float64(15), assistant["usage"].(map[string]any)["total_tokens"])
	assert.Equal(t, "tool_result", msgs[2].(map[string]any)["type"])
}

func TestUnmarshal_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	_, err := jsonstore.UnmarshalSession([]byte(`{"version": 2, "messages": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported envelope version")
}

func TestUnmarshal_UnknownMessageType(t *testing.T) {
	t.Parallel()
	_, err := jsonstore.UnmarshalSession([]byte(`{
		"version": 1,
		"messages": [{"type": "mystery", "content": []}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown message type")
}

func TestUnmarshal_UnknownContentBlockType(t *testing.T) {
	t.Parallel()
	_, err := jsonstore.UnmarshalSession([]byte(`{
		"version": 1,
		"messages": [{"type": "user", "content": [{"type": "hologram"}]}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content block type")
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	want := sampleSession()
	path := filepath.Join(t.TempDir(), "sessions", "sess-1.json")

	require.NoError(t, jsonstore.Save(path, want))

	// The temp file must not linger.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := jsonstore.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := jsonstore.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
