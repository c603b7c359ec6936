package watsonx_test

import (
	"testing"
	"time"

	"github.com/gowatsonx/watsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	temp := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		req     watsonx.Request
		wantErr bool
	}{
		{"zero value", watsonx.Request{}, false},
		{"temperature in range", watsonx.Request{Temperature: temp(0.7)}, false},
		{"temperature too low", watsonx.Request{Temperature: temp(-0.1)}, true},
		{"temperature too high", watsonx.Request{Temperature: temp(2.1)}, true},
		{"top_p in range", watsonx.Request{TopP: temp(0.9)}, false},
		{"top_p too high", watsonx.Request{TopP: temp(1.5)}, true},
		{"negative max tokens", watsonx.Request{MaxTokens: -1}, true},
		{"negative time limit", watsonx.Request{TimeLimit: -time.Second}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, watsonx.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     watsonx.Message
		wantErr bool
	}{
		{
			"user text",
			watsonx.UserMessage{Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "hi"}}},
			false,
		},
		{
			"user image",
			watsonx.UserMessage{Content: []watsonx.ContentBlock{watsonx.ImageBlock{Data: []byte{1}, MimeType: "image/png"}}},
			false,
		},
		{
			"user tool call rejected",
			watsonx.UserMessage{Content: []watsonx.ContentBlock{watsonx.ToolCallBlock{ID: "tc"}}},
			true,
		},
		{
			"assistant thinking and tool call",
			watsonx.AssistantMessage{Content: []watsonx.ContentBlock{
				watsonx.ThinkingBlock{Thinking: "hm"},
				watsonx.ToolCallBlock{ID: "tc", Name: "read"},
			}},
			false,
		},
		{
			"assistant image rejected",
			watsonx.AssistantMessage{Content: []watsonx.ContentBlock{watsonx.ImageBlock{}}},
			true,
		},
		{
			"tool result text",
			watsonx.ToolResultMessage{ToolCallID: "tc", Content: []watsonx.ContentBlock{watsonx.TextBlock{Text: "ok"}}},
			false,
		},
		{
			"tool result thinking rejected",
			watsonx.ToolResultMessage{ToolCallID: "tc", Content: []watsonx.ContentBlock{watsonx.ThinkingBlock{}}},
			true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := watsonx.ValidateMessage(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, watsonx.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
