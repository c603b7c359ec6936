// Package chat implements [watsonx.Provider] for the watsonx.ai text chat
// API.
//
// It supports blocking completion via /ml/v1/text/chat and streaming via
// /ml/v1/text/chat_stream, whose SSE chunks are reassembled into semantic
// events behind the pull-based [watsonx.Stream] interface. Tool call
// arguments arrive fragmented across chunks, keyed by index; an accumulator
// per index closes when a fragment opens a new index or the stream ends.
package chat

import "encoding/json"

const (
	chatPath       = "/ml/v1/text/chat"
	chatStreamPath = "/ml/v1/text/chat_stream"

	defaultMaxTokens = 1024
)

// apiRequest is the JSON body sent to the chat endpoints.
type apiRequest struct {
	ModelID     string       `json:"model_id"`
	ProjectID   string       `json:"project_id,omitempty"`
	SpaceID     string       `json:"space_id,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Tools       []apiTool    `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	TimeLimit   int64        `json:"time_limit,omitempty"` // milliseconds
}

// apiMessage is one conversation entry. Content is either a plain string
// (system, assistant, tool roles) or []apiContentPart (user role).
type apiMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content,omitempty"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiContentPart struct {
	Type     string       `json:"type"` // "text" or "image_url"
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

type apiTool struct {
	Type     string     `json:"type"` // always "function"
	Function apiToolDef `json:"function"`
}

type apiToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type apiToolCall struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"` // always "function"
	Function apiFunction `json:"function"`
}

type apiFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Blocking response types.

type apiChatResponse struct {
	ID      string      `json:"id"`
	ModelID string      `json:"model_id"`
	Choices []apiChoice `json:"choices"`
	Usage   *apiUsage   `json:"usage"`
}

type apiChoice struct {
	Index        int              `json:"index"`
	Message      apiChoiceMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type apiChoiceMessage struct {
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	ReasoningContent string        `json:"reasoning_content"`
	ToolCalls        []apiToolCall `json:"tool_calls"`
}

// Streaming chunk types. One chunk may carry a content delta, a reasoning
// delta, and tool call fragments at once.

type apiChunk struct {
	ID      string           `json:"id"`
	ModelID string           `json:"model_id"`
	Choices []apiChunkChoice `json:"choices"`
	Usage   *apiUsage        `json:"usage"`
}

type apiChunkChoice struct {
	Index        int      `json:"index"`
	Delta        apiDelta `json:"delta"`
	FinishReason string   `json:"finish_reason"`
}

type apiDelta struct {
	Role             string             `json:"role,omitempty"`
	Content          string             `json:"content,omitempty"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []apiToolCallDelta `json:"tool_calls,omitempty"`
}

type apiToolCallDelta struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function apiFunctionDelta `json:"function"`
}

type apiFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
