package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/transport"
)

// Interface compliance check.
var _ watsonx.Provider = (*Client)(nil)

// Client implements [watsonx.Provider] for the watsonx.ai chat API.
type Client struct {
	transport   *transport.Client
	projectID   string
	spaceID     string
	model       string
	maxTokens   int
	interceptor watsonx.ToolCallInterceptor
}

// Option configures a [Client].
type Option func(*Client)

// WithProject scopes requests to a project.
func WithProject(id string) Option {
	return func(c *Client) { c.projectID = id }
}

// WithSpace scopes requests to a deployment space.
func WithSpace(id string) Option {
	return func(c *Client) { c.spaceID = id }
}

// WithModel sets the default model ID used when a request leaves Model empty.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens sets the default max_tokens used when a request leaves it zero.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithToolCallInterceptor installs a normalization hook that rewrites each
// completed tool call before it is emitted and before it is stored in the
// assembled message. The normalized call is what callers see everywhere,
// including conversation history.
func WithToolCallInterceptor(fn watsonx.ToolCallInterceptor) Option {
	return func(c *Client) { c.interceptor = fn }
}

// New creates a chat [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{
		transport: t,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming chat request and returns a [watsonx.Stream] that
// emits semantic events as SSE chunks arrive.
func (c *Client) Stream(ctx context.Context, req watsonx.Request) (watsonx.Stream, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	rc, err := c.transport.Stream(ctx, chatStreamPath, body)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return newStream(ctx, rc, c.interceptor), nil
}

// Chat sends a blocking chat request and returns the complete message.
func (c *Client) Chat(ctx context.Context, req watsonx.Request) (watsonx.AssistantMessage, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return watsonx.AssistantMessage{}, err
	}
	var resp apiChatResponse
	if err := c.transport.PostJSON(ctx, chatPath, body, &resp); err != nil {
		return watsonx.AssistantMessage{}, fmt.Errorf("chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return watsonx.AssistantMessage{}, fmt.Errorf("chat: response carries no choices")
	}
	return c.convertResponse(resp), nil
}

func (c *Client) buildRequest(req watsonx.Request) (*apiRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("chat: model required: %w", watsonx.ErrValidation)
	}
	if c.projectID == "" && c.spaceID == "" {
		return nil, fmt.Errorf("chat: project or space id required: %w", watsonx.ErrValidation)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	return &apiRequest{
		ModelID:     model,
		ProjectID:   c.projectID,
		SpaceID:     c.spaceID,
		Messages:    convertMessages(req.SystemPrompt, req.Messages),
		Tools:       convertTools(req.Tools),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TimeLimit:   req.TimeLimit.Milliseconds(),
	}, nil
}

func (c *Client) convertResponse(resp apiChatResponse) watsonx.AssistantMessage {
	choice := resp.Choices[0]

	var msg watsonx.AssistantMessage
	if choice.Message.ReasoningContent != "" {
		msg.Content = append(msg.Content, watsonx.ThinkingBlock{Thinking: choice.Message.ReasoningContent})
	}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, watsonx.TextBlock{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		call := watsonx.ToolCallBlock{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if len(call.Arguments) == 0 {
			call.Arguments = json.RawMessage("{}")
		}
		if c.interceptor != nil {
			call = c.interceptor(call)
		}
		msg.Content = append(msg.Content, call)
	}

	msg.RawStopReason = choice.FinishReason
	msg.StopReason = mapStopReason(choice.FinishReason)
	if resp.Usage != nil {
		msg.Usage = watsonx.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return msg
}

func convertMessages(systemPrompt string, msgs []watsonx.Message) []apiMessage {
	var result []apiMessage
	if systemPrompt != "" {
		result = append(result, apiMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case watsonx.UserMessage:
			result = append(result, apiMessage{
				Role:    "user",
				Content: convertUserContent(m.Content),
			})
		case watsonx.AssistantMessage:
			am := apiMessage{Role: "assistant"}
			if text := m.Text(); text != "" {
				am.Content = text
			}
			for _, tc := range m.ToolCalls() {
				am.ToolCalls = append(am.ToolCalls, apiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: apiFunction{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			// Thinking blocks are not replayed; the service rejects
			// reasoning content in request messages.
			result = append(result, am)
		case watsonx.ToolResultMessage:
			result = append(result, apiMessage{
				Role:       "tool",
				ToolCallID: m.ToolCallID,
				Content:    textContent(m.Content),
			})
		}
	}
	return result
}

func convertUserContent(blocks []watsonx.ContentBlock) []apiContentPart {
	result := make([]apiContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch bl := b.(type) {
		case watsonx.TextBlock:
			result = append(result, apiContentPart{Type: "text", Text: bl.Text})
		case watsonx.ImageBlock:
			url := fmt.Sprintf("data:%s;base64,%s", bl.MimeType, base64.StdEncoding.EncodeToString(bl.Data))
			result = append(result, apiContentPart{Type: "image_url", ImageURL: &apiImageURL{URL: url}})
		}
	}
	return result
}

func textContent(blocks []watsonx.ContentBlock) string {
	var out string
	for _, b := range blocks {
		if tb, ok := b.(watsonx.TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

func convertTools(tools []watsonx.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		result[i] = apiTool{
			Type: "function",
			Function: apiToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

func mapStopReason(raw string) watsonx.StopReason {
	switch raw {
	case "stop":
		return watsonx.StopEndTurn
	case "length":
		return watsonx.StopLength
	case "tool_calls":
		return watsonx.StopToolUse
	case "time_limit":
		return watsonx.StopTimeLimit
	default:
		return watsonx.StopUnknown
	}
}
