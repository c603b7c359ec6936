package watsonx

import (
	"context"
	"encoding/json"
)

// Tool is the schema sent to the model describing a tool's capabilities.
// Parameters is a JSON Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolExecutor runs tools. Execute returns error for infrastructure failures.
// ToolResult.IsError indicates tool-reported domain failures sent back to the model.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
}

// ToolResult represents the outcome of a tool execution.
type ToolResult struct {
	Content []ContentBlock
	IsError bool
}

// ToolCallInterceptor rewrites a completed tool call before it is emitted and
// before it is stored in the assembled message. Typical use: unwrapping
// double-encoded JSON arguments. The returned block replaces the original.
type ToolCallInterceptor func(ToolCallBlock) ToolCallBlock
