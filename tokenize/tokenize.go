// Package tokenize wraps the watsonx.ai text tokenization endpoint.
package tokenize

import (
	"context"
	"fmt"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/transport"
)

const tokenizationPath = "/ml/v1/text/tokenization"

// Client calls the tokenization endpoint.
type Client struct {
	transport *transport.Client
	projectID string
	spaceID   string
	model     string
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

// WithModel sets the default model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a tokenize [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Request parametrizes a tokenization call.
type Request struct {
	Model        string
	Input        string
	ReturnTokens bool // include the token strings, not just the count
}

// Result is the tokenization outcome.
type Result struct {
	Model      string
	TokenCount int
	Tokens     []string // populated when ReturnTokens was set
}

// Tokenize counts (and optionally returns) the model's tokens for the input.
func (c *Client) Tokenize(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("tokenize: model required: %w", watsonx.ErrValidation)
	}
	if req.Input == "" {
		return nil, fmt.Errorf("tokenize: input required: %w", watsonx.ErrValidation)
	}

	body := apiRequest{
		ModelID:   model,
		ProjectID: c.projectID,
		SpaceID:   c.spaceID,
		Input:     req.Input,
	}
	if req.ReturnTokens {
		body.Parameters = &apiParams{ReturnTokens: true}
	}

	var resp apiResponse
	if err := c.transport.PostJSON(ctx, tokenizationPath, body, &resp); err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	return &Result{
		Model:      resp.ModelID,
		TokenCount: resp.Result.TokenCount,
		Tokens:     resp.Result.Tokens,
	}, nil
}

type apiRequest struct {
	ModelID    string     `json:"model_id"`
	ProjectID  string     `json:"project_id,omitempty"`
	SpaceID    string     `json:"space_id,omitempty"`
	Input      string     `json:"input"`
	Parameters *apiParams `json:"parameters,omitempty"`
}

type apiParams struct {
	ReturnTokens bool `json:"return_tokens"`
}

type apiResponse struct {
	ModelID string    `json:"model_id"`
	Result  apiResult `json:"result"`
}

type apiResult struct {
	TokenCount int      `json:"token_count"`
	Tokens     []string `json:"tokens"`
}
