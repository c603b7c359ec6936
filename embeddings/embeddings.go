// Package embeddings wraps the watsonx.ai text embeddings and rerank
// endpoints.
package embeddings

import (
	"context"
	"fmt"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/transport"
)

const (
	embeddingsPath = "/ml/v1/text/embeddings"
	rerankPath     = "/ml/v1/text/rerank"
)

// Client calls the embeddings and rerank endpoints.
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

// New creates an embeddings [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EmbedRequest parametrizes an embeddings call.
type EmbedRequest struct {
	Model          string
	Inputs         []string
	TruncateTokens int  // truncate each input to this many tokens; 0 leaves inputs as-is
	IncludeInput   bool // echo the input text back in each result
}

// Embedding is one input's vector.
type Embedding struct {
	Vector []float64
	Input  string // set when IncludeInput was requested
}

// EmbedResult carries the vectors and the token count consumed.
type EmbedResult struct {
	Model       string
	Embeddings  []Embedding
	InputTokens int
}

// Embed computes a vector for each input, in input order.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("embeddings: model required: %w", watsonx.ErrValidation)
	}
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("embeddings: at least one input required: %w", watsonx.ErrValidation)
	}

	body := apiEmbedRequest{
		ModelID:   model,
		ProjectID: c.projectID,
		SpaceID:   c.spaceID,
		Inputs:    req.Inputs,
	}
	if req.TruncateTokens > 0 {
		body.Parameters = &apiEmbedParams{TruncateInputTokens: req.TruncateTokens}
	}
	if req.IncludeInput {
		if body.Parameters == nil {
			body.Parameters = &apiEmbedParams{}
		}
		body.Parameters.ReturnOptions = &apiReturnOptions{InputText: true}
	}

	var resp apiEmbedResponse
	if err := c.transport.PostJSON(ctx, embeddingsPath, body, &resp); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	result := &EmbedResult{
		Model:       resp.ModelID,
		Embeddings:  make([]Embedding, len(resp.Results)),
		InputTokens: resp.InputTokenCount,
	}
	for i, r := range resp.Results {
		result.Embeddings[i] = Embedding{Vector: r.Embedding, Input: r.Input}
	}
	return result, nil
}

// RerankRequest scores each input against the query.
type RerankRequest struct {
	Model          string
	Query          string
	Inputs         []string
	TruncateTokens int
	TopN           int // 0 returns all inputs
}

// RankedInput is one input's relevance score. Index refers to the request's
// input order.
type RankedInput struct {
	Index int
	Score float64
	Input string
}

// RerankResult carries the scored inputs ordered by descending score.
type RerankResult struct {
	Model       string
	Results     []RankedInput
	InputTokens int
}

// Rerank scores the inputs by relevance to the query.
func (c *Client) Rerank(ctx context.Context, req RerankRequest) (*RerankResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("embeddings: model required: %w", watsonx.ErrValidation)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("embeddings: query required: %w", watsonx.ErrValidation)
	}
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("embeddings: at least one input required: %w", watsonx.ErrValidation)
	}

	body := apiRerankRequest{
		ModelID:   model,
		ProjectID: c.projectID,
		SpaceID:   c.spaceID,
		Query:     req.Query,
		Inputs:    make([]apiRerankInput, len(req.Inputs)),
	}
	for i, in := range req.Inputs {
		body.Inputs[i] = apiRerankInput{Text: in}
	}
	if req.TruncateTokens > 0 || req.TopN > 0 {
		body.Parameters = &apiRerankParams{
			TruncateInputTokens: req.TruncateTokens,
			TopN:                req.TopN,
		}
	}

	var resp apiRerankResponse
	if err := c.transport.PostJSON(ctx, rerankPath, body, &resp); err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	result := &RerankResult{
		Model:       resp.ModelID,
		Results:     make([]RankedInput, len(resp.Results)),
		InputTokens: resp.InputTokenCount,
	}
	for i, r := range resp.Results {
		ranked := RankedInput{Index: r.Index, Score: r.Score}
		if r.Index >= 0 && r.Index < len(req.Inputs) {
			ranked.Input = req.Inputs[r.Index]
		}
		result.Results[i] = ranked
	}
	return result, nil
}

// Wire types.

type apiEmbedRequest struct {
	ModelID    string          `json:"model_id"`
	ProjectID  string          `json:"project_id,omitempty"`
	SpaceID    string          `json:"space_id,omitempty"`
	Inputs     []string        `json:"inputs"`
	Parameters *apiEmbedParams `json:"parameters,omitempty"`
}

type apiEmbedParams struct {
	TruncateInputTokens int               `json:"truncate_input_tokens,omitempty"`
	ReturnOptions       *apiReturnOptions `json:"return_options,omitempty"`
}

type apiReturnOptions struct {
	InputText bool `json:"input_text"`
}

type apiEmbedResponse struct {
	ModelID         string           `json:"model_id"`
	Results         []apiEmbedResult `json:"results"`
	InputTokenCount int              `json:"input_token_count"`
}

type apiEmbedResult struct {
	Embedding []float64 `json:"embedding"`
	Input     string    `json:"input"`
}

type apiRerankRequest struct {
	ModelID    string           `json:"model_id"`
	ProjectID  string           `json:"project_id,omitempty"`
	SpaceID    string           `json:"space_id,omitempty"`
	Query      string           `json:"query"`
	Inputs     []apiRerankInput `json:"inputs"`
	Parameters *apiRerankParams `json:"parameters,omitempty"`
}

type apiRerankInput struct {
	Text string `json:"text"`
}

type apiRerankParams struct {
	TruncateInputTokens int `json:"truncate_input_tokens,omitempty"`
	TopN                int `json:"top_n,omitempty"`
}

type apiRerankResponse struct {
	ModelID         string            `json:"model_id"`
	Results         []apiRerankResult `json:"results"`
	InputTokenCount int               `json:"input_token_count"`
}

type apiRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}
