// Package forecast wraps the watsonx.ai time series forecasting endpoint.
//
// Data is column-oriented: each column name maps to a slice of values, and
// the schema names which columns hold timestamps, series ids, and targets.
package forecast

import (
	"context"
	"fmt"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/transport"
)

const forecastPath = "/ml/v1/time_series/forecast"

// Client calls the forecast endpoint.
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

// New creates a forecast [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Schema describes the roles of the data columns.
type Schema struct {
	TimestampColumn string   // required
	IDColumns       []string // distinguish series in multi-series data
	TargetColumns   []string // columns to forecast
	FreqUnits       string   // observation frequency, e.g. "1h"; empty infers
}

// Request parametrizes a forecast call. Data maps column name to values;
// every column must have the same length.
type Request struct {
	Model            string
	Schema           Schema
	Data             map[string][]any
	PredictionLength int // number of future points; 0 uses the model default
}

// Result holds the forecast rows in the same column-oriented shape.
type Result struct {
	Model   string
	Results []map[string][]any
}

// Forecast predicts future values for the target columns.
func (c *Client) Forecast(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("forecast: model required: %w", watsonx.ErrValidation)
	}
	if req.Schema.TimestampColumn == "" {
		return nil, fmt.Errorf("forecast: timestamp column required: %w", watsonx.ErrValidation)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("forecast: data required: %w", watsonx.ErrValidation)
	}
	if _, ok := req.Data[req.Schema.TimestampColumn]; !ok {
		return nil, fmt.Errorf("forecast: data missing timestamp column %q: %w",
			req.Schema.TimestampColumn, watsonx.ErrValidation)
	}

	n := -1
	for col, values := range req.Data {
		if n == -1 {
			n = len(values)
			continue
		}
		if len(values) != n {
			return nil, fmt.Errorf("forecast: column %q has %d values, want %d: %w",
				col, len(values), n, watsonx.ErrValidation)
		}
	}

	body := apiRequest{
		ModelID:   model,
		ProjectID: c.projectID,
		SpaceID:   c.spaceID,
		Data:      req.Data,
		Schema: apiSchema{
			TimestampColumn: req.Schema.TimestampColumn,
			IDColumns:       req.Schema.IDColumns,
			TargetColumns:   req.Schema.TargetColumns,
			FreqUnits:       req.Schema.FreqUnits,
		},
	}
	if req.PredictionLength > 0 {
		body.Parameters = &apiParams{PredictionLength: req.PredictionLength}
	}

	var resp apiResponse
	if err := c.transport.PostJSON(ctx, forecastPath, body, &resp); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return &Result{Model: resp.ModelID, Results: resp.Results}, nil
}

type apiRequest struct {
	ModelID    string           `json:"model_id"`
	ProjectID  string           `json:"project_id,omitempty"`
	SpaceID    string           `json:"space_id,omitempty"`
	Data       map[string][]any `json:"data"`
	Schema     apiSchema        `json:"schema"`
	Parameters *apiParams       `json:"parameters,omitempty"`
}

type apiSchema struct {
	TimestampColumn string   `json:"timestamp_column"`
	IDColumns       []string `json:"id_columns,omitempty"`
	TargetColumns   []string `json:"target_columns,omitempty"`
	FreqUnits       string   `json:"freq,omitempty"`
}

type apiParams struct {
	PredictionLength int `json:"prediction_length"`
}

type apiResponse struct {
	ModelID string             `json:"model_id"`
	Results []map[string][]any `json:"results"`
}
