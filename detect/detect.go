// Package detect wraps the watsonx.ai text detection (guardrails) endpoint.
package detect

import (
	"context"
	"fmt"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/transport"
)

const detectionPath = "/ml/v1/text/detection"

// Client calls the detection endpoint.
type Client struct {
	transport *transport.Client
	projectID string
	spaceID   string
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

// New creates a detect [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Request names the detectors to run against the input. The detector map
// keys are detector ids (e.g. "hap", "pii"); values are detector-specific
// parameters and may be empty maps.
type Request struct {
	Input     string
	Detectors map[string]map[string]any
}

// Detection is one flagged span of the input.
type Detection struct {
	Type       string  // e.g. "hap", "pii"
	Text       string  // the flagged span
	Start, End int     // byte offsets into the input
	Score      float64 // detector confidence in [0, 1]
}

// Detect runs the requested detectors over the input.
func (c *Client) Detect(ctx context.Context, req Request) ([]Detection, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("detect: input required: %w", watsonx.ErrValidation)
	}
	if len(req.Detectors) == 0 {
		return nil, fmt.Errorf("detect: at least one detector required: %w", watsonx.ErrValidation)
	}

	detectors := make(map[string]map[string]any, len(req.Detectors))
	for id, params := range req.Detectors {
		if params == nil {
			params = map[string]any{}
		}
		detectors[id] = params
	}

	body := apiRequest{
		ProjectID: c.projectID,
		SpaceID:   c.spaceID,
		Input:     req.Input,
		Detectors: detectors,
	}

	var resp apiResponse
	if err := c.transport.PostJSON(ctx, detectionPath, body, &resp); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	detections := make([]Detection, len(resp.Detections))
	for i, d := range resp.Detections {
		detections[i] = Detection{
			Type:  d.DetectionType,
			Text:  d.Text,
			Start: d.Start,
			End:   d.End,
			Score: d.Score,
		}
	}
	return detections, nil
}

type apiRequest struct {
	ProjectID string                    `json:"project_id,omitempty"`
	SpaceID   string                    `json:"space_id,omitempty"`
	Input     string                    `json:"input"`
	Detectors map[string]map[string]any `json:"detectors"`
}

type apiResponse struct {
	Detections []apiDetection `json:"detections"`
}

type apiDetection struct {
	DetectionType string  `json:"detection_type"`
	Text          string  `json:"text"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Score         float64 `json:"score"`
}
