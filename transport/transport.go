// Package transport provides the authenticated HTTP client shared by the
// watsonx.ai service packages: bearer auth from a token source, the version
// date query parameter, typed vendor error decoding, and optional client-side
// rate limiting and debug logging.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/iam"
)

// DefaultVersion is the API version date sent when none is configured.
const DefaultVersion = "2024-05-31"

// Client is an authenticated HTTP client for one watsonx.ai regional endpoint.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	tokens     iam.TokenSource
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithVersion overrides the API version date query parameter.
func WithVersion(version string) Option {
	return func(c *Client) { c.version = version }
}

// WithRateLimit applies a client-side request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLogger enables debug logging of requests. Nil (the default) is silent.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a [Client] for the given base URL, e.g.
// "https://us-south.ml.cloud.ibm.com".
func New(baseURL string, tokens iam.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		version:    DefaultVersion,
		httpClient: http.DefaultClient,
		tokens:     tokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PostJSON sends body as JSON to path and decodes the response into out.
// Out may be nil when the response body is irrelevant.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// GetJSON fetches path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// Delete issues a DELETE to path, discarding any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil, "application/json")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Stream sends body as JSON to path with an SSE accept header and returns the
// raw response body. The caller owns closing it.
func (c *Client) Stream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit: %w", err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	q := u.Query()
	q.Set("version", c.version)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("watsonx request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// errorEnvelope is the vendor error payload for non-2xx responses.
type errorEnvelope struct {
	Trace  string                `json:"trace"`
	Errors []watsonx.ErrorDetail `json:"errors"`
}

func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &watsonx.APIError{StatusCode: resp.StatusCode}
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
		return &watsonx.APIError{
			StatusCode: resp.StatusCode,
			Errors:     []watsonx.ErrorDetail{{Message: string(body)}},
		}
	}
	return &watsonx.APIError{
		StatusCode: resp.StatusCode,
		Trace:      env.Trace,
		Errors:     env.Errors,
	}
}
