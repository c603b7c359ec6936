// Package iam exchanges an IBM Cloud API key for a bearer token via the IAM
// identity service and caches it until shortly before expiry. A single Client
// is safe for concurrent use; independent API calls share only this cache.
package iam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTokenURL = "https://iam.cloud.ibm.com/identity/token"
	grantType       = "urn:ibm:params:oauth:grant-type:apikey"

	// Tokens are refreshed this long before their reported expiry so that
	// in-flight requests never carry a token that expires mid-request.
	defaultRefreshMargin = time.Minute
)

// TokenSource supplies bearer tokens for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token. Useful for tests.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Interface compliance check.
var (
	_ TokenSource = (*Client)(nil)
	_ TokenSource = StaticToken("")
)

// Client implements TokenSource backed by the IAM apikey grant.
type Client struct {
	apiKey     string
	tokenURL   string
	httpClient *http.Client
	margin     time.Duration
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// Option configures a [Client].
type Option func(*Client)

// WithTokenURL overrides the IAM endpoint. Useful for testing with httptest.
func WithTokenURL(url string) Option {
	return func(c *Client) { c.tokenURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRefreshMargin sets how long before expiry a cached token is discarded.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) { c.margin = d }
}

// New creates a new IAM [Client] for the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		tokenURL:   defaultTokenURL,
		httpClient: http.DefaultClient,
		margin:     defaultRefreshMargin,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns a valid bearer token, exchanging the API key when the cached
// token is absent or within the refresh margin of expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(c.margin).Before(c.expiry) {
		return c.token, nil
	}

	token, expiry, err := c.exchange(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiry = expiry
	return token, nil
}

// tokenResponse is the IAM identity service response body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Expiration  int64  `json:"expiration"` // unix seconds
}

type tokenError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) exchange(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("iam: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("iam: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("iam: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if err := json.Unmarshal(body, &te); err == nil && te.ErrorCode != "" {
			return "", time.Time{}, fmt.Errorf("iam: HTTP %d: %s: %s", resp.StatusCode, te.ErrorCode, te.ErrorMessage)
		}
		return "", time.Time{}, fmt.Errorf("iam: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("iam: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("iam: empty access token in response")
	}

	expiry := time.Unix(tr.Expiration, 0)
	if tr.Expiration == 0 {
		expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tr.AccessToken, expiry, nil
}
