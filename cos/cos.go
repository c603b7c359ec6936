// Package cos is a minimal IBM Cloud Object Storage client covering the
// object operations the SDK needs: put, get, delete, list, and glob upload.
// It authenticates with the same IAM bearer tokens as the ML endpoints plus
// the service instance header COS requires.
package cos

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/iam"
)

// Client performs object operations against one COS endpoint.
type Client struct {
	endpoint   string
	instanceID string
	tokens     iam.TokenSource
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger enables debug logging of object operations.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a COS [Client] for the given endpoint and service instance.
func New(endpoint, instanceID string, tokens iam.TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		instanceID: instanceID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Object describes one stored object as reported by List.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Put stores the contents of r under key in bucket.
func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader) error {
	resp, err := c.do(ctx, http.MethodPut, bucket, key, nil, r)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Get returns a reader over the object's contents. The caller closes it.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, bucket, key, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete removes the object. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, bucket, key, nil, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// List returns the objects in bucket whose keys start with prefix, in the
// order the service reports them. An empty prefix lists the whole bucket.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	query := url.Values{"list-type": {"2"}}
	if prefix != "" {
		query.Set("prefix", prefix)
	}

	var objects []Object
	for {
		resp, err := c.do(ctx, http.MethodGet, bucket, "", query, nil)
		if err != nil {
			return nil, err
		}

		var page listBucketResult
		err = xml.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("cos: decode listing: %w", err)
		}

		for _, item := range page.Contents {
			objects = append(objects, Object{
				Key:          item.Key,
				Size:         item.Size,
				LastModified: item.LastModified,
				ETag:         item.ETag,
			})
		}

		if !page.IsTruncated || page.NextContinuationToken == "" {
			return objects, nil
		}
		query.Set("continuation-token", page.NextContinuationToken)
	}
}

// UploadGlob uploads every local file under root matching the doublestar
// pattern, keyed by keyPrefix plus the file's slash-separated relative path.
// It returns the object keys written.
func (c *Client) UploadGlob(ctx context.Context, bucket, keyPrefix, root, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("cos: bad pattern %q: %w", pattern, err)
	}

	var keys []string
	for _, rel := range matches {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return keys, fmt.Errorf("cos: stat %s: %w", rel, err)
		}
		if info.IsDir() {
			continue
		}

		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return keys, fmt.Errorf("cos: open %s: %w", rel, err)
		}

		key := rel
		if keyPrefix != "" {
			key = keyPrefix + "/" + rel
		}
		err = c.Put(ctx, bucket, key, f)
		f.Close()
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *Client) do(ctx context.Context, method, bucket, key string, query url.Values, body io.Reader) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("cos: %w", err)
	}

	u := c.endpoint + "/" + bucket
	if key != "" {
		u += "/" + escapeKey(key)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("cos: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ibm-service-instance-id", c.instanceID)

	if c.logger != nil {
		c.logger.Debug("cos request", "method", method, "bucket", bucket, "key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cos: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// escapeKey encodes each path segment but keeps the separators readable.
func escapeKey(key string) string {
	segments := []byte(key)
	var out string
	start := 0
	for i := 0; i <= len(segments); i++ {
		if i == len(segments) || segments[i] == '/' {
			out += url.PathEscape(string(segments[start:i]))
			if i < len(segments) {
				out += "/"
			}
			start = i + 1
		}
	}
	return out
}

// decodeError maps a COS XML error payload onto [watsonx.APIError] so
// callers handle ML and storage failures uniformly.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var payload cosError
	if err := xml.Unmarshal(data, &payload); err != nil || payload.Code == "" {
		return &watsonx.APIError{
			StatusCode: resp.StatusCode,
			Errors:     []watsonx.ErrorDetail{{Message: string(data)}},
		}
	}
	return &watsonx.APIError{
		StatusCode: resp.StatusCode,
		Trace:      payload.RequestID,
		Errors: []watsonx.ErrorDetail{{
			Code:    payload.Code,
			Message: payload.Message,
		}},
	}
}

type cosError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

type listBucketResult struct {
	XMLName               xml.Name      `xml:"ListBucketResult"`
	IsTruncated           bool          `xml:"IsTruncated"`
	NextContinuationToken string        `xml:"NextContinuationToken"`
	Contents              []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string    `xml:"Key"`
	Size         int64     `xml:"Size"`
	LastModified time.Time `xml:"LastModified"`
	ETag         string    `xml:"ETag"`
}
