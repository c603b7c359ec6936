// Package extraction manages watsonx.ai text extraction jobs: documents
// stored in Cloud Object Storage are submitted for extraction, polled until
// a terminal status, and their results fetched back.
package extraction

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/cos"
	"github.com/gowatsonx/watsonx/transport"
)

const extractionsPath = "/ml/v1/text/extractions"

// Output formats a job can be asked to produce.
const (
	OutputMarkdown   = "md"
	OutputPlainText  = "plain_text"
	OutputHTML       = "html"
	OutputJSON       = "assembly"
	OutputPageImages = "page_images"
)

// Job statuses reported by the service.
const (
	StatusSubmitted   = "submitted"
	StatusUploading   = "uploading"
	StatusRunning     = "running"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Client manages extraction jobs.
type Client struct {
	transport    *transport.Client
	projectID    string
	spaceID      string
	pollInterval time.Duration
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

// WithPollInterval sets how often Poll checks job status.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New creates an extraction [Client] over the given transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{
		transport:    t,
		pollInterval: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FileReference locates a document or result prefix in COS through a
// connection asset.
type FileReference struct {
	ConnectionID string
	Bucket       string
	Key          string
}

// SubmitRequest describes one extraction job.
type SubmitRequest struct {
	Document  FileReference
	Results   FileReference // Key is treated as an output prefix
	Outputs   []string      // requested formats; defaults to markdown
	Languages []string      // OCR language hints
}

// Job is the service's view of an extraction job.
type Job struct {
	ID             string
	Status         string
	PagesProcessed int
	CreatedAt      time.Time
	CompletedAt    time.Time
	Error          *watsonx.ErrorDetail
}

// Terminal reports whether the job finished, successfully or not.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Submit starts an extraction job and returns its initial state.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if err := c.validateScope(); err != nil {
		return nil, err
	}
	if req.Document.ConnectionID == "" || req.Document.Key == "" {
		return nil, fmt.Errorf("extraction: document reference required: %w", watsonx.ErrValidation)
	}
	if req.Results.ConnectionID == "" {
		return nil, fmt.Errorf("extraction: results reference required: %w", watsonx.ErrValidation)
	}
	outputs := req.Outputs
	if len(outputs) == 0 {
		outputs = []string{OutputMarkdown}
	}

	body := apiSubmitRequest{
		ProjectID:         c.projectID,
		SpaceID:           c.spaceID,
		DocumentReference: newDataReference(req.Document),
		ResultsReference:  newDataReference(req.Results),
		Parameters: apiJobParams{
			RequestedOutputs: outputs,
			Languages:        req.Languages,
		},
	}

	var resp apiJobResponse
	if err := c.transport.PostJSON(ctx, extractionsPath, body, &resp); err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	return resp.job(), nil
}

// Get fetches the current state of a job.
func (c *Client) Get(ctx context.Context, id string) (*Job, error) {
	if err := c.validateScope(); err != nil {
		return nil, err
	}
	var resp apiJobResponse
	if err := c.transport.GetJSON(ctx, c.jobPath(id), &resp); err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	return resp.job(), nil
}

// Delete cancels a running job or removes a finished one.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.validateScope(); err != nil {
		return err
	}
	if err := c.transport.Delete(ctx, c.jobPath(id)); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	return nil
}

// Poll re-fetches the job until it reaches a terminal status or ctx is done.
// A failed job returns the final state along with [watsonx.ErrJobFailed].
func (c *Client) Poll(ctx context.Context, id string) (*Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Terminal() {
			if job.Status == StatusFailed {
				return job, c.failure(job)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("extraction: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) failure(job *Job) error {
	if job.Error != nil {
		return fmt.Errorf("extraction: job %s: %s: %w", job.ID, job.Error.Message, watsonx.ErrJobFailed)
	}
	return fmt.Errorf("extraction: job %s: %w", job.ID, watsonx.ErrJobFailed)
}

// RunRequest parametrizes the whole upload -> extract -> fetch flow.
type RunRequest struct {
	ConnectionID  string
	Bucket        string
	LocalPath     string // file to upload
	DocumentKey   string // object key for the uploaded document
	ResultsPrefix string // object key prefix for results
	Outputs       []string
	Languages     []string
}

// Run uploads a local document to COS, submits an extraction job, polls it
// to completion, and returns the first result object's contents.
func (c *Client) Run(ctx context.Context, storage *cos.Client, req RunRequest) ([]byte, error) {
	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	err = storage.Put(ctx, req.Bucket, req.DocumentKey, f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("extraction: upload: %w", err)
	}

	job, err := c.Submit(ctx, SubmitRequest{
		Document:  FileReference{ConnectionID: req.ConnectionID, Bucket: req.Bucket, Key: req.DocumentKey},
		Results:   FileReference{ConnectionID: req.ConnectionID, Bucket: req.Bucket, Key: req.ResultsPrefix},
		Outputs:   req.Outputs,
		Languages: req.Languages,
	})
	if err != nil {
		return nil, err
	}

	if _, err := c.Poll(ctx, job.ID); err != nil {
		return nil, err
	}

	objects, err := storage.List(ctx, req.Bucket, req.ResultsPrefix)
	if err != nil {
		return nil, fmt.Errorf("extraction: list results: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("extraction: job %s produced no results", job.ID)
	}

	body, err := storage.Get(ctx, req.Bucket, objects[0].Key)
	if err != nil {
		return nil, fmt.Errorf("extraction: fetch results: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("extraction: read results: %w", err)
	}
	return data, nil
}

func (c *Client) validateScope() error {
	if c.projectID == "" && c.spaceID == "" {
		return fmt.Errorf("extraction: project or space id required: %w", watsonx.ErrValidation)
	}
	return nil
}

// jobPath builds the per-job path with the scope query parameter GET and
// DELETE require.
func (c *Client) jobPath(id string) string {
	q := url.Values{}
	if c.projectID != "" {
		q.Set("project_id", c.projectID)
	} else {
		q.Set("space_id", c.spaceID)
	}
	return extractionsPath + "/" + url.PathEscape(id) + "?" + q.Encode()
}

// Wire types.

type apiSubmitRequest struct {
	ProjectID         string           `json:"project_id,omitempty"`
	SpaceID           string           `json:"space_id,omitempty"`
	DocumentReference apiDataReference `json:"document_reference"`
	ResultsReference  apiDataReference `json:"results_reference"`
	Parameters        apiJobParams     `json:"parameters"`
}

type apiDataReference struct {
	Type       string        `json:"type"` // always "connection_asset"
	Connection apiConnection `json:"connection"`
	Location   apiLocation   `json:"location"`
}

type apiConnection struct {
	ID string `json:"id"`
}

type apiLocation struct {
	FileName string `json:"file_name"`
	Bucket   string `json:"bucket,omitempty"`
}

func newDataReference(ref FileReference) apiDataReference {
	return apiDataReference{
		Type:       "connection_asset",
		Connection: apiConnection{ID: ref.ConnectionID},
		Location:   apiLocation{FileName: ref.Key, Bucket: ref.Bucket},
	}
}

type apiJobParams struct {
	RequestedOutputs []string `json:"requested_outputs"`
	Languages        []string `json:"languages,omitempty"`
}

type apiJobResponse struct {
	Metadata apiJobMetadata `json:"metadata"`
	Entity   apiJobEntity   `json:"entity"`
}

type apiJobMetadata struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type apiJobEntity struct {
	Results apiJobResults `json:"results"`
}

type apiJobResults struct {
	Status         string               `json:"status"`
	PagesProcessed int                  `json:"number_pages_processed"`
	CompletedAt    time.Time            `json:"completed_at"`
	Error          *watsonx.ErrorDetail `json:"error"`
}

func (r apiJobResponse) job() *Job {
	return &Job{
		ID:             r.Metadata.ID,
		Status:         r.Entity.Results.Status,
		PagesProcessed: r.Entity.Results.PagesProcessed,
		CreatedAt:      r.Metadata.CreatedAt,
		CompletedAt:    r.Entity.Results.CompletedAt,
		Error:          r.Entity.Results.Error,
	}
}
