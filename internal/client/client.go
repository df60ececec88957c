// Package client talks to the shareledger HTTP API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds configuration for the API client
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client wraps the upload and job status endpoints.
type Client struct {
	http *resty.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// Upload is the server's answer to an accepted file.
type Upload struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	FileName string `json:"file_name"`
}

// JobStatus is a snapshot of one job.
type JobStatus struct {
	JobID  string `json:"job_id"`
	State  string `json:"state"`
	Status string `json:"status,omitempty"`
	Result *struct {
		RecordCount int `json:"record_count"`
	} `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	FileName   string     `json:"file_name"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has finished.
func (s *JobStatus) Terminal() bool {
	return s.State == "SUCCESS" || s.State == "FAILURE"
}

// New creates a new API client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &Client{http: c}
}

// Upload sends the file at path and returns the created job.
func (c *Client) Upload(ctx context.Context, path string) (*Upload, error) {
	var result Upload
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/v1/uploads")
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return &result, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	var result JobStatus
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/v1/jobs/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", jobID, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return &result, nil
}

// Wait polls the job every interval until it is terminal or ctx is done.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration) (*JobStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if status.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
