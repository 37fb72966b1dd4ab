// Package client talks to a running shortbox server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shortbox/internal/api"
	"shortbox/internal/jobstore"
	"shortbox/internal/logs"
)

// ErrUnavailable is returned when no server is reachable.
var ErrUnavailable = errors.New("shortbox server unavailable")

// Error is a failed API call decoded from the server's error body.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return e.Message
}

// Client calls the job API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New returns a client for the server bound at bind. token may be empty.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: token,
		// Log follow requests block server-side for up to their wait.
		http: &http.Client{Timeout: time.Minute},
	}, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// ListJobs returns job summaries.
func (c *Client) ListJobs(ctx context.Context, archived bool) ([]jobstore.Summary, error) {
	var out api.JobListResponse
	values := url.Values{}
	if archived {
		values.Set("archived", "true")
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs", values, nil, &out)
	return out.Jobs, err
}

// GetJob returns the full job document.
func (c *Client) GetJob(ctx context.Context, id string) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob submits files or paths for a new job.
func (c *Client) CreateJob(ctx context.Context, req api.CreateJobRequest) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartJob confirms a job's options and starts grouping.
func (c *Client) StartJob(ctx context.Context, id string) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/start", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelJob stops a job's running step.
func (c *Client) CancelJob(ctx context.Context, id string) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AbandonJob deletes a job and its work directory.
func (c *Client) AbandonJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/jobs/"+url.PathEscape(id), nil, nil, nil)
}

// JobLog fetches entries from a job's log.
func (c *Client) JobLog(ctx context.Context, id string, q logs.Query) (logs.Page, error) {
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(q.Offset, 10))
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if strings.TrimSpace(q.MinLevel) != "" {
		values.Set("level", q.MinLevel)
	}
	if q.Wait > 0 {
		values.Set("wait", strconv.Itoa(int(q.Wait/time.Second)))
	}
	var out logs.Page
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id)+"/log", values, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Kind = payload.Error
			apiErr.Message = payload.Message
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnavailable reports whether err means the server could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
