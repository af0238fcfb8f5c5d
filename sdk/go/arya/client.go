// Package arya provides a small Go client for the Arya agent REST API.
package arya

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultHTTPTimeout is used when no custom http.Client is supplied. Waiting
// submissions can take as long as the server's wait timeout, so it is longer
// than a plain REST call would need.
const DefaultHTTPTimeout = 90 * time.Second

// Job statuses reported by the server.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Client wraps the HTTP interactions with the Arya REST API.
type Client struct {
	http *resty.Client
}

// Option customises a Client.
type Option func(*Client)

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key = strings.TrimSpace(key); key != "" {
			c.http.SetAuthToken(key)
		}
	}
}

// WithHTTPClient replaces the underlying transport, e.g. an httptest client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		base := c.http.BaseURL
		token := c.http.Token
		c.http = resty.NewWithClient(hc).SetBaseURL(base).SetHeader("Accept", "application/json")
		if token != "" {
			c.http.SetAuthToken(token)
		}
	}
}

// Turn is one prior exchange in the conversation.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Message is the payload submitted to the agent.
type Message struct {
	ID      string `json:"id,omitempty"`
	Text    string `json:"text"`
	Action  string `json:"action,omitempty"`
	Source  string `json:"source,omitempty"`
	Context []Turn `json:"context,omitempty"`
}

// Attachment is a rich media card attached to a reply.
type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Text        string `json:"text"`
	ContentType string `json:"contentType"`
}

// Reply is the user facing answer produced for a message.
type Reply struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Job is the server side record of a submitted message.
type Job struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Action      string `json:"action,omitempty"`
	Source      string `json:"source,omitempty"`
	Context     []Turn `json:"context,omitempty"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	ErrorCode   string `json:"error_code,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Reply       *Reply `json:"reply,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j Job) Done() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Stats aggregates job counts by status.
type Stats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// ListParams filters ListMessages and Stats.
type ListParams struct {
	Statuses  []string
	Action    string
	Source    string
	Query     string
	Since     time.Time
	Limit     int
	Offset    int
	Ascending bool
}

func (p ListParams) values() map[string]string {
	out := map[string]string{}
	if len(p.Statuses) > 0 {
		out["status"] = strings.Join(p.Statuses, ",")
	}
	if p.Action != "" {
		out["action"] = p.Action
	}
	if p.Source != "" {
		out["source"] = p.Source
	}
	if p.Query != "" {
		out["q"] = p.Query
	}
	if !p.Since.IsZero() {
		out["since"] = strconv.FormatInt(p.Since.Unix(), 10)
	}
	if p.Limit > 0 {
		out["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Offset > 0 {
		out["offset"] = strconv.Itoa(p.Offset)
	}
	if p.Ascending {
		out["order"] = "asc"
	}
	return out
}

// APIError represents a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return fmt.Sprintf("arya api error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("arya api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("arya: base url is required")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultHTTPTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SubmitMessage queues a message. With wait set the server holds the request
// until the job finishes or its wait timeout elapses; the returned job may
// therefore still be pending.
func (c *Client) SubmitMessage(ctx context.Context, msg Message, wait bool) (*Job, error) {
	var out Job
	req := c.http.R().SetContext(ctx).SetBody(msg).SetResult(&out)
	if wait {
		req.SetQueryParam("wait", "1")
	}
	if err := c.do(req, http.MethodPost, "/api/v1/messages"); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessage fetches a job by id.
func (c *Client) GetMessage(ctx context.Context, id string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("arya: job id is required")
	}
	var out Job
	req := c.http.R().SetContext(ctx).SetPathParam("id", id).SetResult(&out)
	if err := c.do(req, http.MethodGet, "/api/v1/messages/{id}"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns jobs matching params, newest first unless Ascending.
func (c *Client) ListMessages(ctx context.Context, params ListParams) ([]Job, error) {
	var out struct {
		Messages []Job `json:"messages"`
	}
	req := c.http.R().SetContext(ctx).SetQueryParams(params.values()).SetResult(&out)
	if err := c.do(req, http.MethodGet, "/api/v1/messages"); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Stats returns job counts matching params. Paging fields are ignored.
func (c *Client) Stats(ctx context.Context, params ListParams) (*Stats, error) {
	params.Limit, params.Offset = 0, 0
	var out Stats
	req := c.http.R().SetContext(ctx).SetQueryParams(params.values()).SetResult(&out)
	if err := c.do(req, http.MethodGet, "/api/v1/messages/stats"); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForMessage polls GetMessage until the job is done or ctx ends.
func (c *Client) WaitForMessage(ctx context.Context, id string, interval time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *resty.Request, method, path string) error {
	apiErr := &APIError{}
	req.SetError(apiErr)
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("arya: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}
