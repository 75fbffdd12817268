// Package client talks to a running katachi server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Ting2004/katachi/internal/engine"
	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/tasks"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
	healthTimeout    = 500 * time.Millisecond
)

// Client talks to the katachi server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. KATACHI_URL overrides it, and an empty
// result falls back to http://127.0.0.1:37778.
func New(serverURL string) *Client {
	if env := os.Getenv("KATACHI_URL"); env != "" {
		serverURL = env
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL is the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

// APIError is a non-2xx response. It matches the sentinel for its code, so
// errors.Is(err, tasks.ErrNotFound) works across the wire.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case snapshot.CodeNotFound:
		return tasks.ErrNotFound
	case snapshot.CodeDuplicate:
		return tasks.ErrDuplicate
	case snapshot.CodeInvalid:
		return tasks.ErrInvalid
	case snapshot.CodePersist:
		return engine.ErrPersist
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
		var eb snapshot.ErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Code, apiErr.Message, apiErr.RequestID = eb.Code, eb.Error, eb.RequestID
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := c.Health(ctx)
	return err == nil
}

func (c *Client) Health(ctx context.Context) (snapshot.Health, error) {
	var h snapshot.Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &h)
	return h, err
}

func (c *Client) State(ctx context.Context) (snapshot.View, error) {
	var v snapshot.View
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &v)
	return v, err
}

// Tasks lists task records, filtered by label when it is not empty.
func (c *Client) Tasks(ctx context.Context, label string) ([]snapshot.TaskRecord, error) {
	path := "/api/tasks"
	if label != "" {
		path += "?label=" + url.QueryEscape(label)
	}
	var recs []snapshot.TaskRecord
	err := c.do(ctx, http.MethodGet, path, nil, &recs)
	return recs, err
}

func (c *Client) Task(ctx context.Context, name string) (snapshot.TaskRecord, error) {
	var rec snapshot.TaskRecord
	err := c.do(ctx, http.MethodGet, taskPath(name, ""), nil, &rec)
	return rec, err
}

func (c *Client) CreateTask(ctx context.Context, in snapshot.TaskInput) (snapshot.TaskRecord, error) {
	var rec snapshot.TaskRecord
	err := c.do(ctx, http.MethodPost, "/api/tasks", in, &rec)
	return rec, err
}

func (c *Client) UpdateTask(ctx context.Context, name string, p snapshot.TaskPatch) (snapshot.TaskRecord, error) {
	var rec snapshot.TaskRecord
	err := c.do(ctx, http.MethodPatch, taskPath(name, ""), p, &rec)
	return rec, err
}

func (c *Client) DeleteTask(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, taskPath(name, ""), nil, nil)
}

// Toggle completes (done) or uncompletes a task.
func (c *Client) Toggle(ctx context.Context, name string, done bool) (snapshot.TaskRecord, error) {
	action := "/uncomplete"
	if done {
		action = "/complete"
	}
	var rec snapshot.TaskRecord
	err := c.do(ctx, http.MethodPost, taskPath(name, action), nil, &rec)
	return rec, err
}

func (c *Client) Decay(ctx context.Context) (snapshot.View, error) {
	return c.maintenance(ctx, "/api/decay")
}

// Reset runs a manual reset: applied effects are reversed and completion cleared.
func (c *Client) Reset(ctx context.Context) (snapshot.View, error) {
	return c.maintenance(ctx, "/api/reset")
}

func (c *Client) RestoreDefaults(ctx context.Context) (snapshot.View, error) {
	return c.maintenance(ctx, "/api/restore-defaults")
}

func (c *Client) Save(ctx context.Context) error {
	_, err := c.maintenance(ctx, "/api/save")
	return err
}

func (c *Client) maintenance(ctx context.Context, path string) (snapshot.View, error) {
	var v snapshot.View
	err := c.do(ctx, http.MethodPost, path, nil, &v)
	return v, err
}

func taskPath(name, action string) string {
	return "/api/tasks/" + url.PathEscape(name) + action
}
