// Package api is the JSON/HTTP client for the task management backend.
// All persistence and business rules live server-side; this client fetches
// snapshots, issues mutations, and handles the bearer-token lifecycle.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/task"
)

// DefaultTimeout bounds every request; past it the call fails and the
// caller shows a transient error while keeping the last-known snapshot.
const DefaultTimeout = 30 * time.Second

// ErrUnauthorized means the session is gone for good: sign-in failed, the
// refresh token was rejected, or no tokens are held. Callers route the
// user back to the sign-in boundary.
var ErrUnauthorized = errors.New("api: not authorized")

// StatusError is a non-2xx response with the backend's detail message.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex // guards tokens
	access  string
	refresh string

	refreshMu sync.Mutex // serializes token refresh; queued callers wait here
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokens seeds a previously stored session.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access, c.refresh = access, refresh
	c.mu.Unlock()
}

// Tokens returns the current session tokens for persisting.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refresh
}

func (c *Client) clearTokens() {
	c.mu.Lock()
	c.access, c.refresh = "", ""
	c.mu.Unlock()
}

// SignIn exchanges credentials for a token pair and returns the user.
func (c *Client) SignIn(ctx context.Context, email, password string) (task.User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doNoAuth(ctx, http.MethodPost, "/api/v1/auth/signin", body, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			return task.User{}, fmt.Errorf("%w: %s", ErrUnauthorized, se.Detail)
		}
		return task.User{}, err
	}
	c.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp.User, nil
}

// SignOut tells the backend to revoke the session and clears local tokens
// regardless of the call's outcome.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/signout", nil, nil)
	c.clearTokens()
	return err
}

// refreshAccess performs the single token-refresh-and-replay policy.
// Concurrent callers that hit a 401 queue on refreshMu; whoever arrives
// after a successful refresh sees a token different from its stale one and
// returns without a second refresh call.
func (c *Client) refreshAccess(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	current, refresh := c.access, c.refresh
	c.mu.Unlock()

	if current != stale {
		return nil // already refreshed by an earlier caller
	}
	if refresh == "" {
		return ErrUnauthorized
	}

	var resp refreshResponse
	err := c.doNoAuth(ctx, http.MethodPost, "/api/v1/auth/refresh",
		map[string]string{"refresh_token": refresh}, &resp)
	if err != nil {
		c.clearTokens()
		return fmt.Errorf("%w: refresh failed: %v", ErrUnauthorized, err)
	}

	c.mu.Lock()
	c.access = resp.AccessToken
	if resp.RefreshToken != "" {
		c.refresh = resp.RefreshToken
	}
	c.mu.Unlock()
	return nil
}

// do issues an authenticated request. On a 401 it refreshes once and
// replays the request once; a second 401 surfaces as ErrUnauthorized.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.mu.Lock()
	access := c.access
	c.mu.Unlock()

	err := c.roundTrip(ctx, method, path, body, out, access)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		return err
	}

	if err := c.refreshAccess(ctx, access); err != nil {
		return err
	}
	c.mu.Lock()
	access = c.access
	c.mu.Unlock()

	err = c.roundTrip(ctx, method, path, body, out, access)
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		c.clearTokens()
		return fmt.Errorf("%w: %s", ErrUnauthorized, se.Detail)
	}
	return err
}

func (c *Client) doNoAuth(ctx context.Context, method, path string, body, out any) error {
	return c.roundTrip(ctx, method, path, body, out, "")
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any, access string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// readDetail pulls the error message out of the backend's error body,
// which nests it under either "detail" or "message".
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return strings.TrimSpace(string(b))
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Message
}

// ListTasks fetches a page of tasks and normalizes them. Malformed records
// are dropped with a warning rather than failing the fetch; the returned
// total is the backend's count before normalization.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]task.Task, int, error) {
	vals := url.Values{}
	if q.ProjectID != "" {
		vals.Set("project_id", q.ProjectID)
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		vals.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/v1/tasks"
	if len(vals) > 0 {
		path += "?" + vals.Encode()
	}

	var resp taskListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	tasks, _ := task.NormalizeAll(resp.Tasks)
	return tasks, resp.Total, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (task.Task, error) {
	var raw task.Raw
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+id, nil, &raw); err != nil {
		return task.Task{}, err
	}
	return task.Normalize(raw)
}

func (c *Client) CreateTask(ctx context.Context, req TaskCreate) (task.Task, error) {
	var raw task.Raw
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", req, &raw); err != nil {
		return task.Task{}, err
	}
	return task.Normalize(raw)
}

func (c *Client) UpdateTask(ctx context.Context, id string, req TaskUpdate) (task.Task, error) {
	var raw task.Raw
	if err := c.do(ctx, http.MethodPut, "/api/v1/tasks/"+id, req, &raw); err != nil {
		return task.Task{}, err
	}
	return task.Normalize(raw)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+id, nil, nil)
}

// CompleteTask marks a task done through the dedicated endpoint so the
// backend applies its completion rules.
func (c *Client) CompleteTask(ctx context.Context, id string) (task.Task, error) {
	var raw task.Raw
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+id+"/complete", nil, &raw); err != nil {
		return task.Task{}, err
	}
	return task.Normalize(raw)
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp projectListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var resp categoryListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// ListActivities fetches the current user's recent-activity feed, newest
// first, optionally scoped to a project.
func (c *Client) ListActivities(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	vals := url.Values{}
	if projectID != "" {
		vals.Set("project_id", projectID)
	}
	if limit > 0 {
		vals.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/activities"
	if len(vals) > 0 {
		path += "?" + vals.Encode()
	}

	var resp activityListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Activities, nil
}

func (c *Client) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	var comments []Comment
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+taskID+"/comments", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) AddComment(ctx context.Context, taskID, content string) (Comment, error) {
	var comment Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+taskID+"/comments", body, &comment); err != nil {
		return Comment{}, err
	}
	return comment, nil
}
