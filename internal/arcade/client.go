// Package arcade is a client for the Arcade tool platform: hosted tool
// definitions, per-user authorization and tool execution.
package arcade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/retry"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

const (
	DefaultBaseURL = "https://api.arcade.dev"

	defaultAuthTimeout  = 10 * time.Minute
	defaultPollInterval = 2 * time.Second
	maxStatusWait       = 59 // seconds, server-side long poll cap
	authCacheSize       = 256
	authCacheTTL        = 30 * time.Minute

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrAuthorizationFailed means the user declined or the provider rejected
// the authorization.
var ErrAuthorizationFailed = errors.New("arcade: authorization failed")

// APIError is a non-2xx reply from the Arcade API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arcade: HTTP %d: %s", e.Status, e.Message)
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	UserID  string
	// AuthTimeout bounds WaitForCompletion.
	AuthTimeout time.Duration
	// PollInterval is the minimum gap between auth status requests.
	PollInterval time.Duration
	// Retry applies to 429 and 5xx replies. Zero means retry.Default().
	Retry      retry.Config
	HTTPClient *http.Client
}

// Client talks to the Arcade REST API on behalf of one user.
type Client struct {
	apiKey       string
	baseURL      string
	userID       string
	authTimeout  time.Duration
	pollInterval time.Duration
	http         *http.Client
	retry        retry.Config

	// tool name -> completed authorization
	authorized *expirable.LRU[string, *tools.Authorization]

	mu      sync.Mutex
	pending map[string]string // auth id -> tool name
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userID:       cfg.UserID,
		authTimeout:  cfg.AuthTimeout,
		pollInterval: cfg.PollInterval,
		http:         cfg.HTTPClient,
		retry:        cfg.Retry,
		authorized:   expirable.NewLRU[string, *tools.Authorization](authCacheSize, nil, authCacheTTL),
		pending:      make(map[string]string),
	}
}

// UserID is the user the client acts for.
func (c *Client) UserID() string { return c.userID }

// QualifiedName converts a function-calling name ("Gmail_ListEmails") to
// Arcade's dotted tool name ("Gmail.ListEmails").
func QualifiedName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return strings.Replace(name, "_", ".", 1)
}

type formattedList struct {
	Items []providers.ToolDefinition `json:"items"`
}

// ListTools returns the OpenAI-formatted definitions of a toolkit.
func (c *Client) ListTools(ctx context.Context, toolkit string, limit int) ([]providers.ToolDefinition, error) {
	q := url.Values{}
	q.Set("toolkit", toolkit)
	q.Set("format", "openai")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out formattedList
	if err := c.do(ctx, http.MethodGet, "/v1/formatted_tools?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list toolkit %s: %w", toolkit, err)
	}
	return out.Items, nil
}

// GetTool returns one OpenAI-formatted definition.
func (c *Client) GetTool(ctx context.Context, name string) (providers.ToolDefinition, error) {
	var def providers.ToolDefinition
	path := "/v1/formatted_tools/" + url.PathEscape(QualifiedName(name)) + "?format=openai"
	if err := c.do(ctx, http.MethodGet, path, nil, &def); err != nil {
		return def, fmt.Errorf("get tool %s: %w", name, err)
	}
	return def, nil
}

type authorizeRequest struct {
	ToolName string `json:"tool_name"`
	UserID   string `json:"user_id"`
}

type authResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
}

func (r authResponse) toAuthorization() *tools.Authorization {
	return &tools.Authorization{ID: r.ID, URL: r.URL, Status: r.Status}
}

// Authorize starts (or checks) the user's authorization for a tool.
// Completed authorizations are cached per tool.
func (c *Client) Authorize(ctx context.Context, toolName string) (*tools.Authorization, error) {
	if a, ok := c.authorized.Get(toolName); ok {
		return a, nil
	}

	var resp authResponse
	req := authorizeRequest{ToolName: QualifiedName(toolName), UserID: c.userID}
	if err := c.do(ctx, http.MethodPost, "/v1/tools/authorize", req, &resp); err != nil {
		return nil, fmt.Errorf("authorize %s: %w", toolName, err)
	}

	auth := resp.toAuthorization()
	if auth.Completed() {
		c.authorized.Add(toolName, auth)
	} else if auth.ID != "" {
		c.mu.Lock()
		c.pending[auth.ID] = toolName
		c.mu.Unlock()
	}
	return auth, nil
}

// AuthStatus fetches an authorization's state, long-polling up to wait
// seconds on the server.
func (c *Client) AuthStatus(ctx context.Context, id string, wait int) (*tools.Authorization, error) {
	q := url.Values{}
	q.Set("id", id)
	if wait > 0 {
		q.Set("wait", strconv.Itoa(min(wait, maxStatusWait)))
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/v1/auth/status?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("auth status %s: %w", id, err)
	}
	return resp.toAuthorization(), nil
}

// WaitForCompletion blocks until the authorization completes, fails or the
// configured timeout passes.
func (c *Client) WaitForCompletion(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for authorization %s: %w", id, ctxErr(ctx))
		}

		wait := maxStatusWait
		if deadline, ok := ctx.Deadline(); ok {
			wait = min(wait, int(time.Until(deadline).Seconds()))
		}
		auth, err := c.AuthStatus(ctx, id, wait)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for authorization %s: %w", id, ctx.Err())
			}
			return err
		}

		switch auth.Status {
		case StatusCompleted:
			c.markCompleted(id, auth)
			return nil
		case StatusFailed:
			c.forget(id)
			return fmt.Errorf("%w: %s", ErrAuthorizationFailed, id)
		}
		slog.Debug("arcade: authorization pending", "id", id, "status", auth.Status)
	}
}

// ctxErr maps a limiter failure to the context error it anticipates.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func (c *Client) markCompleted(id string, auth *tools.Authorization) {
	c.mu.Lock()
	toolName, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		c.authorized.Add(toolName, auth)
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

type executeRequest struct {
	ToolName string         `json:"tool_name"`
	Input    map[string]any `json:"input"`
	UserID   string         `json:"user_id"`
}

// ExecuteResult is the outcome of one hosted tool run.
type ExecuteResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Output  struct {
		Value any `json:"value"`
		Error *struct {
			Message          string `json:"message"`
			DeveloperMessage string `json:"developer_message,omitempty"`
		} `json:"error,omitempty"`
	} `json:"output"`
}

// ErrorMessage returns the tool-reported error, if any.
func (r *ExecuteResult) ErrorMessage() string {
	if r.Output.Error != nil && r.Output.Error.Message != "" {
		return r.Output.Error.Message
	}
	if !r.Success {
		return "tool execution failed (status " + r.Status + ")"
	}
	return ""
}

// Execute runs a tool for the client's user.
func (c *Client) Execute(ctx context.Context, toolName string, input map[string]any) (*ExecuteResult, error) {
	if input == nil {
		input = map[string]any{}
	}
	var out ExecuteResult
	req := executeRequest{ToolName: QualifiedName(toolName), Input: input, UserID: c.userID}
	if err := c.do(ctx, http.MethodPost, "/v1/tools/execute", req, &out); err != nil {
		return nil, fmt.Errorf("execute %s: %w", toolName, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var data []byte
	_, err := retry.Do(ctx, c.retry, isTransient, func() error {
		var sendErr error
		data, sendErr = c.send(ctx, method, path, payload)
		return sendErr
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

func isTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && retry.HTTPStatus(apiErr.Status)
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
