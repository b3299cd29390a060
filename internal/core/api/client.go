// Package api talks to the assistant's REST backend and normalizes its
// loosely shaped responses into models types.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the hosted backend
	DefaultBaseURL = "https://ai-dashboard-task-backend-1.onrender.com"
	// DefaultTimeout bounds every outbound request
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20
)

var (
	// ErrUnauthorized is wrapped when the backend answers 401
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsuccessful is wrapped when the body carries success:false
	ErrUnsuccessful = errors.New("request unsuccessful")
	// ErrEmptyReply is returned when a chat turn came back without text
	ErrEmptyReply = errors.New("empty reply")
)

// Error describes a failed API call
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TokenSource supplies the bearer token for authenticated calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a REST client for the backend
type Client struct {
	baseURL string
	authURL string
	http    *http.Client
	tokens  TokenSource
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTimeout sets the per-request timeout; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAuthURL points the auth endpoints at a different host
func WithAuthURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.authURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	c.authURL = c.baseURL
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource installs ts after construction
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// envelope is the {success, error, message} wrapper most endpoints use
type envelope struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e envelope) failure() (bool, string) {
	if e.Success != nil && !*e.Success {
		if e.Error != "" {
			return true, e.Error
		}
		return true, e.Message
	}
	return false, ""
}

type enveloped interface {
	failure() (bool, string)
}

type request struct {
	op     string
	method string
	url    string
	authed bool
	body   any
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return &Error{Op: req.op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return &Error{Op: req.op, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	if req.authed {
		if c.tokens == nil {
			return &Error{Op: req.op, Err: ErrUnauthorized}
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return &Error{Op: req.op, Err: err}
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", req.op).Str("request_id", requestID).Msg("request failed")
		return &Error{Op: req.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug().
		Str("op", req.op).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		apiErr := &Error{Op: req.op, Status: resp.StatusCode, Message: msg}
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr.Err = ErrUnauthorized
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if env, ok := out.(enveloped); ok {
		if failed, msg := env.failure(); failed {
			return &Error{Op: req.op, Status: resp.StatusCode, Message: msg, Err: ErrUnsuccessful}
		}
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}
