// Package khoj talks to the Khoj chat service: a health check followed by a
// single chat completion call, with failures reduced to a small set of
// sentinel errors.
package khoj

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://khoj:4000"
	DefaultTimeout = 30 * time.Second
	HealthTimeout  = 2 * time.Second

	// MaxContextChunks caps the locally retrieved chunks sent with a prompt.
	MaxContextChunks = 3

	noResponse = "No response from Khoj"
)

var (
	ErrUnavailable       = errors.New("khoj unavailable")
	ErrConnection        = errors.New("khoj connection failed")
	ErrTimeout           = errors.New("khoj request timed out")
	ErrRequest           = errors.New("khoj request failed")
	ErrMalformedResponse = errors.New("khoj returned a malformed response")
)

// Message renders err as the text shown to end users in place of an answer.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "Error: Khoj service is not available. Please check if the service is running."
	case errors.Is(err, ErrConnection):
		return "Error: Could not connect to Khoj service. Please ensure the service is running."
	case errors.Is(err, ErrTimeout):
		return "Error: Request to Khoj timed out. The service might be under heavy load."
	case errors.Is(err, ErrRequest):
		return "Error: Request to Khoj failed. " + detail(err, ErrRequest)
	default:
		return "Error: Could not get response from Khoj. " + detail(err, ErrMalformedResponse)
	}
}

func detail(err, sentinel error) string {
	return strings.TrimPrefix(strings.TrimPrefix(err.Error(), sentinel.Error()), ": ")
}

type Client struct {
	baseURL       string
	client        *http.Client
	healthTimeout time.Duration
}

type Option func(*Client)

// WithBaseURL overrides the configured service URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		client:        &http.Client{Timeout: DefaultTimeout},
		healthTimeout: HealthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Health calls GET /api/health. Any non-200 answer is ErrUnavailable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status code %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

type chatRequest struct {
	Message    string   `json:"message"`
	UseContext bool     `json:"use_context"`
	Context    []string `json:"context,omitempty"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Complete sends prompt to POST /api/chat after a successful health check.
// With no contexts Khoj is asked to run its own retrieval; otherwise at most
// MaxContextChunks contexts are sent and remote retrieval is disabled.
func (c *Client) Complete(ctx context.Context, prompt string, contexts []string) (string, error) {
	slog.InfoContext(ctx, "calling khoj", "prompt_preview", preview(prompt, 100), "contexts", len(contexts))

	if err := c.Health(ctx); err != nil {
		slog.ErrorContext(ctx, "khoj health check failed", "error", err)
		return "", err
	}

	if len(contexts) > MaxContextChunks {
		contexts = contexts[:MaxContextChunks]
	}
	body, err := json.Marshal(chatRequest{
		Message:    prompt,
		UseContext: len(contexts) == 0,
		Context:    contexts,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		err = classify(err)
		slog.ErrorContext(ctx, "khoj chat request failed", "error", err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.ErrorContext(ctx, "khoj chat returned error status", "status", resp.StatusCode, "body", string(snippet))
		return "", fmt.Errorf("%w: %d %s", ErrRequest, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == nil {
		return noResponse, nil
	}
	return *out.Response, nil
}

func classify(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return fmt.Errorf("%w: %v", ErrRequest, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
