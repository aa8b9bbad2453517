// Package transport is the single entry point for all calls to the
// booking service: it owns timeouts, retry policy, and error
// classification so the rest of the client never inspects raw HTTP.
package transport

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
	"time"

	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/platform/metrics"
)

// TokenSource provides the current bearer token and is cleared when the
// server reports the session expired.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Executor executes classified API requests
type Executor struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        logger.Logger
	metrics    *metrics.Metrics
	retry      *RetryConfig
	timeout    time.Duration
}

// Option configures an Executor
type Option func(*Executor)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = httpClient
	}
}

// WithTimeout sets the per-request deadline
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// WithRetryConfig sets the retry policy for transient failures
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(e *Executor) {
		e.retry = cfg
	}
}

// WithMetrics attaches request metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates a new request executor
func NewExecutor(baseURL string, tokens TokenSource, log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		log:        log,
		retry:      DefaultRetryConfig(),
		timeout:    15 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Request describes a single API call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}

	// Public skips bearer injection and the missing-token check.
	// Used for login and health endpoints.
	Public bool

	// NoRetry disables automatic retry on transient failures.
	// Set for non-idempotent creation calls.
	NoRetry bool

	// IdempotencyKey is sent as an Idempotency-Key header when set.
	IdempotencyKey string
}

// Execute performs the request and decodes the response into out.
// JSON responses are unmarshalled; non-JSON bodies are assigned when
// out is a *string. A nil out discards the body.
func (e *Executor) Execute(ctx context.Context, req Request, out interface{}) error {
	token := ""
	if !req.Public {
		var err error
		token, err = e.tokens.Token(ctx)
		if err != nil {
			return WrapError(KindAuthRequired, "failed to read credentials", err)
		}
		if token == "" {
			return NewError(KindAuthRequired, "no credentials stored")
		}
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	fullURL, err := e.buildURL(req)
	if err != nil {
		return err
	}

	retryCfg := e.retry
	if req.NoRetry {
		retryCfg = &RetryConfig{MaxAttempts: 1}
	}

	start := time.Now()
	execErr := Retry(ctx, retryCfg, transientOnly, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			e.log.Warn("retrying request",
				"method", req.Method, "path", req.Path, "attempt", attempt)
			if e.metrics != nil {
				e.metrics.RetriesTotal.WithLabelValues(req.Path).Inc()
			}
		}
		return e.attempt(ctx, req.Method, fullURL, req.Path, bodyBytes, token, req.IdempotencyKey, out)
	})

	if e.metrics != nil {
		e.metrics.RequestDuration.WithLabelValues(req.Method, req.Path).Observe(time.Since(start).Seconds())
		if execErr != nil {
			e.metrics.RequestErrors.WithLabelValues(string(KindOf(execErr))).Inc()
		}
	}

	return execErr
}

func transientOnly(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Transient()
}

func (e *Executor) buildURL(req Request) (string, error) {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String(), nil
}

// attempt runs a single HTTP exchange under the request deadline and
// classifies the outcome.
func (e *Executor) attempt(ctx context.Context, method, fullURL, path string, body []byte, token, idempotencyKey string, out interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return WrapError(KindTimeout, "request deadline exceeded", err)
		}
		return WrapError(KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(KindNetwork, "failed to read response", err)
	}

	if e.metrics != nil {
		e.metrics.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Inc()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeBody(resp.Header.Get("Content-Type"), respBody, out)
	}

	return e.classify(ctx, resp.StatusCode, respBody)
}

// classify maps a non-2xx response to a typed error. A 401 clears the
// credential store before the error is surfaced.
func (e *Executor) classify(ctx context.Context, status int, body []byte) error {
	var envelope errorResponse
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.message()
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		if err := e.tokens.Clear(ctx); err != nil {
			e.log.Error("failed to clear credentials after 401", "error", err)
		}
		return &Error{Kind: KindAuthExpired, StatusCode: status, Message: msg}
	case status == http.StatusForbidden:
		return &Error{Kind: KindForbidden, StatusCode: status, Message: msg}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, StatusCode: status, Message: msg}
	case status == http.StatusConflict:
		return &Error{Kind: KindConflict, StatusCode: status, Message: msg}
	case status >= 500:
		return &Error{Kind: KindServerUnavailable, StatusCode: status, Message: msg}
	default:
		return &Error{Kind: KindValidation, StatusCode: status, Message: msg}
	}
}

func decodeBody(contentType string, body []byte, out interface{}) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(body)
	}
	return nil
}
