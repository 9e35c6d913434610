// Package transport issues HTTP calls against the task API with bounded
// per-attempt timeouts, retry with exponential backoff, and translation of
// failures into the shared error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	"github.com/taskwire/taskwire/internal/pkg/httpclient"
	"github.com/taskwire/taskwire/internal/pkg/logger"
	"github.com/taskwire/taskwire/internal/util/apierr"
	"github.com/taskwire/taskwire/internal/util/urlvalidator"
)

const (
	// hardRetryCap bounds extra attempts regardless of configuration.
	hardRetryCap   = 5
	backoffBase    = 500 * time.Millisecond
	backoffCeiling = 5 * time.Second
)

// TokenFunc supplies the bearer credential for a request. Implementations
// may refresh under the hood; a returned error aborts the request.
type TokenFunc func(ctx context.Context) (string, error)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	UserAgent string
	ProxyURL  string
	Token     TokenFunc
}

type Client struct {
	rc      *req.Client
	baseURL string
	timeout time.Duration
	retries int
	token   TokenFunc
	log     *zap.Logger
}

// New validates the endpoint eagerly: requests against a placeholder or
// unset base URL would only ever produce confusing DNS errors later.
func New(opts Options) (*Client, error) {
	if urlvalidator.IsPlaceholder(opts.BaseURL) {
		return nil, &apierr.NetworkError{
			Op:    "configure endpoint",
			Cause: errors.New("api.base_url is not configured; set it in the config file or TASKWIRE_API_BASE_URL"),
		}
	}
	base := urlvalidator.NormalizeBaseURL(opts.BaseURL)
	if base == "" {
		return nil, apierr.NewValidation("api.base_url", "not a valid http(s) URL: %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	if retries > hardRetryCap {
		retries = hardRetryCap
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "taskwire-cli"
	}
	return &Client{
		rc:      httpclient.GetClient(httpclient.Options{UserAgent: ua, ProxyURL: opts.ProxyURL}),
		baseURL: base,
		timeout: timeout,
		retries: retries,
		token:   opts.Token,
		log:     logger.With(zap.String("component", "transport")),
	}, nil
}

// Response is a parsed API response. JSON reports whether Body is a strict
// JSON document; otherwise Body holds raw text from a success status.
type Response struct {
	StatusCode int
	Body       json.RawMessage
	JSON       bool
}

// Decode unmarshals a JSON response body into v. An empty body leaves v
// untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Request performs method on path (joined to the base URL), retrying server
// and transport failures with exponential backoff. Client errors (4xx) are
// terminal and never retried.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	op := method + " " + path
	maxAttempts := c.retries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			c.log.Debug("retrying request",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("backoff", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &apierr.NetworkError{Op: op, Cause: ctx.Err(), Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded)}
			}
		}

		resp, err := c.attempt(ctx, method, path, body)
		if err == nil {
			return resp, nil
		}
		if !apierr.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetJSON is a convenience wrapper for cache fetch callbacks: it performs a
// GET and returns the raw JSON body.
func (c *Client) GetJSON(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := c.Request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, body any) (*Response, error) {
	op := method + " " + path

	// Each attempt gets its own timeout; a retry starts fresh.
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r := c.rc.R().
		SetContext(attemptCtx).
		SetHeader("Accept", "application/json").
		SetHeader("X-Request-Id", uuid.NewString())

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			r.SetBearerAuthToken(token)
		}
	}
	if body != nil {
		r.SetContentType("application/json")
		r.SetBodyJsonMarshal(body)
	}

	resp, err := r.Send(method, c.baseURL+path)
	if err != nil {
		return nil, &apierr.NetworkError{Op: op, Cause: err, Timeout: isTimeout(err)}
	}

	raw := resp.Bytes()
	status := resp.StatusCode
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	isJSON := strings.Contains(contentType, "application/json")

	if status >= 200 && status < 300 {
		if len(bytes.TrimSpace(raw)) == 0 {
			return &Response{StatusCode: status}, nil
		}
		if isJSON {
			if !json.Valid(raw) {
				// A malformed success body is an error, not silently empty.
				return nil, &apierr.APIError{
					StatusCode: status,
					Message:    "malformed JSON in success response",
					Body:       apierr.TruncateBody(raw, 512),
				}
			}
			return &Response{StatusCode: status, Body: raw, JSON: true}, nil
		}
		return &Response{StatusCode: status, Body: raw}, nil
	}

	return nil, apierr.NewAPIError(status, raw)
}

func backoffDelay(retry int) time.Duration {
	delay := backoffBase << retry
	if delay > backoffCeiling || delay <= 0 {
		return backoffCeiling
	}
	return delay
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
