// Package apierr defines the error taxonomy shared by the transport, cache
// and command layers, and maps every error to a stable process exit code.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Exit codes by error class. Scripts depend on these staying stable.
const (
	ExitOK             = 0
	ExitUnknown        = 1
	ExitValidation     = 2
	ExitAuth           = 3
	ExitNetwork        = 4
	ExitAPI            = 5
	ExitNotFound       = 6
	ExitNotImplemented = 7
)

// ValidationError reports malformed or out-of-range input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidation builds a ValidationError for a named field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthError reports a missing, invalid or unrefreshable credential.
type AuthError struct {
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message, e.Cause)
	}
	return "auth: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// NetworkError reports a transport-level failure: DNS, connection reset,
// timeout, or an unconfigured endpoint. Retryable unless the endpoint is bad.
type NetworkError struct {
	Op      string
	Cause   error
	Timeout bool
}

func (e *NetworkError) Error() string {
	kind := "network error"
	if e.Timeout {
		kind = "request timed out"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", kind, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", kind, e.Op)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// APIError reports a non-2xx HTTP response, or a success response whose body
// could not be parsed. Carries the status code and a truncated body preview.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("api error: %d %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("api error: %d: %s", e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("api error: %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("api error: %d", e.StatusCode)
	}
}

// NewAPIError builds an APIError from a response body, extracting a
// structured code/message when the body carries one.
func NewAPIError(status int, body []byte) *APIError {
	code, message := ExtractErrorCodeAndMessage(body)
	return &APIError{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Body:       TruncateBody(body, 512),
	}
}

// NotFoundError reports a missing resource, mapped from HTTP 404 with the
// resource context attached by the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return e.Resource + " not found"
}

// NotImplementedError marks a feature that is declared but not yet available.
type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string {
	return e.Feature + " is not implemented"
}

// ExitCodeFor maps any error to its stable exit code. A nil error is ExitOK;
// anything outside the taxonomy is ExitUnknown.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		validation     *ValidationError
		auth           *AuthError
		network        *NetworkError
		api            *APIError
		notFound       *NotFoundError
		notImplemented *NotImplementedError
	)
	switch {
	case errors.As(err, &validation):
		return ExitValidation
	case errors.As(err, &auth):
		return ExitAuth
	case errors.As(err, &notFound):
		return ExitNotFound
	case errors.As(err, &network):
		return ExitNetwork
	case errors.As(err, &api):
		if api.StatusCode == 401 || api.StatusCode == 403 {
			return ExitAuth
		}
		return ExitAPI
	case errors.As(err, &notImplemented):
		return ExitNotImplemented
	default:
		return ExitUnknown
	}
}

// IsRetryable reports whether a transport attempt that produced err may be
// retried: network failures and 5xx responses qualify, 4xx never does.
func IsRetryable(err error) bool {
	var network *NetworkError
	if errors.As(err, &network) {
		return true
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.StatusCode >= 500
	}
	return false
}

// ExtractErrorCodeAndMessage extracts a structured error code/message from
// common JSON error layouts: {"error":{"code","message"}} and flat
// {"code","message"} variants.
func ExtractErrorCodeAndMessage(body []byte) (string, string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ""
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return "", truncateMessage(trimmed, 256)
	}

	code := firstNonEmpty(
		nestedString(payload, "error", "code"),
		rootString(payload, "code"),
	)
	message := firstNonEmpty(
		nestedString(payload, "error", "message"),
		rootString(payload, "message"),
		nestedString(payload, "error", "detail"),
		rootString(payload, "detail"),
	)
	return strings.TrimSpace(code), truncateMessage(strings.TrimSpace(message), 512)
}

// TruncateBody truncates body text for error messages and logging.
func TruncateBody(body []byte, max int) string {
	if max <= 0 {
		max = 512
	}
	raw := strings.TrimSpace(string(body))
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "...(truncated)"
}

func truncateMessage(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func rootString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func nestedString(m map[string]any, parent, key string) string {
	node, ok := m[parent]
	if !ok {
		return ""
	}
	child, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := child[key].(string)
	return s
}
