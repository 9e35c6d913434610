package apierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", NewValidation("timeout", "must be between 1s and 300s"), ExitValidation},
		{"auth", &AuthError{Message: "no credential"}, ExitAuth},
		{"network", &NetworkError{Op: "GET /projects"}, ExitNetwork},
		{"api 500", &APIError{StatusCode: 500}, ExitAPI},
		{"api 401 maps to auth", &APIError{StatusCode: 401}, ExitAuth},
		{"api 403 maps to auth", &APIError{StatusCode: 403}, ExitAuth},
		{"not found", &NotFoundError{Resource: "project", ID: "p1"}, ExitNotFound},
		{"not implemented", &NotImplementedError{Feature: "bulk export"}, ExitNotImplemented},
		{"unknown", errors.New("boom"), ExitUnknown},
		{"wrapped validation", fmt.Errorf("load config: %w", NewValidation("retries", "out of range")), ExitValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&NetworkError{Op: "dial", Timeout: true}))
	require.True(t, IsRetryable(&APIError{StatusCode: 503}))
	require.False(t, IsRetryable(&APIError{StatusCode: 400}))
	require.False(t, IsRetryable(&APIError{StatusCode: 404}))
	require.False(t, IsRetryable(errors.New("plain")))
	require.True(t, IsRetryable(fmt.Errorf("attempt 2: %w", &APIError{StatusCode: 500})))
}

func TestExtractErrorCodeAndMessage(t *testing.T) {
	code, msg := ExtractErrorCodeAndMessage([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
	require.Equal(t, "rate_limited", code)
	require.Equal(t, "too many requests", msg)

	code, msg = ExtractErrorCodeAndMessage([]byte(`{"code":"project_not_found","message":"no such project"}`))
	require.Equal(t, "project_not_found", code)
	require.Equal(t, "no such project", msg)

	code, msg = ExtractErrorCodeAndMessage([]byte(`plain text failure`))
	require.Equal(t, "", code)
	require.Equal(t, "plain text failure", msg)

	code, msg = ExtractErrorCodeAndMessage(nil)
	require.Equal(t, "", code)
	require.Equal(t, "", msg)
}

func TestNewAPIErrorTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 2048))
	err := NewAPIError(502, body)
	require.Equal(t, 502, err.StatusCode)
	require.LessOrEqual(t, len(err.Body), 512+len("...(truncated)"))
	require.Contains(t, err.Body, "...(truncated)")
}

func TestErrorMessages(t *testing.T) {
	require.Equal(t, `project "p1" not found`, (&NotFoundError{Resource: "project", ID: "p1"}).Error())
	require.Equal(t, "invalid timeout: too large", NewValidation("timeout", "too large").Error())

	cause := errors.New("connection refused")
	netErr := &NetworkError{Op: "POST /tasks", Cause: cause}
	require.ErrorIs(t, netErr, cause)
	require.Contains(t, netErr.Error(), "connection refused")

	timeoutErr := &NetworkError{Op: "GET /projects", Timeout: true}
	require.Contains(t, timeoutErr.Error(), "timed out")
}
