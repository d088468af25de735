package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	apperrors "webforge-ai-api/pkg/errors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *apperrors.AppError
	}{
		{"genai auth", genai.APIError{Code: 401, Message: "bad key"}, apperrors.ErrUpstreamAuth},
		{"genai quota", genai.APIError{Code: 429}, apperrors.ErrUpstreamTransient},
		{"genai 500", genai.APIError{Code: 500}, apperrors.ErrUpstreamTransient},
		{"genai 404", genai.APIError{Code: 404}, apperrors.ErrUpstreamRejected},
		{"openai style status", errors.New("error, status code: 403, status: 403 Forbidden"), apperrors.ErrUpstreamAuth},
		{"openai style 502", fmt.Errorf("stream: %w", errors.New("status code: 502, message: bad gateway")), apperrors.ErrUpstreamTransient},
		{"timeout", context.DeadlineExceeded, apperrors.ErrUpstreamTransient},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, apperrors.ErrUpstreamTransient},
		{"truncated body", io.ErrUnexpectedEOF, apperrors.ErrUpstreamTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ClassifyError(tt.err), tt.want)
		})
	}
}

func TestClassifyErrorKeepsCancellationAndAppErrors(t *testing.T) {
	assert.Equal(t, context.Canceled, ClassifyError(context.Canceled))
	assert.Same(t, apperrors.ErrUpstreamAuth, ClassifyError(apperrors.ErrUpstreamAuth))
	assert.NoError(t, ClassifyError(nil))
}

func TestClassifyErrorPreservesCause(t *testing.T) {
	cause := genai.APIError{Code: 503, Message: "overloaded"}
	err := ClassifyError(cause)

	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Code)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "call failed with [REDACTED]", Redact("call failed with my-secret", "my-secret"))
	assert.Equal(t, "url ?key=[REDACTED]&alt=sse", Redact("url ?key=abc123&alt=sse"))
	assert.NotContains(t, Redact("token AIzaSyA1234567890abcdefghijklmnop"), "AIzaSy")
	assert.NotContains(t, Redact("Bearer sk-abcdefghijklmnop1234"), "sk-abcdefghijklmnop1234")
}
