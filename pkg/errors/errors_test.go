package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeValidationFailed:  http.StatusBadRequest,
		CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
		CodeTooManyRequests:   http.StatusTooManyRequests,
		CodeUpstreamAuth:      http.StatusInternalServerError,
		CodeUpstreamTransient: http.StatusBadGateway,
		CodeUpstreamRejected:  http.StatusBadGateway,
		CodeStorageWrite:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus, "code %s", code)
	}
}

func TestWithHelpersDoNotMutateSentinels(t *testing.T) {
	e := ErrRateLimited.WithRetryAfter(3 * time.Second).WithDetail("slow down")

	assert.Equal(t, 3*time.Second, e.RetryAfter)
	assert.Equal(t, "slow down", e.Detail)
	assert.Zero(t, ErrRateLimited.RetryAfter)
	assert.Empty(t, ErrRateLimited.Detail)
	assert.True(t, stderrors.Is(e, ErrRateLimited))
}

func TestIsRetryable(t *testing.T) {
	cause := stderrors.New("connection reset")
	wrapped := fmt.Errorf("call: %w", ErrUpstreamTransient.WithError(cause))

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(ErrUpstreamAuth))
	assert.False(t, IsRetryable(cause))
	assert.ErrorIs(t, wrapped, cause)
}

func TestAsAppError(t *testing.T) {
	plain := stderrors.New("boom")
	appErr := AsAppError(plain)
	require.NotNil(t, appErr)
	assert.Equal(t, CodeUnknown, appErr.Code)

	original := ErrValidation.WithDetail("prompt")
	assert.Same(t, original, AsAppError(fmt.Errorf("wrap: %w", original)))
}
