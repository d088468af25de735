package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge-ai-api/internal/domain/entity"
)

var testModels = []string{"gemini-2.5-flash", "gemini-2.5-pro"}

func newTestValidator() *Validator {
	return NewValidator(testModels, "gemini-2.5-flash")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func requireViolation(t *testing.T, err error, field string, reason Reason) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.True(t, verr.Has(field, reason), "violations: %+v", verr.Violations)
	return verr
}

func TestValidateAcceptsMinimalRequest(t *testing.T) {
	req, err := newTestValidator().Validate([]byte(`{"prompt":"  Crie um portfolio  "}`))
	require.NoError(t, err)

	assert.Equal(t, "Crie um portfolio", req.Prompt)
	assert.Equal(t, "gemini-2.5-flash", req.ModelName)
	assert.Nil(t, req.Temperature)
	assert.False(t, req.Stream)
}

func TestValidateAcceptsFullRequest(t *testing.T) {
	body := `{
		"prompt": "landing page",
		"modelName": "gemini-2.5-pro",
		"history": [{"role":"user","parts":[{"text":"oi\u0007"}]},{"role":"model","parts":[{"text":"ola"}]}],
		"temperature": 2,
		"maxOutputTokens": 8192,
		"topP": 0,
		"topK": 1,
		"stream": true
	}`
	req, err := newTestValidator().Validate([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", req.ModelName)
	require.Len(t, req.History, 2)
	assert.Equal(t, entity.RoleUser, req.History[0].Role)
	assert.Equal(t, "oi", req.History[0].Text())
	assert.InDelta(t, 2.0, *req.Temperature, 1e-9)
	assert.Equal(t, 8192, *req.MaxOutputTokens)
	assert.True(t, req.Stream)
}

func TestValidateBlankPrompt(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":"   "}`))
	verr := requireViolation(t, err, "prompt", ReasonEmpty)
	assert.Contains(t, verr.Error(), "empty")
	assert.Equal(t, 400, verr.AppError().HTTPStatus)
}

func TestValidateMissingPrompt(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{}`))
	requireViolation(t, err, "prompt", ReasonEmpty)
}

func TestValidateTooLongPrompt(t *testing.T) {
	long := strings.Repeat("a", MaxPromptChars+1)
	_, err := newTestValidator().Validate(mustJSON(t, map[string]string{"prompt": long}))
	verr := requireViolation(t, err, "prompt", ReasonTooLong)
	assert.Contains(t, verr.Error(), "length")
}

func TestValidatePromptAtLimit(t *testing.T) {
	_, err := newTestValidator().Validate(mustJSON(t, map[string]string{"prompt": strings.Repeat("é", MaxPromptChars)}))
	require.NoError(t, err)
}

func TestValidateUnknownModelIsRejected(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":"x","modelName":"gpt-9"}`))
	requireViolation(t, err, "modelName", ReasonUnsupportedModel)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`{"prompt":"x","temperature":2.01}`, "temperature"},
		{`{"prompt":"x","temperature":-0.1}`, "temperature"},
		{`{"prompt":"x","maxOutputTokens":0}`, "maxOutputTokens"},
		{`{"prompt":"x","maxOutputTokens":8193}`, "maxOutputTokens"},
		{`{"prompt":"x","topP":1.5}`, "topP"},
		{`{"prompt":"x","topK":0}`, "topK"},
		{`{"prompt":"x","topK":101}`, "topK"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := newTestValidator().Validate([]byte(tt.body))
			requireViolation(t, err, tt.field, ReasonOutOfRange)
		})
	}
}

func TestValidateHistory(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":"x","history":[{"role":"system","parts":[{"text":"a"}]},{"role":"user","parts":[]}]}`))
	verr := requireViolation(t, err, "history[0].role", ReasonInvalidRole)
	assert.True(t, verr.Has("history[1].parts", ReasonEmptyParts))
}

func TestValidateCollectsAllViolations(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":"","modelName":"nope","topK":500}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 3)
}

func TestValidateMalformedBodies(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":`))
	requireViolation(t, err, "body", ReasonMalformedJSON)

	_, err = newTestValidator().Validate([]byte(`{"prompt":42}`))
	requireViolation(t, err, "prompt", ReasonInvalidType)

	_, err = newTestValidator().Validate([]byte(`{"prompt":"x","maxOutputTokens":10.5}`))
	requireViolation(t, err, "maxOutputTokens", ReasonInvalidType)

	_, err = newTestValidator().Validate([]byte(`["prompt"]`))
	requireViolation(t, err, "body", ReasonInvalidType)

	_, err = newTestValidator().Validate([]byte(`null`))
	requireViolation(t, err, "body", ReasonInvalidType)
}

func TestValidateReportsEveryTypeError(t *testing.T) {
	_, err := newTestValidator().Validate([]byte(`{"prompt":42,"temperature":"hot","stream":"yes","extra":true}`))
	verr := requireViolation(t, err, "prompt", ReasonInvalidType)
	assert.True(t, verr.Has("temperature", ReasonInvalidType))
	assert.True(t, verr.Has("stream", ReasonInvalidType))
	assert.Len(t, verr.Violations, 3)
}

func TestValidateIgnoresUnknownFields(t *testing.T) {
	req, err := newTestValidator().Validate([]byte(`{"prompt":"hello","clientVersion":"1.2.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", req.Prompt)
}
