package validation

import (
	"fmt"
	"strings"

	apperrors "webforge-ai-api/pkg/errors"
)

// Reason 机器可读的违规原因
type Reason string

const (
	ReasonMalformedJSON    Reason = "malformed_json"
	ReasonInvalidType      Reason = "invalid_type"
	ReasonEmpty            Reason = "empty"
	ReasonTooLong          Reason = "too_long"
	ReasonUnsupportedModel Reason = "unsupported_model"
	ReasonOutOfRange       Reason = "out_of_range"
	ReasonInvalidRole      Reason = "invalid_role"
	ReasonEmptyParts       Reason = "empty_parts"
)

// FieldViolation 单个字段的违规
type FieldViolation struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// ValidationError 请求整体被拒绝，携带全部违规项
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Has 是否包含指定字段与原因的违规
func (e *ValidationError) Has(field string, reason Reason) bool {
	for _, v := range e.Violations {
		if v.Field == field && v.Reason == reason {
			return true
		}
	}
	return false
}

// AppError 转换为统一错误，供 HTTP 层输出 400
func (e *ValidationError) AppError() *apperrors.AppError {
	return apperrors.ErrValidation.WithDetail(e.Error()).WithError(e)
}

func (e *ValidationError) add(field string, reason Reason, msg string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Reason: reason, Message: msg})
}
