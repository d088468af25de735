// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/application/validation"
	apperrors "webforge-ai-api/pkg/errors"
)

// ErrorCodeKey 写出错误响应时在 gin.Context 中记录错误码，供审计日志读取
const ErrorCodeKey = "error_code"

// ErrorResponse 错误响应结构；内部原因与凭据从不出现在这里
type ErrorResponse struct {
	Success    bool                        `json:"success"`
	Error      string                      `json:"error"`
	Code       apperrors.ErrorCode         `json:"code"`
	Details    string                      `json:"details,omitempty"`
	Violations []validation.FieldViolation `json:"violations,omitempty"`
	RetryAfter int                         `json:"retry_after,omitempty"`
	TraceID    string                      `json:"trace_id,omitempty"`
}

// NewErrorResponse 把任意错误映射为对外响应与状态码
func NewErrorResponse(c *gin.Context, err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		appErr = verr.AppError()
	case apperrors.IsAppError(err):
		appErr = apperrors.AsAppError(err)
	default:
		appErr = apperrors.ErrInternalError
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	resp := ErrorResponse{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		TraceID: c.GetString("trace_id"),
	}
	c.Set(ErrorCodeKey, string(appErr.Code))
	if verr != nil {
		// 校验失败时 error 直接给出全部违规说明
		resp.Error = verr.Error()
		resp.Violations = verr.Violations
	} else {
		resp.Details = appErr.Detail
	}
	if appErr.RetryAfter > 0 {
		resp.RetryAfter = int(math.Ceil(appErr.RetryAfter.Seconds()))
	}
	return status, resp
}

// Error 返回错误响应；限流错误附带 Retry-After 头
func Error(c *gin.Context, err error) {
	status, resp := NewErrorResponse(c, err)
	if resp.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	c.JSON(status, resp)
}

// Abort 返回错误响应并终止后续处理
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// Success 返回 200
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, data)
}

// Accepted 返回 202
func Accepted[T any](c *gin.Context, data T) {
	c.JSON(http.StatusAccepted, data)
}

// NoContent 返回无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
