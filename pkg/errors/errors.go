// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess         ErrorCode = "0"
	CodeUnknown         ErrorCode = "1000"
	CodeInvalidParam    ErrorCode = "1001"
	CodeNotFound        ErrorCode = "1004"
	CodeConflict        ErrorCode = "1005"
	CodeTooManyRequests ErrorCode = "1006"
	CodeInternalError   ErrorCode = "1007"
	CodeUnavailable     ErrorCode = "1008"
	CodePayloadTooLarge ErrorCode = "1009"

	// 请求校验错误 (2xxx)
	CodeValidationFailed ErrorCode = "2001"

	// 上游模型错误 (4xxx)
	CodeUpstreamAuth      ErrorCode = "4001"
	CodeUpstreamTransient ErrorCode = "4002"
	CodeUpstreamRejected  ErrorCode = "4003"
	CodeScoringParse      ErrorCode = "4004"

	// 存储错误 (5xxx)
	CodeStorageWrite ErrorCode = "5001"
	CodeCacheError   ErrorCode = "5002"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	HTTPStatus int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
	Err        error         `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is(err, ErrRateLimited) 这类判断
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail 添加详细信息，返回副本
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误，返回副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithRetryAfter 设置建议的重试等待时间，返回副本
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	cp := *e
	cp.RetryAfter = d
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUpstreamTransient, CodeUpstreamRejected, CodeScoringParse:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		// 包括 CodeUpstreamAuth：凭据问题属于服务端配置错误
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam    = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound        = New(CodeNotFound, "resource not found")
	ErrConflict        = New(CodeConflict, "resource conflict")
	ErrRateLimited     = New(CodeTooManyRequests, "too many requests")
	ErrInternalError   = New(CodeInternalError, "internal server error")
	ErrUnavailable     = New(CodeUnavailable, "service unavailable")
	ErrPayloadTooLarge = New(CodePayloadTooLarge, "payload too large")

	ErrValidation = New(CodeValidationFailed, "request validation failed")

	ErrUpstreamAuth      = New(CodeUpstreamAuth, "upstream authentication failed")
	ErrUpstreamTransient = New(CodeUpstreamTransient, "upstream temporarily unavailable")
	ErrUpstreamRejected  = New(CodeUpstreamRejected, "upstream rejected the request")
	ErrScoringParse      = New(CodeScoringParse, "quality score could not be parsed")

	ErrStorageWrite = New(CodeStorageWrite, "storage write failed")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsRetryable 只有瞬时上游错误允许重试
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == CodeUpstreamTransient
}
