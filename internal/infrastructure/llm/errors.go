package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	apperrors "webforge-ai-api/pkg/errors"
)

var (
	statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)
	secretPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`),
		regexp.MustCompile(`sk-[0-9A-Za-z_\-]{16,}`),
		regexp.MustCompile(`(?i)(key|token|authorization)([=:]\s*)[^\s&"']+`),
	}
)

// redactedError 保留错误链，同时抹去消息中的凭据
type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// Redact 抹去字符串中的凭据片段
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "[REDACTED]")
		}
	}
	for _, re := range secretPatterns {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			if sub := re.FindStringSubmatch(m); len(sub) == 3 {
				return sub[1] + sub[2] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return s
}

// ClassifyError 把上游错误映射到统一错误分类：
// 401/403 -> UpstreamAuth；408/429/5xx/超时/网络 -> UpstreamTransient；其它 4xx -> UpstreamRejected。
// 调用方主动取消 (context.Canceled) 原样返回。
func ClassifyError(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	cause := &redactedError{msg: Redact(err.Error(), secrets...), cause: err}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrUpstreamTransient.WithDetail("upstream call timed out").WithError(cause)
	}

	if status, ok := statusOf(err); ok {
		return fromStatus(status, cause)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return apperrors.ErrUpstreamTransient.WithDetail("network error talking to upstream").WithError(cause)
	}

	return apperrors.ErrUpstreamTransient.WithError(cause)
}

func statusOf(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return apiErr.Code, true
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); len(m) == 2 {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return code, true
		}
	}
	return 0, false
}

func fromStatus(status int, cause error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrUpstreamAuth.WithError(cause)
	case status == http.StatusTooManyRequests:
		return apperrors.ErrUpstreamTransient.WithDetail("upstream quota exhausted").WithError(cause)
	case status == http.StatusRequestTimeout || status >= 500:
		return apperrors.ErrUpstreamTransient.WithDetail("upstream returned " + strconv.Itoa(status)).WithError(cause)
	default:
		return apperrors.ErrUpstreamRejected.WithDetail("upstream returned " + strconv.Itoa(status)).WithError(cause)
	}
}

// missingCredential 未配置凭据属于致命配置错误
func missingCredential(provider string) error {
	return apperrors.ErrUpstreamAuth.WithDetail("credential for provider " + provider + " is not configured")
}
