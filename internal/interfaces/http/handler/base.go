// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/metrics"
)

// readBody 读取请求体；超过 BodyLimit 时返回 413 对应的错误
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.PayloadRejected.Inc()
			return nil, apperrors.ErrPayloadTooLarge
		}
		return nil, apperrors.ErrInvalidParam.WithDetail("request body could not be read")
	}
	return body, nil
}

// bindJSON 读取并按 binding 标签校验 JSON 请求体
func bindJSON(c *gin.Context, v any) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := binding.JSON.BindBody(body, v); err != nil {
		return apperrors.ErrInvalidParam.WithDetail(err.Error())
	}
	return nil
}

// sseHeaders 设置 SSE 响应头
func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// sseEvent 写入一个事件并立即刷新
func sseEvent(c *gin.Context, name string, data any) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
