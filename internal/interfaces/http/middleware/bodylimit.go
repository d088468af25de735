// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/metrics"
)

// BodyLimit 请求体大小上限。声明长度超限时直接 413，未声明长度的请求在读取时截断。
func BodyLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			metrics.PayloadRejected.Inc()
			dto.Abort(c, errors.ErrPayloadTooLarge)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
