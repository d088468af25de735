package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/pkg/logger"
)

const auditFieldsKey = "audit_fields"

// DefaultAuditSkipPaths 默认跳过审计的路径
var DefaultAuditSkipPaths = []string{"/health", "/ready", "/live", "/metrics"}

// Annotate 为本次请求的审计记录追加字段。只应写入元数据（模型名、协议、会话 ID 等），
// 提示词与生成内容不进入审计。
func Annotate(c *gin.Context, key string, value any) {
	var fields []any
	if v, ok := c.Get(auditFieldsKey); ok {
		fields, _ = v.([]any)
	}
	c.Set(auditFieldsKey, append(fields, key, value))
}

// Audit 每个请求结束后写一条审计日志，记录路由模板而非原始路径
func Audit(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_id", c.GetString(ClientIDContextKey),
			"bytes_out", c.Writer.Size(),
		}
		if code := c.GetString(dto.ErrorCodeKey); code != "" {
			attrs = append(attrs, "error_code", code)
		}
		if v, ok := c.Get(auditFieldsKey); ok {
			if extra, ok := v.([]any); ok {
				attrs = append(attrs, slog.Group("detail", extra...))
			}
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelWarn
		}
		ctx := c.Request.Context()
		logger.FromContext(ctx).Log(ctx, level, "api audit", attrs...)
	}
}
