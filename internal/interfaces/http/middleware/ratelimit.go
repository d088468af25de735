// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"webforge-ai-api/internal/domain/repository"
	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/logger"
	"webforge-ai-api/pkg/metrics"
)

// ClientIDContextKey gin Context 中的客户端标识
const ClientIDContextKey = "client_id"

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// ClientHeader 可选的客户端标识头，缺省时按来源 IP 计数
	ClientHeader string
}

// ClientID 识别客户端：优先使用配置的请求头，否则使用来源 IP
func ClientID(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if header != "" {
			id = strings.TrimSpace(c.GetHeader(header))
			if len(id) > 128 {
				id = id[:128]
			}
		}
		if id == "" {
			id = c.ClientIP()
		}
		c.Set(ClientIDContextKey, id)
		ctx := logger.WithContext(c.Request.Context(), logger.ClientIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimit 限流中间件，超限返回 429 与 Retry-After
func RateLimit(cfg RateLimitConfig, limiter repository.RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	// 后端故障期间每个请求都会放行，告警日志按时间间隔节流
	failOpenLog := &rate.Sometimes{First: 1, Interval: 10 * time.Second}

	return func(c *gin.Context) {
		key := c.GetString(ClientIDContextKey)
		if key == "" {
			key = c.ClientIP()
		}

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// 限流器故障时放行
			metrics.RateLimitFailOpen.WithLabelValues(limiter.Backend()).Inc()
			failOpenLog.Do(func() {
				logger.Warn(c.Request.Context(), "rate limiter unavailable, failing open", "backend", limiter.Backend(), "error", err)
			})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RateLimitRejected.WithLabelValues(limiter.Backend()).Inc()
			dto.Abort(c, errors.ErrRateLimited.WithRetryAfter(decision.RetryAfter))
			return
		}

		c.Next()
	}
}
