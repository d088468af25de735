package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/config"
)

var exposedHeaders = []string{RequestIDHeader, "X-Trace-ID", "Retry-After", "X-RateLimit-Remaining"}

// CORS 跨域中间件。凭据只在服务端持有，因此从不允许浏览器携带 cookie；
// 限流用的客户端标识头会自动加入允许列表。
func CORS(cfg config.CORSConfig, clientHeader string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Origin", "Content-Type", RequestIDHeader}
	}
	if clientHeader != "" && !slices.Contains(c.AllowHeaders, clientHeader) {
		c.AllowHeaders = append(slices.Clone(c.AllowHeaders), clientHeader)
	}

	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(c)
}
