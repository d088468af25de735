// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 生成
	v1.POST("/generate", h.Generate.Generate)
	v1.POST("/enrich", h.Enrich.Enrich)

	// 自动质检
	sessions := v1.Group("/autopilot/sessions")
	{
		sessions.GET("/:sid", h.Autopilot.Get)
		sessions.DELETE("/:sid", h.Autopilot.Delete)
		sessions.POST("/:sid/run", h.Autopilot.Run)
		sessions.POST("/:sid/stop", h.Autopilot.Stop)
	}

	// 媒体占位符
	media := v1.Group("/media")
	{
		media.POST("/expand", h.Media.Expand)
		media.POST("/compress", h.Media.Compress)
		media.PUT("/research", h.Media.RegisterResearch)
	}
}
