// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/application/media"
	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/internal/interfaces/http/middleware"
)

// MediaHandler 媒体占位符处理器
type MediaHandler struct {
	resolver *media.Resolver
}

// NewMediaHandler 创建处理器
func NewMediaHandler(resolver *media.Resolver) *MediaHandler {
	return &MediaHandler{resolver: resolver}
}

// Expand 展开占位符
// @Summary 展开媒体占位符
// @Tags Media
// @Accept json
// @Produce json
// @Success 200 {object} dto.MediaExpandResponse
// @Router /v1/media/expand [post]
func (h *MediaHandler) Expand(c *gin.Context) {
	var req dto.MediaDocumentRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Error(c, err)
		return
	}
	html, stats := h.resolver.ExpandWithStats(c.Request.Context(), req.HTML)
	middleware.Annotate(c, "resolved", stats.Resolved)
	middleware.Annotate(c, "unresolved", len(stats.Unresolved))
	dto.Success(c, dto.MediaExpandResponse{
		Success:    true,
		HTML:       html,
		Resolved:   stats.Resolved,
		Unresolved: stats.Unresolved,
	})
}

// Compress 把内联图片换成占位符
// @Summary 压缩内联媒体
// @Tags Media
// @Accept json
// @Produce json
// @Success 200 {object} dto.MediaCompressResponse
// @Router /v1/media/compress [post]
func (h *MediaHandler) Compress(c *gin.Context) {
	var req dto.MediaDocumentRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Error(c, err)
		return
	}
	html, stats := h.resolver.Compress(c.Request.Context(), req.HTML)
	middleware.Annotate(c, "stored", stats.Stored)
	middleware.Annotate(c, "bytes_saved", stats.BytesSaved)
	dto.Success(c, dto.MediaCompressResponse{
		Success:    true,
		HTML:       html,
		Stored:     stats.Stored,
		Reused:     stats.Reused,
		Inline:     stats.Inline,
		BytesSaved: stats.BytesSaved,
	})
}

// RegisterResearch 登记检索到的媒体
// @Summary 登记检索媒体
// @Tags Media
// @Accept json
// @Produce json
// @Success 200 {object} dto.MediaResearchResponse
// @Router /v1/media/research [put]
func (h *MediaHandler) RegisterResearch(c *gin.Context) {
	var req dto.MediaResearchRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Error(c, err)
		return
	}
	p, err := h.resolver.RegisterResearch(c.Request.Context(), req.Scheme, req.Description, req.Payload)
	if err != nil {
		dto.Error(c, err)
		return
	}
	middleware.Annotate(c, "scheme", req.Scheme)
	dto.Success(c, dto.MediaResearchResponse{Success: true, Placeholder: p, URI: p.URI()})
}
