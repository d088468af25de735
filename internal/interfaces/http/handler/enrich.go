// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/application/validation"
	"webforge-ai-api/internal/interfaces/http/dto"
	apperrors "webforge-ai-api/pkg/errors"
)

// EnrichHandler 调试用：返回分类结果与最终提示
type EnrichHandler struct {
	enricher PromptEnricher
}

// NewEnrichHandler 创建增强处理器
func NewEnrichHandler(e PromptEnricher) *EnrichHandler {
	return &EnrichHandler{enricher: e}
}

// Enrich 预览增强后的提示
// @Summary 预览增强提示
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.EnrichRequest true "提示"
// @Success 200 {object} dto.EnrichResponse
// @Router /v1/enrich [post]
func (h *EnrichHandler) Enrich(c *gin.Context) {
	var req dto.EnrichRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Error(c, err)
		return
	}
	prompt := validation.Sanitize(req.Prompt)
	if prompt == "" {
		dto.Error(c, apperrors.ErrValidation.WithDetail("prompt: must not be empty"))
		return
	}

	enriched, err := h.enricher.Enrich(c.Request.Context(), prompt)
	if err != nil {
		dto.Error(c, err)
		return
	}
	dto.Success(c, dto.EnrichResponse{
		Success:          true,
		Context:          enriched.Context(),
		AppliedProtocols: enriched.AppliedProtocols(),
		Text:             enriched.Text(),
	})
}
