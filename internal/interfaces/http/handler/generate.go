// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/application/relay"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/internal/interfaces/http/middleware"
	"webforge-ai-api/pkg/logger"
)

// RequestValidator 校验原始请求体
type RequestValidator interface {
	Validate(raw []byte) (*entity.GenerationRequest, error)
}

// PromptEnricher 把用户提示包装成指令栈
type PromptEnricher interface {
	Enrich(ctx context.Context, userPrompt string) (entity.EnrichedPrompt, error)
}

// GenerationRelay 上游转发
type GenerationRelay interface {
	Generate(ctx context.Context, prompt entity.EnrichedPrompt, params entity.ModelParams) (string, error)
	Stream(ctx context.Context, prompt entity.EnrichedPrompt, params entity.ModelParams) (*relay.TokenStream, error)
}

// GenerateHandler 生成处理器：校验 -> 增强 -> 转发
type GenerateHandler struct {
	validator RequestValidator
	enricher  PromptEnricher
	relay     GenerationRelay
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(v RequestValidator, e PromptEnricher, r GenerationRelay) *GenerateHandler {
	return &GenerateHandler{validator: v, enricher: e, relay: r}
}

// Generate 生成代码
// @Summary 生成代码
// @Description stream=true 时以 SSE 返回 content / done / error 事件
// @Tags Generation
// @Accept json
// @Produce json,text/event-stream
// @Success 200 {object} dto.GenerateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		dto.Error(c, err)
		return
	}
	req, err := h.validator.Validate(body)
	if err != nil {
		dto.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	enriched, err := h.enricher.Enrich(ctx, req.Prompt)
	if err != nil {
		logger.Error(ctx, "prompt enrichment failed", err)
		dto.Error(c, err)
		return
	}
	params := req.Params()
	middleware.Annotate(c, "model", params.Model)
	middleware.Annotate(c, "stream", req.Stream)
	middleware.Annotate(c, "protocols", enriched.AppliedProtocols())

	if !req.Stream {
		content, err := h.relay.Generate(ctx, enriched, params)
		if err != nil {
			dto.Error(c, err)
			return
		}
		dto.Success(c, dto.GenerateResponse{
			Success:          true,
			Content:          content,
			Model:            params.Model,
			AppliedProtocols: enriched.AppliedProtocols(),
		})
		return
	}

	// 首个分片之前的失败（含重试耗尽）仍以普通错误响应返回
	stream, err := h.relay.Stream(ctx, enriched, params)
	if err != nil {
		dto.Error(c, err)
		return
	}
	defer stream.Close()

	sseHeaders(c)
	index := 0
	for chunk, err := range stream.All() {
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info(ctx, "client disconnected mid-stream", "chunks", index)
				return
			}
			logger.Warn(ctx, "stream interrupted", "chunks", index, "error", err)
			_, resp := dto.NewErrorResponse(c, err)
			sseEvent(c, "error", dto.StreamError{Error: resp.Error, Code: string(resp.Code)})
			return
		}
		sseEvent(c, "content", dto.StreamChunk{Chunk: chunk, Index: index})
		index++
	}
	sseEvent(c, "done", dto.StreamDone{
		Chunks:           index,
		Model:            params.Model,
		AppliedProtocols: enriched.AppliedProtocols(),
	})
}
