package dto

import (
	"webforge-ai-api/internal/domain/entity"
)

// GenerateResponse 非流式生成响应
type GenerateResponse struct {
	Success          bool                `json:"success"`
	Content          string              `json:"content"`
	Model            string              `json:"model"`
	AppliedProtocols []entity.ProtocolID `json:"applied_protocols"`
}

// StreamChunk SSE content 事件
type StreamChunk struct {
	Chunk string `json:"chunk"`
	Index int    `json:"index"`
}

// StreamDone SSE done 事件
type StreamDone struct {
	Chunks           int                 `json:"chunks"`
	Model            string              `json:"model"`
	AppliedProtocols []entity.ProtocolID `json:"applied_protocols"`
}

// StreamError SSE error 事件
type StreamError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// EnrichRequest 调试用的增强请求
type EnrichRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// EnrichResponse 增强结果
type EnrichResponse struct {
	Success          bool                   `json:"success"`
	Context          entity.DetectedContext `json:"context"`
	AppliedProtocols []entity.ProtocolID    `json:"applied_protocols"`
	Text             string                 `json:"text"`
}
