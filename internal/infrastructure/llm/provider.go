// Package llm 封装上游模型提供商：Gemini (genai) 与 OpenAI 兼容端点 (eino)
package llm

import (
	"context"

	"webforge-ai-api/internal/domain/entity"
)

// Request 与提供商无关的一次调用
type Request struct {
	// System 可选的系统指令
	System string
	Prompt string
	Params entity.ModelParams
}

// Usage token 用量
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response 非流式调用结果
type Response struct {
	Text  string
	Usage Usage
}

// ChunkReader 流式结果；结束时 Recv 返回 io.EOF。Close 会中止底层传输，可重复调用。
type ChunkReader interface {
	Recv() (string, error)
	Close()
}

// Provider 上游模型提供商。凭据只保存在实现内部。
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (ChunkReader, error)
}
