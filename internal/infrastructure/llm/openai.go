package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/domain/entity"
)

// OpenAIProvider 使用 Eino 的 OpenAI 适配器调用任何 OpenAI 兼容端点
type OpenAIProvider struct {
	name      string
	apiKey    string
	chatModel model.BaseChatModel
}

// NewOpenAIProvider 创建 OpenAI 兼容提供商，具体模型在每次调用时通过 model.WithModel 指定
func NewOpenAIProvider(ctx context.Context, name string, cfg config.ProviderConfig, timeout time.Duration) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, missingCredential(name)
	}
	defaultModel := ""
	if len(cfg.Models) > 0 {
		defaultModel = cfg.Models[0]
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   defaultModel,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %s", name, Redact(err.Error(), cfg.APIKey))
	}
	return newOpenAIProvider(name, cfg.APIKey, chatModel), nil
}

func newOpenAIProvider(name, apiKey string, cm model.BaseChatModel) *OpenAIProvider {
	return &OpenAIProvider{name: name, apiKey: apiKey, chatModel: cm}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msg, err := p.chatModel.Generate(ctx, einoMessages(req), einoOptions(req.Params)...)
	if err != nil {
		return nil, ClassifyError(err, p.apiKey)
	}
	out := &Response{Text: msg.Content}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     msg.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: msg.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return out, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (ChunkReader, error) {
	ctx, cancel := context.WithCancel(ctx)
	sr, err := p.chatModel.Stream(ctx, einoMessages(req), einoOptions(req.Params)...)
	if err != nil {
		cancel()
		return nil, ClassifyError(err, p.apiKey)
	}
	return &einoStream{sr: sr, cancel: cancel, apiKey: p.apiKey}, nil
}

type einoStream struct {
	sr     *schema.StreamReader[*schema.Message]
	cancel context.CancelFunc
	apiKey string
	once   sync.Once
}

func (s *einoStream) Recv() (string, error) {
	for {
		msg, err := s.sr.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", ClassifyError(err, s.apiKey)
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

func (s *einoStream) Close() {
	s.once.Do(func() {
		s.cancel()
		s.sr.Close()
	})
}

func einoMessages(req Request) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.Params.History)+2)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	for _, h := range req.Params.History {
		if h.Role == entity.RoleModel {
			msgs = append(msgs, schema.AssistantMessage(h.Text(), nil))
		} else {
			msgs = append(msgs, schema.UserMessage(h.Text()))
		}
	}
	return append(msgs, schema.UserMessage(req.Prompt))
}

// einoOptions OpenAI 协议不支持 topK，忽略该参数
func einoOptions(p entity.ModelParams) []model.Option {
	opts := []model.Option{model.WithModel(p.Model)}
	if p.Temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*p.Temperature)))
	}
	if p.TopP != nil {
		opts = append(opts, model.WithTopP(float32(*p.TopP)))
	}
	if p.MaxOutputTokens != nil {
		opts = append(opts, model.WithMaxTokens(*p.MaxOutputTokens))
	}
	return opts
}
