package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"google.golang.org/genai"

	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/domain/entity"
)

// GeminiProvider 通过 google.golang.org/genai 调用 Gemini API
type GeminiProvider struct {
	name   string
	apiKey string
	client *genai.Client
}

// NewGeminiProvider 创建 Gemini 提供商；timeout 作用于单次 HTTP 调用
func NewGeminiProvider(ctx context.Context, name string, cfg config.ProviderConfig, timeout time.Duration) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, missingCredential(name)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	}
	if timeout > 0 {
		cc.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client for %s: %s", name, Redact(err.Error(), cfg.APIKey))
	}
	return &GeminiProvider{name: name, apiKey: cfg.APIKey, client: client}, nil
}

func (p *GeminiProvider) Name() string { return p.name }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := p.client.Models.GenerateContent(ctx, req.Params.Model, geminiContents(req), geminiConfig(req))
	if err != nil {
		return nil, ClassifyError(err, p.apiKey)
	}
	out := &Response{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{PromptTokens: int(u.PromptTokenCount), CompletionTokens: int(u.CandidatesTokenCount)}
	}
	return out, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (ChunkReader, error) {
	ctx, cancel := context.WithCancel(ctx)
	seq := p.client.Models.GenerateContentStream(ctx, req.Params.Model, geminiContents(req), geminiConfig(req))
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop, cancel: cancel, apiKey: p.apiKey}, nil
}

// geminiStream 把 iter.Seq2 转为拉取式读取器
type geminiStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	apiKey string

	mu     sync.Mutex
	closed bool
}

func (s *geminiStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return "", io.EOF
		}
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", ClassifyError(err, s.apiKey)
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stop()
}

func geminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Params.History)+1)
	for _, h := range req.Params.History {
		role := genai.Role(genai.RoleUser)
		if h.Role == entity.RoleModel {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(h.Parts))
		for _, part := range h.Parts {
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	p := req.Params
	if p.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*p.Temperature))
	}
	if p.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*p.TopP))
	}
	if p.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*p.TopK))
	}
	if p.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*p.MaxOutputTokens)
	}
	return cfg
}
