package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"webforge-ai-api/internal/config"
)

// Builder 按 kind 构造提供商
type Builder func(ctx context.Context, name string, cfg config.ProviderConfig, timeout time.Duration) (Provider, error)

// Factory 管理多个提供商实例，按模型名路由，惰性创建
type Factory struct {
	config   *config.LLMConfig
	builders map[string]Builder
	models   map[string]string // model -> provider name
	cache    map[string]Provider
	mu       sync.RWMutex
}

// NewFactory 创建 LLM 工厂
func NewFactory(cfg *config.Config) *Factory {
	f := &Factory{
		config: &cfg.LLM,
		builders: map[string]Builder{
			"gemini": func(ctx context.Context, name string, pc config.ProviderConfig, timeout time.Duration) (Provider, error) {
				return NewGeminiProvider(ctx, name, pc, timeout)
			},
			"openai": func(ctx context.Context, name string, pc config.ProviderConfig, timeout time.Duration) (Provider, error) {
				return NewOpenAIProvider(ctx, name, pc, timeout)
			},
		},
		models: make(map[string]string),
		cache:  make(map[string]Provider),
	}

	// 同一模型出现在多个提供商时，按提供商名称排序取第一个
	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, m := range cfg.LLM.Providers[name].Models {
			if _, ok := f.models[m]; !ok {
				f.models[m] = name
			}
		}
	}
	return f
}

// RegisterBuilder 替换或新增某个 kind 的构造函数
func (f *Factory) RegisterBuilder(kind string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
}

// ProviderFor 返回服务指定模型的提供商名称
func (f *Factory) ProviderFor(modelName string) (string, bool) {
	name, ok := f.models[modelName]
	return name, ok
}

// ForModel 获取服务指定模型的提供商，空模型名使用默认模型
func (f *Factory) ForModel(ctx context.Context, modelName string) (Provider, error) {
	if modelName == "" {
		modelName = f.config.DefaultModel
	}
	name, ok := f.models[modelName]
	if !ok {
		return nil, fmt.Errorf("model %s is not served by any configured provider", modelName)
	}
	return f.Get(ctx, name)
}

// Get 获取指定名称的提供商
func (f *Factory) Get(ctx context.Context, name string) (Provider, error) {
	f.mu.RLock()
	p, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return p, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if p, ok = f.cache[name]; ok {
		return p, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	build, ok := f.builders[providerCfg.Kind]
	if !ok {
		return nil, fmt.Errorf("provider %s: unsupported kind %q", name, providerCfg.Kind)
	}

	built, err := build(ctx, name, providerCfg, f.config.RequestTimeout)
	if err != nil {
		// 凭据缺失等错误不缓存，修正配置后可恢复
		return nil, err
	}

	p = Instrument(built)
	f.cache[name] = p
	return p, nil
}
