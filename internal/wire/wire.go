//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"webforge-ai-api/internal/application/enrich"
	"webforge-ai-api/internal/application/relay"
	"webforge-ai-api/internal/application/validation"
	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/infrastructure/llm"
	"webforge-ai-api/internal/interfaces/http/handler"
	"webforge-ai-api/internal/interfaces/http/router"
	"webforge-ai-api/internal/workflow/prompt"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StorageSet,
		LLMSet,
		ApplicationSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// StorageSet Redis 与进程内存储提供者集合
var StorageSet = wire.NewSet(
	ProvideRedisClient,
	ProvideRateLimiter,
	ProvideMediaStore,
	ProvideHealthChecker,
)

// LLMSet 上游模型提供者集合
var LLMSet = wire.NewSet(
	llm.NewFactory,
	wire.Bind(new(relay.ProviderSource), new(*llm.Factory)),
	ProvideRelay,
)

// ApplicationSet 业务组件提供者集合
var ApplicationSet = wire.NewSet(
	prompt.NewRegistry,
	ProvideClassifier,
	enrich.NewEnricher,
	ProvideValidator,
	ProvideCritic,
	ProvideCorrector,
	ProvideSessionRegistry,
	ProvideMediaResolver,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerateHandler,
	handler.NewEnrichHandler,
	handler.NewAutopilotHandler,
	handler.NewMediaHandler,
	wire.Bind(new(handler.RequestValidator), new(*validation.Validator)),
	wire.Bind(new(handler.PromptEnricher), new(*enrich.Enricher)),
	wire.Bind(new(handler.GenerationRelay), new(*relay.Relay)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
