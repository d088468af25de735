// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"webforge-ai-api/internal/application/autopilot"
	"webforge-ai-api/internal/application/classifier"
	"webforge-ai-api/internal/application/enrich"
	"webforge-ai-api/internal/application/media"
	"webforge-ai-api/internal/application/relay"
	"webforge-ai-api/internal/application/validation"
	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
	"webforge-ai-api/internal/infrastructure/persistence/memory"
	"webforge-ai-api/internal/infrastructure/persistence/redis"
	"webforge-ai-api/internal/interfaces/http/handler"
	"webforge-ai-api/internal/interfaces/http/router"
	"webforge-ai-api/internal/workflow/prompt"
	"webforge-ai-api/pkg/logger"
)

// App 应用根对象
type App struct {
	Router   *router.Router
	Sessions *autopilot.Registry
}

// Shutdown 停止所有自动质检会话
func (a *App) Shutdown() {
	a.Sessions.StopAll()
}

// ProvideRedisClient 提供 Redis 客户端；未启用时返回 nil，由进程内实现兜底
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, using in-process rate limiter and media store")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRateLimiter 按是否启用 Redis 选择限流实现
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) repository.RateLimiter {
	rl := cfg.Security.RateLimit
	if client == nil {
		return memory.NewRateLimiter(rl.Requests, rl.Window)
	}
	return redis.NewRateLimiter(client, rl.Requests, rl.Window)
}

// ProvideMediaStore 按是否启用 Redis 选择媒体存储
func ProvideMediaStore(cfg *config.Config, client *redis.Client) repository.MediaStore {
	m := cfg.Media
	if client == nil {
		return memory.NewMediaStore(m.MaxEntries, m.MaxBytes)
	}
	return redis.NewMediaStore(client, m.MaxEntries, m.MaxBytes)
}

// ProvideHealthChecker 未启用 Redis 时返回 nil 接口
func ProvideHealthChecker(client *redis.Client) handler.HealthChecker {
	if client == nil {
		return nil
	}
	return client
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, checker handler.HealthChecker) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, handler.WithDependency("redis", checker))
}

// ProvideRelay 提供上游转发器
func ProvideRelay(cfg *config.Config, providers relay.ProviderSource) *relay.Relay {
	return relay.New(providers, relay.ConfigFrom(cfg.LLM))
}

// ProvideClassifier 提供提示分类器
func ProvideClassifier(cfg *config.Config) *classifier.Classifier {
	return classifier.New(classifier.WithMobileThreshold(cfg.Classifier.MobileThreshold))
}

// ProvideValidator 提供请求校验器，允许的模型来自提供商配置
func ProvideValidator(cfg *config.Config) *validation.Validator {
	return validation.NewValidator(cfg.LLM.AllowedModels(), cfg.LLM.DefaultModel)
}

// ProvideCritic 评审默认使用生成模型
func ProvideCritic(cfg *config.Config, providers relay.ProviderSource, prompts *prompt.Registry) autopilot.Critic {
	model := cfg.Autopilot.CritiqueModel
	if model == "" {
		model = cfg.LLM.DefaultModel
	}
	return autopilot.NewLLMCritic(providers, prompts, model, cfg.Autopilot.QualityThreshold, cfg.LLM.RequestTimeout)
}

// ProvideCorrector 提供纠正器
func ProvideCorrector(cfg *config.Config, prompts *prompt.Registry, enricher *enrich.Enricher, r *relay.Relay) autopilot.Corrector {
	return autopilot.NewRelayCorrector(prompts, enricher, r, entity.ModelParams{Model: cfg.LLM.DefaultModel})
}

// ProvideSessionRegistry 提供自动质检会话表
func ProvideSessionRegistry(cfg *config.Config, critic autopilot.Critic, corrector autopilot.Corrector) *autopilot.Registry {
	opts := autopilot.OptionsFrom(cfg.Autopilot)
	return autopilot.NewRegistry(func(id string) *autopilot.Session {
		return autopilot.NewSession(id, critic, corrector, opts)
	}, autopilot.WithCapacity(cfg.Autopilot.MaxSessions), autopilot.WithRetention(cfg.Autopilot.SessionRetention))
}

// ProvideMediaResolver 提供媒体占位符解析器
func ProvideMediaResolver(cfg *config.Config, store repository.MediaStore) *media.Resolver {
	return media.NewResolver(store, media.Options{
		MaxAge:          cfg.Media.MaxAge,
		MinPayloadBytes: cfg.Media.MinPayloadBytes,
	})
}
