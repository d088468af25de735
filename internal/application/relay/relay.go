// Package relay 把增强后的提示转发给上游模型，负责有界重试与流式输出
package relay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/infrastructure/llm"
	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/logger"
	"webforge-ai-api/pkg/metrics"
	"webforge-ai-api/pkg/tracer"
)

// ProviderSource 按模型名取得提供商
type ProviderSource interface {
	ForModel(ctx context.Context, model string) (llm.Provider, error)
}

// Config 重试与超时配置
type Config struct {
	MaxAttempts    int
	Initial        time.Duration
	Max            time.Duration
	Multiplier     float64
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
}

// ConfigFrom 从应用配置提取
func ConfigFrom(cfg config.LLMConfig) Config {
	return Config{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		Initial:        cfg.Retry.Initial,
		Max:            cfg.Retry.Max,
		Multiplier:     cfg.Retry.Multiplier,
		RequestTimeout: cfg.RequestTimeout,
		StreamTimeout:  cfg.StreamTimeout,
	}
}

// Relay 上游转发器。瞬时错误在首个 token 之前按指数退避重试，鉴权与配置错误立即返回。
type Relay struct {
	providers ProviderSource
	cfg       Config
}

// New 创建转发器
func New(providers ProviderSource, cfg Config) *Relay {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Initial <= 0 {
		cfg.Initial = 500 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = 8 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Relay{providers: providers, cfg: cfg}
}

// Generate 非流式调用，返回完整文本
func (r *Relay) Generate(ctx context.Context, prompt entity.EnrichedPrompt, params entity.ModelParams) (string, error) {
	ctx, span := tracer.Start(ctx, "relay.generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", params.Model))

	text, err := retry(ctx, r, params.Model, func(ctx context.Context, p llm.Provider) (string, error) {
		callCtx := ctx
		if r.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.RequestTimeout)
			defer cancel()
		}
		resp, err := p.Generate(callCtx, llm.Request{Prompt: prompt.Text(), Params: params})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	})
	if err != nil {
		tracer.Fail(span, err)
		return "", err
	}
	return text, nil
}

// opened 已经取到首个分片的上游流
type opened struct {
	reader llm.ChunkReader
	first  string
	eof    bool
}

// Stream 打开流式调用。返回时首个分片已经到达（或上游正常结束），之后的错误不再重试。
func (r *Relay) Stream(ctx context.Context, prompt entity.EnrichedPrompt, params entity.ModelParams) (*TokenStream, error) {
	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if r.cfg.StreamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, r.cfg.StreamTimeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}

	o, err := retry(streamCtx, r, params.Model, func(ctx context.Context, p llm.Provider) (opened, error) {
		reader, err := p.Stream(ctx, llm.Request{Prompt: prompt.Text(), Params: params})
		if err != nil {
			return opened{}, err
		}
		first, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return opened{reader: reader, eof: true}, nil
		}
		if err != nil {
			reader.Close()
			return opened{}, err
		}
		return opened{reader: reader, first: first}, nil
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return newTokenStream(streamCtx, cancel, o, params.Model), nil
}

// retry 执行带退避的调用；只有 UpstreamTransient 会重试
func retry[T any](ctx context.Context, r *Relay, model string, call func(context.Context, llm.Provider) (T, error)) (T, error) {
	var zero T

	eb := &backoff.ExponentialBackOff{
		InitialInterval:     r.cfg.Initial,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          r.cfg.Multiplier,
		MaxInterval:         r.cfg.Max,
	}

	attempt := 0
	op := func() (T, error) {
		attempt++
		p, err := r.providers.ForModel(ctx, model)
		if err != nil {
			if !apperrors.IsAppError(err) {
				err = apperrors.ErrUpstreamAuth.WithDetail("provider configuration error").WithError(err)
			}
			return zero, backoff.Permanent(err)
		}
		res, err := call(ctx, p)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || !apperrors.IsRetryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RelayRetries.WithLabelValues(model).Inc()
			logger.Warn(ctx, "upstream call failed, retrying",
				"model", model,
				"attempt", attempt,
				"next_in", next.String(),
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if errors.Is(err, context.DeadlineExceeded) && !apperrors.IsAppError(err) {
			err = apperrors.ErrUpstreamTransient.WithDetail("upstream call timed out").WithError(err)
		}
		return zero, err
	}
	return res, nil
}
