package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"webforge-ai-api/internal/domain/repository"
)

// slidingWindowScript 在一次调用内完成清理、计数与写入，多实例并发时不会超额放行。
// 返回 {是否放行, 放行后窗口内计数, 最早一条的毫秒时间戳}。
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	local ts = 0
	if #oldest > 0 then
		ts = tonumber(oldest[2])
	end
	return {0, count, ts}
end

redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window * 2)
return {1, count + 1, 0}
`)

// RateLimiter 滑动窗口限流器，多实例共享计数
type RateLimiter struct {
	client *Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter 创建限流器：每个键在 window 内最多 limit 次
func NewRateLimiter(client *Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RateLimiter) Backend() string { return "redis" }

// Allow 检查是否允许请求（滑动窗口算法）
func (l *RateLimiter) Allow(ctx context.Context, key string) (repository.RateDecision, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", l.limit),
		attribute.Int64("ratelimit.window_ms", l.window.Milliseconds()),
	)
	defer span.End()

	zkey := l.client.Key("ratelimit", key)
	now := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, l.client.rdb, []string{zkey},
		now, l.window.Milliseconds(), l.limit, member).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return repository.RateDecision{}, err
	}
	allowed, count, oldest := res[0] == 1, res[1], res[2]
	span.SetAttributes(
		attribute.Int64("ratelimit.current_count", count),
		attribute.Bool("ratelimit.allowed", allowed),
	)

	if !allowed {
		retryAfter := l.window
		if oldest > 0 {
			retryAfter = time.Duration(oldest+l.window.Milliseconds()-now) * time.Millisecond
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return repository.RateDecision{Allowed: false, Limit: l.limit, RetryAfter: retryAfter}, nil
	}
	return repository.RateDecision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - int(count),
	}, nil
}

// Reset 重置限流计数
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "ratelimit.Reset")
	span.SetAttributes(attribute.String("ratelimit.key", key))
	defer span.End()

	return l.client.rdb.Del(ctx, l.client.Key("ratelimit", key)).Err()
}
