package repository

import (
	"context"
	"time"
)

// RateDecision 一次限流判定
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter 被拒绝时距离窗口释放一个名额的时间
	RetryAfter time.Duration
}

// RateLimiter 按客户端键计数的限流器
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
	// Backend 用于指标标签
	Backend() string
}
