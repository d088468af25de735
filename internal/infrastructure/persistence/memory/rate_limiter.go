// Package memory 提供单实例部署用的进程内限流与媒体存储
package memory

import (
	"context"
	"sync"
	"time"

	"webforge-ai-api/internal/domain/repository"
)

// slidingLog 单个键的滑动日志：按时间升序保存窗口内被放行请求的时间戳，最多 limit 个
type slidingLog struct {
	hits     []time.Time
	lastSeen time.Time
}

// prune 丢弃早于 cutoff 的记录
func (w *slidingLog) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// RateLimiter 滑动窗口限流：任意长度为 window 的区间内每个键最多放行 limit 次，
// 与 Redis 实现的有序集合语义一致
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*slidingLog
	limit   int
	window  time.Duration
	now     func() time.Time
	sweepAt time.Time
}

var _ repository.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter 创建进程内限流器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*slidingLog),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *RateLimiter) Backend() string { return "memory" }

func (l *RateLimiter) Allow(_ context.Context, key string) (repository.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.buckets[key]
	if !ok {
		w = &slidingLog{hits: make([]time.Time, 0, l.limit)}
		l.buckets[key] = w
	}
	w.lastSeen = now
	w.prune(now.Add(-l.window))

	if len(w.hits) >= l.limit {
		retry := w.hits[0].Add(l.window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return repository.RateDecision{Allowed: false, Limit: l.limit, RetryAfter: retry}, nil
	}

	w.hits = append(w.hits, now)
	return repository.RateDecision{Allowed: true, Limit: l.limit, Remaining: l.limit - len(w.hits)}, nil
}

// sweep 丢弃超过两个窗口未出现的键，每个窗口最多执行一次
func (l *RateLimiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	l.sweepAt = now.Add(l.window)
	for k, w := range l.buckets {
		if now.Sub(w.lastSeen) > 2*l.window {
			delete(l.buckets, k)
		}
	}
}
