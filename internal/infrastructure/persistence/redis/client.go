// Package redis 提供基于 Redis 的限流与媒体存储实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"webforge-ai-api/internal/config"
	"webforge-ai-api/pkg/logger"
)

var tracer = otel.Tracer("redis")

const connectTimeout = 5 * time.Second

// Client 带键前缀的 Redis 连接，限流器与媒体存储共用一条连接池
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient 建立连接并 Ping 一次；启动阶段连不上直接失败，不降级到进程内实现
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	logger.Info(ctx, "redis connected", "addr", addr, "db", cfg.DB, "prefix", cfg.KeyPrefix)
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

// NewClientFromRedis 包装已有连接，测试中配合 miniredis 使用
func NewClientFromRedis(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

// Redis 底层连接
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Key 用冒号拼接前缀与各段，前缀为空时省略
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 供 /ready 使用
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
