package repository

import (
	"context"
	"time"

	"webforge-ai-api/internal/domain/entity"
)

// MediaStore 媒体占位符的内容存储，按 token 寻址
type MediaStore interface {
	// Get 未命中时 found 为 false 且 err 为 nil
	Get(ctx context.Context, token string) (asset entity.Asset, found bool, err error)
	// Put 覆盖同 token 的旧值；容量不足返回 ErrStoreFull
	Put(ctx context.Context, asset entity.Asset) error
	// EvictOlderThan 删除创建时间早于 now-age 的条目，返回删除数量
	EvictOlderThan(ctx context.Context, age time.Duration) (int, error)
	// Name 用于指标标签
	Name() string
}
