package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
)

var storeTracer = otel.Tracer("redis.media")

// MediaStore 媒体内容存储：值键保存 payload，有序集合按创建时间索引
type MediaStore struct {
	client     *Client
	maxEntries int
	maxBytes   int64
	now        func() time.Time
}

var _ repository.MediaStore = (*MediaStore)(nil)

// NewMediaStore 创建存储；maxEntries / maxBytes 为 0 表示不限
func NewMediaStore(client *Client, maxEntries int, maxBytes int64) *MediaStore {
	return &MediaStore{
		client:     client,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

func (s *MediaStore) Name() string { return "redis" }

func (s *MediaStore) valueKey(token string) string { return s.client.Key("media", "asset", token) }
func (s *MediaStore) indexKey() string             { return s.client.Key("media", "index") }
func (s *MediaStore) bytesKey() string             { return s.client.Key("media", "bytes") }

// Get 读取资源
func (s *MediaStore) Get(ctx context.Context, token string) (entity.Asset, bool, error) {
	ctx, span := storeTracer.Start(ctx, "media.Get",
		trace.WithAttributes(attribute.String("media.token", token)))
	defer span.End()

	pipe := s.client.rdb.Pipeline()
	valCmd := pipe.Get(ctx, s.valueKey(token))
	scoreCmd := pipe.ZScore(ctx, s.indexKey(), token)
	_, err := pipe.Exec(ctx)
	if err != nil && !isNil(err) {
		span.RecordError(err)
		return entity.Asset{}, false, err
	}

	payload, err := valCmd.Result()
	if isNil(err) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return entity.Asset{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return entity.Asset{}, false, err
	}

	asset := entity.Asset{Token: token, Payload: payload}
	if score, err := scoreCmd.Result(); err == nil {
		asset.CreatedAt = time.UnixMilli(int64(score))
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return asset, true, nil
}

// Put 写入资源；新 token 超出容量时返回 repository.ErrStoreFull
func (s *MediaStore) Put(ctx context.Context, asset entity.Asset) error {
	ctx, span := storeTracer.Start(ctx, "media.Put",
		trace.WithAttributes(
			attribute.String("media.token", asset.Token),
			attribute.Int("media.bytes", len(asset.Payload)),
		))
	defer span.End()

	pipe := s.client.rdb.Pipeline()
	countCmd := pipe.ZCard(ctx, s.indexKey())
	existingCmd := pipe.StrLen(ctx, s.valueKey(asset.Token))
	bytesCmd := pipe.Get(ctx, s.bytesKey())
	if _, err := pipe.Exec(ctx); err != nil && !isNil(err) {
		span.RecordError(err)
		return err
	}

	existing := existingCmd.Val()
	used, _ := strconv.ParseInt(bytesCmd.Val(), 10, 64)
	if existing == 0 && s.maxEntries > 0 && countCmd.Val() >= int64(s.maxEntries) {
		span.SetAttributes(attribute.Bool("media.full", true))
		return repository.ErrStoreFull
	}
	delta := int64(len(asset.Payload)) - existing
	if s.maxBytes > 0 && used+delta > s.maxBytes {
		span.SetAttributes(attribute.Bool("media.full", true))
		return repository.ErrStoreFull
	}

	createdAt := asset.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	// 读后写没有跨进程锁，并发写同一 token 时后写者生效
	tx := s.client.rdb.TxPipeline()
	tx.Set(ctx, s.valueKey(asset.Token), asset.Payload, 0)
	tx.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(createdAt.UnixMilli()), Member: asset.Token})
	tx.IncrBy(ctx, s.bytesKey(), delta)
	if _, err := tx.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write media asset: %w", err)
	}
	return nil
}

// EvictOlderThan 删除早于 now-age 的条目
func (s *MediaStore) EvictOlderThan(ctx context.Context, age time.Duration) (int, error) {
	ctx, span := storeTracer.Start(ctx, "media.EvictOlderThan",
		trace.WithAttributes(attribute.Int64("media.max_age_ms", age.Milliseconds())))
	defer span.End()

	cutoff := s.now().Add(-age).UnixMilli()
	tokens, err := s.client.rdb.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	pipe := s.client.rdb.Pipeline()
	lens := make([]*redis.IntCmd, len(tokens))
	for i, token := range tokens {
		lens[i] = pipe.StrLen(ctx, s.valueKey(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	var freed int64
	keys := make([]string, len(tokens))
	members := make([]any, len(tokens))
	for i, token := range tokens {
		freed += lens[i].Val()
		keys[i] = s.valueKey(token)
		members[i] = token
	}

	tx := s.client.rdb.TxPipeline()
	tx.Del(ctx, keys...)
	tx.ZRem(ctx, s.indexKey(), members...)
	tx.DecrBy(ctx, s.bytesKey(), freed)
	if _, err := tx.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("media.evicted", len(tokens)))
	return len(tokens), nil
}
