// Package media 在生成代码中的媒体占位符与内联数据之间互相转换
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/logger"
	"webforge-ai-api/pkg/metrics"
	"webforge-ai-api/pkg/tracer"
)

const (
	DefaultMaxAge          = time.Hour
	DefaultMinPayloadBytes = 1024
)

var (
	// 占位符只匹配自定义协议，展开后的 data URI 不会被再次匹配
	placeholderPattern = regexp.MustCompile(`(compressed-image|researched-image|researched-video)://([^\s"'()<>` + "`" + `]+)`)
	dataURIPattern     = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/]+=*`)

	descriptionFolder = strings.NewReplacer("-", " ", "_", " ")
)

// Options 解析器参数
type Options struct {
	MaxAge          time.Duration
	MinPayloadBytes int
}

// ExpandStats 展开结果统计
type ExpandStats struct {
	Resolved   int                       `json:"resolved"`
	Unresolved []entity.MediaPlaceholder `json:"unresolved,omitempty"`
}

// CompressStats 压缩结果统计
type CompressStats struct {
	Stored     int `json:"stored"`
	Reused     int `json:"reused"`
	Inline     int `json:"inline"`
	BytesSaved int `json:"bytes_saved"`
}

// Resolver 占位符解析器
type Resolver struct {
	store repository.MediaStore
	opts  Options
	group singleflight.Group
	now   func() time.Time
}

// NewResolver 创建解析器
func NewResolver(store repository.MediaStore, opts Options) *Resolver {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.MinPayloadBytes <= 0 {
		opts.MinPayloadBytes = DefaultMinPayloadBytes
	}
	return &Resolver{store: store, opts: opts, now: time.Now}
}

// Expand 把占位符替换为存储的资源；找不到的替换为带描述的可见占位图
func (r *Resolver) Expand(ctx context.Context, html string) string {
	out, _ := r.ExpandWithStats(ctx, html)
	return out
}

// ExpandWithStats 同 Expand，并返回未解析的占位符
func (r *Resolver) ExpandWithStats(ctx context.Context, html string) (string, ExpandStats) {
	ctx, span := tracer.Start(ctx, "media.expand")
	defer span.End()

	var stats ExpandStats
	out := placeholderPattern.ReplaceAllStringFunc(html, func(match string) string {
		p := parsePlaceholder(match)
		asset, found, err := r.store.Get(ctx, storageToken(p))
		if err != nil {
			logger.Warn(ctx, "media lookup failed", "scheme", p.Scheme, "error", err)
		}
		if err == nil && found {
			stats.Resolved++
			metrics.MediaOperations.WithLabelValues("expand", "hit").Inc()
			return asset.Payload
		}
		stats.Unresolved = append(stats.Unresolved, p)
		metrics.MediaOperations.WithLabelValues("expand", "fallback").Inc()
		return Fallback(p)
	})

	span.SetAttributes(
		attribute.Int("media.resolved", stats.Resolved),
		attribute.Int("media.unresolved", len(stats.Unresolved)),
	)
	return out, stats
}

// Compress 把足够大的内联图片换成 compressed-image 占位符。存储写入失败时保留原文，不返回错误。
func (r *Resolver) Compress(ctx context.Context, html string) (string, CompressStats) {
	ctx, span := tracer.Start(ctx, "media.compress")
	defer span.End()

	var stats CompressStats
	out := dataURIPattern.ReplaceAllStringFunc(html, func(literal string) string {
		if len(literal) < r.opts.MinPayloadBytes {
			return literal
		}
		token := compressedToken(literal)
		placeholder := entity.MediaPlaceholder{Scheme: entity.SchemeCompressedImage, Token: token}.URI()

		v, err, _ := r.group.Do(token, func() (any, error) {
			return r.storeLiteral(ctx, token, literal)
		})
		if err != nil {
			stats.Inline++
			metrics.MediaOperations.WithLabelValues("compress", "inline").Inc()
			logger.Warn(ctx, "media payload left inline",
				"token", token,
				"bytes", len(literal),
				"error", apperrors.ErrStorageWrite.WithError(err),
			)
			return literal
		}

		switch v.(string) {
		case "reused":
			stats.Reused++
		default:
			stats.Stored++
		}
		metrics.MediaOperations.WithLabelValues("compress", v.(string)).Inc()
		stats.BytesSaved += len(literal) - len(placeholder)
		return placeholder
	})

	span.SetAttributes(
		attribute.Int("media.stored", stats.Stored),
		attribute.Int("media.reused", stats.Reused),
		attribute.Int("media.inline", stats.Inline),
	)
	return out, stats
}

var errTokenCollision = errors.New("token already holds a different payload")

func (r *Resolver) storeLiteral(ctx context.Context, token, literal string) (string, error) {
	existing, found, err := r.store.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if found {
		if existing.Payload == literal {
			return "reused", nil
		}
		return "", errTokenCollision
	}
	if err := r.put(ctx, entity.Asset{Token: token, Payload: literal, CreatedAt: r.now()}); err != nil {
		return "", err
	}
	return "stored", nil
}

// put 写入失败时淘汰过期条目并重试一次
func (r *Resolver) put(ctx context.Context, asset entity.Asset) error {
	err := r.store.Put(ctx, asset)
	if err == nil {
		return nil
	}

	evicted, evictErr := r.store.EvictOlderThan(ctx, r.opts.MaxAge)
	if evictErr != nil {
		logger.Warn(ctx, "media eviction failed", "store", r.store.Name(), "error", evictErr)
	}
	if evicted > 0 {
		metrics.MediaEvictions.WithLabelValues(r.store.Name()).Add(float64(evicted))
		logger.Info(ctx, "media entries evicted", "store", r.store.Name(), "count", evicted)
	}

	if retryErr := r.store.Put(ctx, asset); retryErr != nil {
		return fmt.Errorf("put after eviction: %w", retryErr)
	}
	return nil
}

// RegisterResearch 为 researched-* 占位符登记资源，返回可直接写入代码的占位符
func (r *Resolver) RegisterResearch(ctx context.Context, scheme entity.MediaScheme, description, payload string) (entity.MediaPlaceholder, error) {
	ctx, span := tracer.Start(ctx, "media.register_research")
	defer span.End()

	if scheme != entity.SchemeResearchedImage && scheme != entity.SchemeResearchedVideo {
		return entity.MediaPlaceholder{}, apperrors.ErrInvalidParam.WithDetail("scheme must be researched-image or researched-video")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return entity.MediaPlaceholder{}, apperrors.ErrInvalidParam.WithDetail("description is required")
	}
	if !isEmbeddable(payload) {
		return entity.MediaPlaceholder{}, apperrors.ErrInvalidParam.WithDetail("payload must be a data URI or an http(s) URL")
	}

	p := entity.MediaPlaceholder{
		Scheme:      scheme,
		Token:       url.PathEscape(description),
		Description: description,
	}
	if err := r.put(ctx, entity.Asset{Token: storageToken(p), Payload: payload, CreatedAt: r.now()}); err != nil {
		return entity.MediaPlaceholder{}, apperrors.ErrStorageWrite.WithError(err)
	}
	metrics.MediaOperations.WithLabelValues("register", "stored").Inc()
	return p, nil
}

// Placeholders 列出文本中的所有占位符
func Placeholders(html string) []entity.MediaPlaceholder {
	matches := placeholderPattern.FindAllString(html, -1)
	out := make([]entity.MediaPlaceholder, 0, len(matches))
	for _, m := range matches {
		out = append(out, parsePlaceholder(m))
	}
	return out
}

func parsePlaceholder(match string) entity.MediaPlaceholder {
	scheme, token, _ := strings.Cut(match, "://")
	p := entity.MediaPlaceholder{Scheme: entity.MediaScheme(scheme), Token: token}
	if p.Scheme != entity.SchemeCompressedImage {
		desc, err := url.PathUnescape(token)
		if err != nil {
			desc = token
		}
		p.Description = strings.TrimSpace(descriptionFolder.Replace(desc))
	}
	return p
}

// storageToken researched-* 按类型与规范化描述派生存储键
func storageToken(p entity.MediaPlaceholder) string {
	if p.Scheme == entity.SchemeCompressedImage {
		return p.Token
	}
	desc := strings.Join(strings.Fields(descriptionFolder.Replace(strings.ToLower(p.Description))), " ")
	sum := sha256.Sum256([]byte(string(p.Scheme) + "\x00" + desc))
	return "research-" + hex.EncodeToString(sum[:12])
}

func compressedToken(literal string) string {
	sum := sha256.Sum256([]byte(literal))
	return "img-" + hex.EncodeToString(sum[:16])
}

func isEmbeddable(payload string) bool {
	if placeholderPattern.MatchString(payload) {
		return false
	}
	return strings.HasPrefix(payload, "data:") ||
		strings.HasPrefix(payload, "https://") ||
		strings.HasPrefix(payload, "http://")
}
