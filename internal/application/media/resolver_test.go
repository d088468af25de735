package media

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
	"webforge-ai-api/internal/infrastructure/persistence/memory"
	apperrors "webforge-ai-api/pkg/errors"
)

func bigDataURI(fill byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(fill), 2048)))
}

func decodeFallback(t *testing.T, uri string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(uri, fallbackPrefix), uri)
	raw, err := url.PathUnescape(strings.TrimPrefix(uri, fallbackPrefix))
	require.NoError(t, err)
	return raw
}

func TestCompressThenExpandRoundTrips(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})
	ctx := context.Background()

	img := bigDataURI('a')
	small := "data:image/gif;base64,R0lGODlhAQABAAAAACw="
	html := `<img src="` + img + `"><img src="` + img + `"><img src="` + small + `">`

	compressed, stats := r.Compress(ctx, html)
	assert.NotContains(t, compressed, img)
	assert.Contains(t, compressed, small, "payloads under the threshold stay inline")
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Reused)
	assert.Positive(t, stats.BytesSaved)
	assert.Len(t, Placeholders(compressed), 2)

	assert.Equal(t, html, r.Expand(ctx, compressed))
}

func TestCompressReusesExistingToken(t *testing.T) {
	store := memory.NewMediaStore(0, 0)
	r := NewResolver(store, Options{})
	ctx := context.Background()

	first, _ := r.Compress(ctx, bigDataURI('b'))
	second, stats := r.Compress(ctx, "<p>"+bigDataURI('b')+"</p>")
	assert.Equal(t, "<p>"+first+"</p>", second)
	assert.Equal(t, 1, stats.Reused)
	assert.Equal(t, 1, store.Len())
}

func TestExpandIsIdempotent(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})
	ctx := context.Background()

	compressed, _ := r.Compress(ctx, `<img src="`+bigDataURI('c')+`">`)
	html := compressed + `<img src="researched-image://sunset-over-lisbon"><img src="compressed-image://img-missing">`

	once := r.Expand(ctx, html)
	assert.Equal(t, once, r.Expand(ctx, once))
	assert.Empty(t, Placeholders(once))
}

func TestExpandFallbackCarriesDescription(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})

	out, stats := r.ExpandWithStats(context.Background(),
		`<img src="researched-image://family%20dinner%20%3Cfood%3E"><video src="researched-video://ocean_waves"></video>`)
	require.Len(t, stats.Unresolved, 2)
	assert.Zero(t, stats.Resolved)
	assert.Equal(t, "family dinner <food>", stats.Unresolved[0].Description)

	uris := strings.Split(strings.TrimPrefix(out, `<img src="`), `"`)
	svg := decodeFallback(t, uris[0])
	assert.Contains(t, svg, "family dinner &lt;food&gt;")

	video := decodeFallback(t, Fallback(stats.Unresolved[1]))
	assert.Contains(t, video, "Video unavailable: ocean waves")
}

func TestExpandFallbackIsReadableInMarkup(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})
	ctx := context.Background()

	out := r.Expand(ctx, `<img src="researched-image://sunset-beach">`)
	assert.Contains(t, out, "sunset-beach")
	assert.NotContains(t, out, ";base64,")
	assert.Empty(t, Placeholders(out))
	assert.Equal(t, out, r.Expand(ctx, out))
}

func TestRegisterResearch(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})
	ctx := context.Background()

	p, err := r.RegisterResearch(ctx, entity.SchemeResearchedImage, "Sunset over Lisbon", "https://cdn.example.com/sunset.jpg")
	require.NoError(t, err)
	assert.Equal(t, "researched-image://Sunset%20over%20Lisbon", p.URI())

	// 描述规范化：大小写、连字符与空白不影响命中
	out := r.Expand(ctx, `<img src="researched-image://sunset-over-lisbon"> <img src="`+p.URI()+`">`)
	assert.Equal(t, `<img src="https://cdn.example.com/sunset.jpg"> <img src="https://cdn.example.com/sunset.jpg">`, out)

	// 图片与视频分别存储
	video := r.Expand(ctx, "researched-video://sunset-over-lisbon")
	assert.True(t, strings.HasPrefix(video, fallbackPrefix))
}

func TestRegisterResearchRejectsBadInput(t *testing.T) {
	r := NewResolver(memory.NewMediaStore(0, 0), Options{})
	ctx := context.Background()

	cases := []struct {
		scheme  entity.MediaScheme
		desc    string
		payload string
	}{
		{entity.SchemeCompressedImage, "x", "https://a"},
		{entity.SchemeResearchedImage, "  ", "https://a"},
		{entity.SchemeResearchedImage, "x", "javascript:alert(1)"},
		{entity.SchemeResearchedImage, "x", "researched-image://loop"},
	}
	for _, c := range cases {
		_, err := r.RegisterResearch(ctx, c.scheme, c.desc, c.payload)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidParam))
	}
}

// flakyStore 在成功 EvictOlderThan 之前拒绝写入
type flakyStore struct {
	*memory.MediaStore
	mu        sync.Mutex
	full      bool
	alwaysErr bool
	evictions int
}

func (s *flakyStore) Put(ctx context.Context, a entity.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alwaysErr || s.full {
		return repository.ErrStoreFull
	}
	return s.MediaStore.Put(ctx, a)
}

func (s *flakyStore) EvictOlderThan(ctx context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	s.evictions++
	s.full = false
	s.mu.Unlock()
	return s.MediaStore.EvictOlderThan(ctx, age)
}

func TestCompressEvictsThenRetriesOnce(t *testing.T) {
	store := &flakyStore{MediaStore: memory.NewMediaStore(0, 0), full: true}
	r := NewResolver(store, Options{})

	out, stats := r.Compress(context.Background(), bigDataURI('d'))
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, store.evictions)
	assert.True(t, strings.HasPrefix(out, "compressed-image://img-"))
}

func TestCompressLeavesLiteralWhenStoreStaysFull(t *testing.T) {
	store := &flakyStore{MediaStore: memory.NewMediaStore(0, 0), alwaysErr: true}
	r := NewResolver(store, Options{})

	img := bigDataURI('e')
	out, stats := r.Compress(context.Background(), img)
	assert.Equal(t, img, out)
	assert.Equal(t, 1, stats.Inline)
	assert.Equal(t, 1, store.evictions)
}

func TestRegisterResearchSurfacesStorageError(t *testing.T) {
	store := &flakyStore{MediaStore: memory.NewMediaStore(0, 0), alwaysErr: true}
	r := NewResolver(store, Options{})

	_, err := r.RegisterResearch(context.Background(), entity.SchemeResearchedImage, "x", "data:image/png;base64,AA==")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStorageWrite))
}

func TestCompressSkipsCollidingToken(t *testing.T) {
	store := memory.NewMediaStore(0, 0)
	r := NewResolver(store, Options{})
	img := bigDataURI('f')
	require.NoError(t, store.Put(context.Background(), entity.Asset{Token: compressedToken(img), Payload: "something else"}))

	out, stats := r.Compress(context.Background(), img)
	assert.Equal(t, img, out)
	assert.Equal(t, 1, stats.Inline)
}
