package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClientFromRedis(rdb, "wf"), mr
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestHealthCheck(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, client.HealthCheck(context.Background()))

	mr.Close()
	require.Error(t, client.HealthCheck(context.Background()))
}

func TestKey(t *testing.T) {
	client, _ := newTestClient(t)
	assert.Equal(t, "wf:media:index", client.Key("media", "index"))
	assert.Equal(t, "a:b", NewClientFromRedis(nil, "").Key("a", "b"))
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	client, _ := newTestClient(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewRateLimiter(client, 2, time.Minute)
	l.now = clock.now
	ctx := context.Background()

	d, err := l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	clock.advance(10 * time.Second)
	d, err = l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	// 其他客户端不受影响
	d, err = l.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.advance(51 * time.Second)
	d, err = l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "client-a"))
	assert.Equal(t, "redis", l.Backend())
}

func TestRateLimiterSameMillisecond(t *testing.T) {
	client, _ := newTestClient(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewRateLimiter(client, 3, time.Minute)
	l.now = clock.now

	for range 3 {
		d, err := l.Allow(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRateLimiterConcurrentAtLimit(t *testing.T) {
	client, _ := newTestClient(t)
	fixed := time.Unix(1_700_000_000, 0)
	const limit, workers = 5, 40
	l := NewRateLimiter(client, limit, time.Minute)
	l.now = func() time.Time { return fixed }

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := l.Allow(context.Background(), "shared")
			if assert.NoError(t, err) && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(limit), allowed.Load())
	n, err := client.rdb.ZCard(context.Background(), client.Key("ratelimit", "shared")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(limit), n)
}

func TestMediaStorePutGet(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewMediaStore(client, 0, 0)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	created := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, s.Put(ctx, entity.Asset{Token: "t1", Payload: "data:image/png;base64,AAAA", CreatedAt: created}))

	a, found, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "data:image/png;base64,AAAA", a.Payload)
	assert.True(t, created.Equal(a.CreatedAt))
}

func TestMediaStoreCapacity(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	s := NewMediaStore(client, 1, 0)
	require.NoError(t, s.Put(ctx, entity.Asset{Token: "a", Payload: "x"}))
	require.ErrorIs(t, s.Put(ctx, entity.Asset{Token: "b", Payload: "y"}), repository.ErrStoreFull)
	// 覆盖已有 token 不占新名额
	require.NoError(t, s.Put(ctx, entity.Asset{Token: "a", Payload: "z"}))

	bytesStore := NewMediaStore(NewClientFromRedis(client.Redis(), "other"), 0, 5)
	require.NoError(t, bytesStore.Put(ctx, entity.Asset{Token: "a", Payload: "12345"}))
	require.ErrorIs(t, bytesStore.Put(ctx, entity.Asset{Token: "b", Payload: "6"}), repository.ErrStoreFull)
	require.NoError(t, bytesStore.Put(ctx, entity.Asset{Token: "a", Payload: "123"}))
	require.NoError(t, bytesStore.Put(ctx, entity.Asset{Token: "b", Payload: "45"}))
}

func TestMediaStoreEviction(t *testing.T) {
	client, _ := newTestClient(t)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewMediaStore(client, 2, 0)
	s.now = clock.now
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, entity.Asset{Token: "old", Payload: "aaaa"}))
	clock.advance(2 * time.Hour)
	require.NoError(t, s.Put(ctx, entity.Asset{Token: "new", Payload: "bbbb"}))
	require.ErrorIs(t, s.Put(ctx, entity.Asset{Token: "third", Payload: "c"}), repository.ErrStoreFull)

	n, err := s.EvictOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = s.Get(ctx, "new")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.Put(ctx, entity.Asset{Token: "third", Payload: "c"}))

	used, err := client.Redis().Get(ctx, "wf:media:bytes").Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 5, used)

	n, err = s.EvictOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
