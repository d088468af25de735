package memory

import (
	"context"
	"sync"
	"time"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/domain/repository"
)

// MediaStore 有界的进程内媒体存储
type MediaStore struct {
	mu         sync.RWMutex
	assets     map[string]entity.Asset
	bytes      int64
	maxEntries int
	maxBytes   int64
	now        func() time.Time
}

var _ repository.MediaStore = (*MediaStore)(nil)

// NewMediaStore maxEntries / maxBytes 为 0 表示不限
func NewMediaStore(maxEntries int, maxBytes int64) *MediaStore {
	return &MediaStore{
		assets:     make(map[string]entity.Asset),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

func (s *MediaStore) Name() string { return "memory" }

func (s *MediaStore) Get(_ context.Context, token string) (entity.Asset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[token]
	return a, ok, nil
}

func (s *MediaStore) Put(_ context.Context, asset entity.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.assets[asset.Token]
	if !exists && s.maxEntries > 0 && len(s.assets) >= s.maxEntries {
		return repository.ErrStoreFull
	}
	delta := int64(len(asset.Payload)) - int64(len(old.Payload))
	if s.maxBytes > 0 && s.bytes+delta > s.maxBytes {
		return repository.ErrStoreFull
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = s.now()
	}
	s.assets[asset.Token] = asset
	s.bytes += delta
	return nil
}

func (s *MediaStore) EvictOlderThan(_ context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-age)
	n := 0
	for token, a := range s.assets {
		if a.CreatedAt.Before(cutoff) {
			s.bytes -= int64(len(a.Payload))
			delete(s.assets, token)
			n++
		}
	}
	return n, nil
}

// Len 当前条目数
func (s *MediaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}
