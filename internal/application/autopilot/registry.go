package autopilot

import (
	"context"
	"sync"
	"time"

	apperrors "webforge-ai-api/pkg/errors"
)

const (
	DefaultMaxSessions = 1024
	DefaultRetention   = 30 * time.Minute
)

// ErrSessionCapacity 所有会话槽位都在运行中
var ErrSessionCapacity = apperrors.ErrRateLimited.WithDetail("too many running autopilot sessions")

type registryEntry struct {
	session *Session
	touched time.Time
}

// Registry 按会话 ID 持有会话。结束（收敛、中止、停止）后的会话保留 retention 供查询，
// 之后在下一次创建时被清理；总数超过上限时先淘汰最久未访问的非运行会话。
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*registryEntry
	newFn       func(id string) *Session
	maxSessions int
	retention   time.Duration
	now         func() time.Time
}

// RegistryOption 注册表选项
type RegistryOption func(*Registry)

// WithCapacity 会话数上限，<=0 使用默认值
func WithCapacity(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// WithRetention 结束会话的保留时长，<=0 使用默认值
func WithRetention(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewRegistry 创建注册表；newFn 负责构造新会话
func NewRegistry(newFn func(id string) *Session, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:    make(map[string]*registryEntry),
		newFn:       newFn,
		maxSessions: DefaultMaxSessions,
		retention:   DefaultRetention,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate 返回已有会话，不存在时创建；槽位全部被运行中的会话占用时返回 ErrSessionCapacity
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.sessions[id]; ok {
		e.touched = now
		return e.session, nil
	}

	r.sweepLocked(now)
	if len(r.sessions) >= r.maxSessions && !r.evictOldestLocked() {
		return nil, ErrSessionCapacity
	}
	s := r.newFn(id)
	r.sessions[id] = &registryEntry{session: s, touched: now}
	return s, nil
}

// Run 取得或创建会话并运行到终态，结束后刷新访问时间，保留期从结束时算起
func (r *Registry) Run(ctx context.Context, id, code string, onEvent func(Event)) (Result, bool, error) {
	s, err := r.GetOrCreate(id)
	if err != nil {
		return Result{}, false, err
	}
	res, ok := s.Run(ctx, code, onEvent)
	r.touch(id, s)
	return res, ok, nil
}

// Get 查找会话
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.touched = r.now()
	return e.session, true
}

// Remove 停止并丢弃会话
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.session.Stop()
	}
	return ok
}

// StopAll 关闭服务时要求所有会话停止
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		sessions = append(sessions, e.session)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
	}
}

// Len 当前会话数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) touch(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 运行期间可能已被删除或替换
	if e, ok := r.sessions[id]; ok && e.session == s {
		e.touched = r.now()
	}
}

// sweepLocked 丢弃超过保留期的非运行会话
func (r *Registry) sweepLocked(now time.Time) {
	for id, e := range r.sessions {
		if now.Sub(e.touched) > r.retention && !e.session.IsRunning() {
			delete(r.sessions, id)
		}
	}
}

// evictOldestLocked 淘汰最久未访问的非运行会话
func (r *Registry) evictOldestLocked() bool {
	var oldestID string
	var oldest time.Time
	for id, e := range r.sessions {
		if e.session.IsRunning() {
			continue
		}
		if oldestID == "" || e.touched.Before(oldest) {
			oldestID, oldest = id, e.touched
		}
	}
	if oldestID == "" {
		return false
	}
	delete(r.sessions, oldestID)
	return true
}
