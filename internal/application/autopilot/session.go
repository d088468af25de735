// Package autopilot 评审-纠正循环。每个会话是一个显式对象，由调用方持有并驱动。
package autopilot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"webforge-ai-api/internal/config"
	"webforge-ai-api/internal/domain/entity"
	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/logger"
	"webforge-ai-api/pkg/metrics"
	"webforge-ai-api/pkg/tracer"
)

const (
	DefaultMaxIterations = 3
	DefaultThreshold     = 90
)

// Options 会话参数
type Options struct {
	MaxIterations int
	Threshold     int
	AutoApply     bool
	Delay         time.Duration
}

// OptionsFrom 从应用配置提取
func OptionsFrom(cfg config.AutopilotConfig) Options {
	return Options{
		MaxIterations: cfg.MaxIterations,
		Threshold:     cfg.QualityThreshold,
		AutoApply:     cfg.AutoApply,
		Delay:         cfg.Delay,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	return o
}

// EventType 循环过程中推送给调用方的事件类型
type EventType string

const (
	EventState     EventType = "state"
	EventScore     EventType = "score"
	EventCorrected EventType = "corrected"
	EventWarning   EventType = "warning"
	EventDone      EventType = "done"
)

// Event 循环事件
type Event struct {
	Type      EventType             `json:"type"`
	State     entity.AutopilotState `json:"state"`
	Reason    entity.AbortReason    `json:"reason,omitempty"`
	Iteration int                   `json:"iteration"`
	Score     *entity.QualityScore  `json:"score,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message,omitempty"`
}

// Result 一次运行的终态
type Result struct {
	State      entity.AutopilotState
	Reason     entity.AbortReason
	Iterations int
	Code       string
	Scores     []entity.QualityScore
	Err        error
}

// Session 单个编辑上下文的自动质检状态机
type Session struct {
	id        string
	critic    Critic
	corrector Corrector
	opts      Options

	mu        sync.Mutex
	state     entity.AutopilotState
	reason    entity.AbortReason
	iteration int
	code      string
	history   []entity.QualityScore
	lastErr   string

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce *sync.Once
}

// NewSession 创建空闲会话
func NewSession(id string, critic Critic, corrector Corrector, opts Options) *Session {
	return &Session{
		id:        id,
		critic:    critic,
		corrector: corrector,
		opts:      opts.withDefaults(),
		state:     entity.AutopilotIdle,
		stopCh:    make(chan struct{}),
		stopOnce:  &sync.Once{},
	}
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// Run 从给定代码开始一轮循环，阻塞到终态。会话已在运行时立即返回 false。
func (s *Session) Run(ctx context.Context, code string, onEvent func(Event)) (Result, bool) {
	s.mu.Lock()
	if s.state.IsRunning() {
		s.mu.Unlock()
		return Result{}, false
	}
	s.state = entity.AutopilotScoring
	s.reason = entity.AbortNone
	s.iteration = 0
	s.code = code
	s.history = nil
	s.lastErr = ""
	s.stopped.Store(false)
	s.stopCh = make(chan struct{})
	s.stopOnce = &sync.Once{}
	stopCh := s.stopCh
	s.mu.Unlock()

	if onEvent == nil {
		onEvent = func(Event) {}
	}

	ctx = logger.WithContext(ctx, logger.SessionIDKey, s.id)
	ctx, span := tracer.Start(ctx, "autopilot.run")
	defer span.End()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	res := s.loop(ctx, stopCh, onEvent)

	span.SetAttributes(
		attribute.String("autopilot.state", string(res.State)),
		attribute.String("autopilot.reason", string(res.Reason)),
		attribute.Int("autopilot.iterations", res.Iterations),
	)
	tracer.Fail(span, res.Err)
	metrics.AutopilotOutcomes.WithLabelValues(string(res.State), string(res.Reason)).Inc()
	metrics.AutopilotIterations.Observe(float64(res.Iterations))
	logger.Info(ctx, "autopilot finished",
		"state", res.State,
		"reason", res.Reason,
		"iterations", res.Iterations,
	)

	onEvent(Event{Type: EventDone, State: res.State, Reason: res.Reason, Iteration: res.Iterations, Code: res.Code})
	return res, true
}

func (s *Session) loop(ctx context.Context, stopCh <-chan struct{}, onEvent func(Event)) Result {
	for {
		// 停止信号只在循环头检查，不打断进行中的调用
		if s.stopped.Load() {
			return s.abort(entity.AbortStopped, nil)
		}
		if err := ctx.Err(); err != nil {
			return s.abort(entity.AbortCancelled, err)
		}
		if s.currentIteration() >= s.opts.MaxIterations {
			return s.abort(entity.AbortBudget, nil)
		}

		s.transition(entity.AutopilotScoring)
		onEvent(Event{Type: EventState, State: entity.AutopilotScoring, Iteration: s.currentIteration()})

		score, err := s.critic.Score(ctx, s.currentCode())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.abort(entity.AbortCancelled, err)
			}
			logger.Warn(ctx, "autopilot scoring failed", "error", err)
			onEvent(Event{Type: EventWarning, State: entity.AutopilotAborted, Reason: entity.AbortScoringError, Message: publicMessage(err)})
			return s.abort(entity.AbortScoringError, err)
		}
		s.record(score)
		onEvent(Event{Type: EventScore, State: entity.AutopilotScoring, Iteration: s.currentIteration(), Score: &score})

		if score.Passes(s.opts.Threshold) {
			return s.finish(entity.AutopilotConverged, entity.AbortNone, nil)
		}
		if !s.opts.AutoApply || score.ImprovementPrompt == "" {
			return s.abort(entity.AbortNotApplied, nil)
		}

		s.transition(entity.AutopilotCorrecting)
		onEvent(Event{Type: EventState, State: entity.AutopilotCorrecting, Iteration: s.currentIteration()})

		corrected, err := s.corrector.Correct(ctx, s.currentCode(), score.ImprovementPrompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.abort(entity.AbortCancelled, err)
			}
			logger.Warn(ctx, "autopilot correction failed", "error", err)
			onEvent(Event{Type: EventWarning, State: entity.AutopilotAborted, Reason: entity.AbortGenerationError, Message: publicMessage(err)})
			return s.abort(entity.AbortGenerationError, err)
		}
		iteration := s.applyCorrection(corrected)
		onEvent(Event{Type: EventCorrected, State: entity.AutopilotCorrecting, Iteration: iteration, Code: corrected})

		s.pause(ctx, stopCh)
	}
}

// pause 两次评审之间的强制间隔，Stop 或取消可以提前结束
func (s *Session) pause(ctx context.Context, stopCh <-chan struct{}) {
	if s.opts.Delay <= 0 {
		return
	}
	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stopCh:
	case <-ctx.Done():
	}
}

// Stop 请求在下一个循环头停止；对空闲会话无效果
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsRunning() {
		return
	}
	s.stopped.Store(true)
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Reset 回到 Idle 并清空历史；运行中的会话先被要求停止，返回 false
func (s *Session) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsRunning() {
		s.stopped.Store(true)
		s.stopOnce.Do(func() { close(s.stopCh) })
		return false
	}
	s.state = entity.AutopilotIdle
	s.reason = entity.AbortNone
	s.iteration = 0
	s.code = ""
	s.history = nil
	s.lastErr = ""
	return true
}

// Snapshot 返回当前状态的副本
func (s *Session) Snapshot() entity.AutopilotSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]entity.QualityScore, len(s.history))
	copy(history, s.history)
	return entity.AutopilotSnapshot{
		ID:             s.id,
		State:          s.state,
		AbortReason:    s.reason,
		IterationCount: s.iteration,
		MaxIterations:  s.opts.MaxIterations,
		CurrentCode:    s.code,
		History:        history,
		LastError:      s.lastErr,
	}
}

// IsRunning 会话是否处于 Scoring 或 Correcting
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsRunning()
}

func (s *Session) transition(state entity.AutopilotState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) currentIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

func (s *Session) currentCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *Session) record(score entity.QualityScore) {
	s.mu.Lock()
	s.history = append(s.history, score)
	s.mu.Unlock()
}

func (s *Session) applyCorrection(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.iteration++
	return s.iteration
}

func (s *Session) abort(reason entity.AbortReason, err error) Result {
	return s.finish(entity.AutopilotAborted, reason, err)
}

func (s *Session) finish(state entity.AutopilotState, reason entity.AbortReason, err error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.reason = reason
	if err != nil {
		s.lastErr = publicMessage(err)
	}
	history := make([]entity.QualityScore, len(s.history))
	copy(history, s.history)
	return Result{
		State:      state,
		Reason:     reason,
		Iterations: s.iteration,
		Code:       s.code,
		Scores:     history,
		Err:        err,
	}
}

// publicMessage 只暴露 AppError 的对外信息，内部原因不外泄
func publicMessage(err error) string {
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal error"
}
