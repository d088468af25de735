// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"webforge-ai-api/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// HealthChecker 可选依赖的健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type dependency struct {
	name    string
	checker HealthChecker
}

// HealthHandler 健康检查处理器。所有端点都不访问上游模型服务。
type HealthHandler struct {
	version   string
	deps      []dependency
	startedAt time.Time
	now       func() time.Time
}

// HealthOption 健康检查选项
type HealthOption func(*HealthHandler)

// WithDependency 注册就绪检查依赖；checker 为 nil 时该依赖报告为 disabled
func WithDependency(name string, checker HealthChecker) HealthOption {
	return func(h *HealthHandler) {
		h.deps = append(h.deps, dependency{name: name, checker: checker})
	}
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version,omitempty"`
}

// DependencyStatus 单个依赖的就绪状态；Error 只含固定文案，不含地址
type DependencyStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status string                       `json:"status"`
	Checks map[string]*DependencyStatus `json:"checks,omitempty"`
}

// Health 健康检查接口，始终 200
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.startedAt).Seconds(),
		Version:   h.version,
	})
}

// Ready 就绪检查接口，并发检查所有已注册依赖
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]*DependencyStatus, len(h.deps))
	ready := true

	var g errgroup.Group
	for _, dep := range h.deps {
		if dep.checker == nil {
			mu.Lock()
			checks[dep.name] = &DependencyStatus{Status: "disabled"}
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			start := time.Now()
			err := dep.checker.HealthCheck(ctx)
			st := &DependencyStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				logger.Warn(ctx, "readiness check failed", "dependency", dep.name, "error", err)
				st.Status = "error"
				st.Error = dep.name + " health check failed"
			}

			mu.Lock()
			defer mu.Unlock()
			checks[dep.name] = st
			if err != nil {
				ready = false
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
