// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/application/autopilot"
	"webforge-ai-api/internal/interfaces/http/dto"
	"webforge-ai-api/internal/interfaces/http/middleware"
	apperrors "webforge-ai-api/pkg/errors"
)

// AutopilotHandler 自动质检会话处理器
type AutopilotHandler struct {
	sessions *autopilot.Registry
}

// NewAutopilotHandler 创建处理器
func NewAutopilotHandler(sessions *autopilot.Registry) *AutopilotHandler {
	return &AutopilotHandler{sessions: sessions}
}

// Run 启动评审-纠正循环，以 SSE 推送事件直到终态
// @Summary 启动自动质检
// @Tags Autopilot
// @Accept json
// @Produce text/event-stream
// @Param sid path string true "会话 ID"
// @Param body body dto.AutopilotRunRequest true "待评审代码"
// @Success 200 "SSE stream"
// @Failure 409 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/autopilot/sessions/{sid}/run [post]
func (h *AutopilotHandler) Run(c *gin.Context) {
	var req dto.AutopilotRunRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Error(c, err)
		return
	}

	sid := c.Param("sid")
	middleware.Annotate(c, "session_id", sid)
	started := false
	onEvent := func(e autopilot.Event) {
		if !started {
			sseHeaders(c)
			started = true
		}
		sseEvent(c, string(e.Type), e)
	}

	res, ok, err := h.sessions.Run(c.Request.Context(), sid, req.Code, onEvent)
	if err != nil {
		dto.Error(c, err)
		return
	}
	if !ok {
		dto.Error(c, apperrors.ErrConflict.WithDetail("autopilot is already running for this session"))
		return
	}
	middleware.Annotate(c, "state", string(res.State))
	middleware.Annotate(c, "iterations", res.Iterations)
}

// Stop 请求在下一个循环头停止
// @Summary 停止自动质检
// @Tags Autopilot
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 202 {object} dto.AutopilotResponse
// @Router /v1/autopilot/sessions/{sid}/stop [post]
func (h *AutopilotHandler) Stop(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		dto.Error(c, apperrors.ErrNotFound.WithDetail("autopilot session not found"))
		return
	}
	session.Stop()
	c.JSON(http.StatusAccepted, dto.AutopilotResponse{Success: true, Session: session.Snapshot()})
}

// Get 查询会话快照
// @Summary 查询自动质检会话
// @Tags Autopilot
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.AutopilotResponse
// @Router /v1/autopilot/sessions/{sid} [get]
func (h *AutopilotHandler) Get(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		dto.Error(c, apperrors.ErrNotFound.WithDetail("autopilot session not found"))
		return
	}
	dto.Success(c, dto.AutopilotResponse{Success: true, Session: session.Snapshot()})
}

// Delete 停止并丢弃会话
// @Summary 丢弃自动质检会话
// @Tags Autopilot
// @Param sid path string true "会话 ID"
// @Success 204
// @Router /v1/autopilot/sessions/{sid} [delete]
func (h *AutopilotHandler) Delete(c *gin.Context) {
	if !h.sessions.Remove(c.Param("sid")) {
		dto.Error(c, apperrors.ErrNotFound.WithDetail("autopilot session not found"))
		return
	}
	dto.NoContent(c)
}
