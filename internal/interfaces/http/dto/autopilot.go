package dto

import (
	"webforge-ai-api/internal/domain/entity"
)

// AutopilotRunRequest 启动自动质检
type AutopilotRunRequest struct {
	Code string `json:"code" binding:"required"`
}

// AutopilotResponse 会话快照
type AutopilotResponse struct {
	Success bool                     `json:"success"`
	Session entity.AutopilotSnapshot `json:"session"`
}
