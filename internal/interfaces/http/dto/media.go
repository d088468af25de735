package dto

import (
	"webforge-ai-api/internal/domain/entity"
)

// MediaDocumentRequest 待处理的 HTML
type MediaDocumentRequest struct {
	HTML string `json:"html" binding:"required"`
}

// MediaExpandResponse 展开结果
type MediaExpandResponse struct {
	Success    bool                      `json:"success"`
	HTML       string                    `json:"html"`
	Resolved   int                       `json:"resolved"`
	Unresolved []entity.MediaPlaceholder `json:"unresolved,omitempty"`
}

// MediaCompressResponse 压缩结果
type MediaCompressResponse struct {
	Success    bool   `json:"success"`
	HTML       string `json:"html"`
	Stored     int    `json:"stored"`
	Reused     int    `json:"reused"`
	Inline     int    `json:"inline"`
	BytesSaved int    `json:"bytes_saved"`
}

// MediaResearchRequest 登记检索到的媒体
type MediaResearchRequest struct {
	Scheme      entity.MediaScheme `json:"scheme" binding:"required,oneof=researched-image researched-video"`
	Description string             `json:"description" binding:"required,max=512"`
	Payload     string             `json:"payload" binding:"required"`
}

// MediaResearchResponse 登记结果
type MediaResearchResponse struct {
	Success     bool                    `json:"success"`
	Placeholder entity.MediaPlaceholder `json:"placeholder"`
	URI         string                  `json:"uri"`
}
