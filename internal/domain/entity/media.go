package entity

import "time"

// MediaScheme 占位符 URI 协议
type MediaScheme string

const (
	SchemeResearchedImage MediaScheme = "researched-image"
	SchemeResearchedVideo MediaScheme = "researched-video"
	SchemeCompressedImage MediaScheme = "compressed-image"
)

// MediaPlaceholder 生成代码中引用的未解析媒体
type MediaPlaceholder struct {
	Scheme      MediaScheme `json:"scheme"`
	Token       string      `json:"token"`
	Description string      `json:"description,omitempty"`
}

// URI 还原为占位符文本
func (p MediaPlaceholder) URI() string {
	return string(p.Scheme) + "://" + p.Token
}

// Asset 内容存储中的一条记录
type Asset struct {
	Token     string    `json:"token"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
