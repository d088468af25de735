package media

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/workflow/node"
)

const (
	maxFallbackLabel = 80

	fallbackPrefix = "data:image/svg+xml;charset=utf-8,"
)

// Fallback 未解析占位符的可见替代：内联 SVG data URI，文字包含描述，
// data-token 保留原始令牌，便于直接从 HTML 定位缺失的素材。
// SVG 按路径段转义，"/" 被编码，输出不会再匹配任何占位符协议。
func Fallback(p entity.MediaPlaceholder) string {
	label := p.Description
	if label == "" {
		label = "missing image " + p.Token
	}
	label = html.EscapeString(node.TruncateByRunes(label, maxFallbackLabel))
	token := html.EscapeString(node.TruncateByRunes(p.Token, maxFallbackLabel))

	var svg string
	switch p.Scheme {
	case entity.SchemeResearchedVideo:
		svg = fmt.Sprintf(videoPoster, label, token)
	default:
		svg = fmt.Sprintf(imageCard, label, token)
	}
	return fallbackPrefix + url.PathEscape(strings.TrimSpace(svg))
}

const imageCard = `
<svg xmlns="http://www.w3.org/2000/svg" width="640" height="360" viewBox="0 0 640 360" role="img" aria-label="%[1]s" data-token="%[2]s">
<rect width="640" height="360" fill="#e5e7eb" stroke="#9ca3af" stroke-dasharray="8 6"/>
<text x="320" y="172" font-family="sans-serif" font-size="18" fill="#374151" text-anchor="middle">Image unavailable</text>
<text x="320" y="202" font-family="sans-serif" font-size="14" fill="#6b7280" text-anchor="middle">%[1]s</text>
</svg>`

const videoPoster = `
<svg xmlns="http://www.w3.org/2000/svg" width="640" height="360" viewBox="0 0 640 360" role="img" aria-label="%[1]s" data-token="%[2]s">
<rect width="640" height="360" fill="#111827"/>
<polygon points="296,140 296,220 356,180" fill="#f9fafb" opacity="0.8"/>
<text x="320" y="262" font-family="sans-serif" font-size="14" fill="#d1d5db" text-anchor="middle">Video unavailable: %[1]s</text>
</svg>`
