package node

import (
	"strings"
	"unicode/utf8"
)

func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// StripCodeFences 返回第一个 ``` 围栏内的内容；没有围栏时返回去掉首尾空白的原文。
// 未闭合的围栏（流被截断）取起始围栏之后的全部内容。
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	open := strings.Index(trimmed, "```")
	if open < 0 {
		return trimmed
	}
	body := trimmed[open+3:]
	// 跳过语言标记，例如 ```html
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(body[:nl]); !strings.ContainsAny(lang, " <{") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
