package validation

import (
	"strings"
	"unicode"
)

// maxWhitespaceRun 连续空白的保留上限
const maxWhitespaceRun = 10

// Sanitize 去除 ASCII 控制字符（保留 \t \n \r），把不少于 10 个的连续空白截为前 10 个，再去掉首尾空白
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	run := 0
	for _, r := range s {
		if isStrippedControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			run++
			if run > maxWhitespaceRun {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func isStrippedControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r < 0x20 || r == 0x7f
}
