// Package classifier 基于关键词表判断提示的领域上下文
package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"webforge-ai-api/internal/domain/entity"
)

// DefaultMobileThreshold 移动端置信度默认阈值
const DefaultMobileThreshold = 70

const maxConfidence = 100

// Classifier 提示分类器，构造后只读，可并发使用
type Classifier struct {
	rules           Rules
	mobileThreshold int
}

// Option 分类器选项
type Option func(*Classifier)

// WithRules 替换关键词表
func WithRules(r Rules) Option {
	return func(c *Classifier) { c.rules = r }
}

// WithMobileThreshold 设置移动端置信度阈值
func WithMobileThreshold(threshold int) Option {
	return func(c *Classifier) {
		if threshold > 0 {
			c.mobileThreshold = threshold
		}
	}
}

// New 创建分类器
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:           DefaultRules(),
		mobileThreshold: DefaultMobileThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rules = foldRules(c.rules)
	return c
}

// MobileThreshold 返回当前阈值
func (c *Classifier) MobileThreshold() int {
	return c.mobileThreshold
}

// Classify 计算提示的上下文标记。纯函数，空提示返回全 false。
func (c *Classifier) Classify(prompt string) entity.DetectedContext {
	text := Normalize(prompt)
	if strings.TrimSpace(text) == "" {
		return entity.DetectedContext{}
	}

	confidence := c.mobileScore(text)
	return entity.DetectedContext{
		IsGame:           matchAny(text, c.rules.Game),
		IsFintech:        matchAny(text, c.rules.Fintech),
		IsFullstack:      c.isFullstack(text),
		IsSingleFile:     matchAny(text, c.rules.SingleFile),
		IsMobileApp:      confidence >= c.mobileThreshold,
		MobileConfidence: confidence,
	}
}

// isFullstack 先检查静态站点覆盖规则，命中直接返回 false
func (c *Classifier) isFullstack(text string) bool {
	if matchAny(text, c.rules.StaticSite) {
		return false
	}
	return matchAny(text, c.rules.Fullstack)
}

func (c *Classifier) mobileScore(text string) int {
	score := 0
	for _, kw := range c.rules.Mobile {
		if match(text, kw) {
			score += kw.Weight
			if score >= maxConfidence {
				return maxConfidence
			}
		}
	}
	return score
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize 转小写并去除重音符号，"Aplicação" -> "aplicacao"
func Normalize(s string) string {
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func foldRules(r Rules) Rules {
	fold := func(in []Keyword) []Keyword {
		out := make([]Keyword, len(in))
		for i, kw := range in {
			kw.Term = Normalize(kw.Term)
			out[i] = kw
		}
		return out
	}
	return Rules{
		Game:       fold(r.Game),
		Fintech:    fold(r.Fintech),
		Fullstack:  fold(r.Fullstack),
		StaticSite: fold(r.StaticSite),
		SingleFile: fold(r.SingleFile),
		Mobile:     fold(r.Mobile),
	}
}

func matchAny(text string, kws []Keyword) bool {
	for _, kw := range kws {
		if match(text, kw) {
			return true
		}
	}
	return false
}

func match(text string, kw Keyword) bool {
	if kw.Term == "" {
		return false
	}
	if !kw.WholeWord {
		return strings.Contains(text, kw.Term)
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], kw.Term)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw.Term)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

// isBoundary 判断 text[i] 处是否为单词边界（越界视为边界）
func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	if r >= 0x80 {
		// 多字节字符的续字节，按字母处理
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
