// Package enrich 把用户提示包装成分层指令栈
package enrich

import (
	"context"
	"fmt"
	"strings"

	"webforge-ai-api/internal/application/classifier"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/workflow/prompt"
	"webforge-ai-api/pkg/metrics"
)

const blockSeparator = "\n\n---\n\n"

// Enricher 组合 base -> fintech -> game -> fullstack -> mobile -> single-file -> excellence
type Enricher struct {
	classifier *classifier.Classifier
	prompts    *prompt.Registry
}

// NewEnricher 创建增强器
func NewEnricher(c *classifier.Classifier, prompts *prompt.Registry) *Enricher {
	if c == nil {
		c = classifier.New()
	}
	if prompts == nil {
		prompts = prompt.NewRegistry()
	}
	return &Enricher{classifier: c, prompts: prompts}
}

// Protocols 按注入顺序返回命中的指令块
func Protocols(dc entity.DetectedContext) []entity.ProtocolID {
	ids := []entity.ProtocolID{entity.ProtocolBase}
	if dc.IsFintech {
		ids = append(ids, entity.ProtocolFintech)
	}
	if dc.IsGame {
		ids = append(ids, entity.ProtocolGame)
	}
	// fullstack 是兜底特化，游戏与金融优先
	if dc.IsFullstack && !dc.IsGame && !dc.IsFintech {
		ids = append(ids, entity.ProtocolFullstack)
	}
	if dc.IsMobileApp {
		ids = append(ids, entity.ProtocolMobile)
	}
	if dc.IsSingleFile {
		ids = append(ids, entity.ProtocolSingleFile)
	}
	return append(ids, entity.ProtocolExcellence)
}

// Enrich 分类并拼装最终提示；相同输入得到相同输出
func (e *Enricher) Enrich(ctx context.Context, userPrompt string) (entity.EnrichedPrompt, error) {
	dc := e.classifier.Classify(userPrompt)
	ids := Protocols(dc)

	blocks := make([]string, 0, len(ids))
	for _, id := range ids {
		b, err := e.prompts.Block(id)
		if err != nil {
			return entity.EnrichedPrompt{}, err
		}
		blocks = append(blocks, b)
	}

	tpl, err := e.prompts.ChatTemplate(prompt.PromptEnrichWrapperV1)
	if err != nil {
		return entity.EnrichedPrompt{}, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"protocols": strings.Join(blocks, blockSeparator),
		"prompt":    userPrompt,
	})
	if err != nil {
		return entity.EnrichedPrompt{}, fmt.Errorf("render enrich wrapper: %w", err)
	}
	_, text := prompt.Split(msgs)

	for _, id := range ids {
		metrics.EnrichProtocolsApplied.WithLabelValues(string(id)).Inc()
	}
	return entity.NewEnrichedPrompt(text, ids, dc), nil
}
