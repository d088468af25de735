package autopilot

import (
	"context"
	"fmt"

	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/workflow/node"
	"webforge-ai-api/internal/workflow/prompt"
)

// Corrector 根据改进提示重写代码
type Corrector interface {
	Correct(ctx context.Context, code, improvementPrompt string) (string, error)
}

type enricher interface {
	Enrich(ctx context.Context, userPrompt string) (entity.EnrichedPrompt, error)
}

type generator interface {
	Generate(ctx context.Context, prompt entity.EnrichedPrompt, params entity.ModelParams) (string, error)
}

// RelayCorrector 把纠正提示重新走一遍增强与转发
type RelayCorrector struct {
	prompts  *prompt.Registry
	enricher enricher
	relay    generator
	params   entity.ModelParams
}

// NewRelayCorrector 创建纠正器
func NewRelayCorrector(prompts *prompt.Registry, e enricher, g generator, params entity.ModelParams) *RelayCorrector {
	return &RelayCorrector{prompts: prompts, enricher: e, relay: g, params: params}
}

// BuildCorrectionPrompt 改进提示 + 当前代码 + 保留功能的固定要求
func BuildCorrectionPrompt(ctx context.Context, prompts *prompt.Registry, code, improvementPrompt string) (string, error) {
	tpl, err := prompts.ChatTemplate(prompt.PromptCorrectionV1)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, map[string]any{"improvement": improvementPrompt, "code": code})
	if err != nil {
		return "", fmt.Errorf("render correction prompt: %w", err)
	}
	_, user := prompt.Split(msgs)
	return user, nil
}

func (c *RelayCorrector) Correct(ctx context.Context, code, improvementPrompt string) (string, error) {
	text, err := BuildCorrectionPrompt(ctx, c.prompts, code, improvementPrompt)
	if err != nil {
		return "", err
	}
	enriched, err := c.enricher.Enrich(ctx, text)
	if err != nil {
		return "", err
	}
	out, err := c.relay.Generate(ctx, enriched, c.params)
	if err != nil {
		return "", err
	}
	corrected := node.StripCodeFences(out)
	if corrected == "" {
		return "", fmt.Errorf("correction produced empty code")
	}
	return corrected, nil
}
