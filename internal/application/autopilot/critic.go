package autopilot

import (
	"context"
	"fmt"
	"time"

	"webforge-ai-api/internal/application/relay"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/infrastructure/llm"
	"webforge-ai-api/internal/workflow/node"
	"webforge-ai-api/internal/workflow/prompt"
	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/metrics"
)

// Critic 对代码打分
type Critic interface {
	Score(ctx context.Context, code string) (entity.QualityScore, error)
}

// LLMCritic 通过一次模型调用完成评审。评审不重试：过期的分数比没有分数更糟。
type LLMCritic struct {
	providers ProviderSource
	prompts   *prompt.Registry
	model     string
	threshold int
	timeout   time.Duration
}

// ProviderSource 按模型名取得提供商
type ProviderSource = relay.ProviderSource

// NewLLMCritic 创建评审器
func NewLLMCritic(providers ProviderSource, prompts *prompt.Registry, model string, threshold int, timeout time.Duration) *LLMCritic {
	return &LLMCritic{
		providers: providers,
		prompts:   prompts,
		model:     model,
		threshold: threshold,
		timeout:   timeout,
	}
}

func (c *LLMCritic) Score(ctx context.Context, code string) (entity.QualityScore, error) {
	tpl, err := c.prompts.ChatTemplate(prompt.PromptCritiqueV1)
	if err != nil {
		return entity.QualityScore{}, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{"code": code, "threshold": c.threshold})
	if err != nil {
		return entity.QualityScore{}, fmt.Errorf("render critique prompt: %w", err)
	}
	system, user := prompt.Split(msgs)

	p, err := c.providers.ForModel(ctx, c.model)
	if err != nil {
		return entity.QualityScore{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := p.Generate(ctx, llm.Request{
		System: system,
		Prompt: user,
		Params: entity.ModelParams{Model: c.model},
	})
	if err != nil {
		return entity.QualityScore{}, err
	}

	score, err := ParseScore(resp.Text, c.threshold)
	if err != nil {
		return entity.QualityScore{}, err
	}
	metrics.QualityScore.Observe(float64(score.TotalScore))
	return score, nil
}

// rawScore 评审模型输出；指针区分缺失字段
type rawScore struct {
	Performance       *int     `json:"performance"`
	Accessibility     *int     `json:"accessibility"`
	Responsiveness    *int     `json:"responsiveness"`
	CodeQuality       *int     `json:"codeQuality"`
	UserExperience    *int     `json:"userExperience"`
	TotalScore        *int     `json:"totalScore"`
	Improvements      []string `json:"improvements"`
	ImprovementPrompt string   `json:"improvementPrompt"`
}

// ParseScore 严格解析评审输出：五项子分必须齐全且在 0..100，总分在本地按均值重算
func ParseScore(text string, threshold int) (entity.QualityScore, error) {
	var raw rawScore
	if err := node.DecodeLenient(text, &raw); err != nil {
		return entity.QualityScore{}, apperrors.ErrScoringParse.WithDetail("critique response is not valid JSON").WithError(err)
	}

	fields := []struct {
		name string
		v    *int
	}{
		{"performance", raw.Performance},
		{"accessibility", raw.Accessibility},
		{"responsiveness", raw.Responsiveness},
		{"codeQuality", raw.CodeQuality},
		{"userExperience", raw.UserExperience},
	}
	for _, f := range fields {
		if f.v == nil {
			return entity.QualityScore{}, apperrors.ErrScoringParse.WithDetail("critique response is missing " + f.name)
		}
		if *f.v < 0 || *f.v > 100 {
			return entity.QualityScore{}, apperrors.ErrScoringParse.WithDetail(fmt.Sprintf("%s=%d is outside 0..100", f.name, *f.v))
		}
	}

	score := entity.QualityScore{
		Performance:       *raw.Performance,
		Accessibility:     *raw.Accessibility,
		Responsiveness:    *raw.Responsiveness,
		CodeQuality:       *raw.CodeQuality,
		UserExperience:    *raw.UserExperience,
		ReportedTotal:     raw.TotalScore,
		Improvements:      raw.Improvements,
		ImprovementPrompt: raw.ImprovementPrompt,
	}
	score.Normalize(threshold)
	return score, nil
}
