package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecomputesMean(t *testing.T) {
	reported := 99
	s := QualityScore{
		Performance: 90, Accessibility: 80, Responsiveness: 95, CodeQuality: 70, UserExperience: 100,
		TotalScore: 99, ReportedTotal: &reported, ImprovementPrompt: "tighten contrast",
	}
	s.Normalize(90)

	assert.Equal(t, 87, s.TotalScore)
	assert.False(t, s.Passes(90))
	assert.Equal(t, "tighten contrast", s.ImprovementPrompt)
}

func TestNormalizeDropsPromptWhenPassing(t *testing.T) {
	s := QualityScore{Performance: 95, Accessibility: 95, Responsiveness: 95, CodeQuality: 95, UserExperience: 95, ImprovementPrompt: "x"}
	s.Normalize(90)

	assert.Equal(t, 95, s.TotalScore)
	assert.Empty(t, s.ImprovementPrompt)
}

func TestMeanScoreRounds(t *testing.T) {
	assert.Equal(t, 3, MeanScore([5]int{2, 3, 3, 3, 2})) // 2.6
	assert.Equal(t, 2, MeanScore([5]int{2, 2, 3, 3, 2})) // 2.4
	assert.Equal(t, 100, MeanScore([5]int{100, 100, 100, 100, 100}))
}

func TestEnrichedPromptIsImmutable(t *testing.T) {
	src := []ProtocolID{ProtocolBase, ProtocolExcellence}
	p := NewEnrichedPrompt("text", src, DetectedContext{})
	src[0] = ProtocolGame

	got := p.AppliedProtocols()
	got[1] = ProtocolFintech

	assert.Equal(t, []ProtocolID{ProtocolBase, ProtocolExcellence}, p.AppliedProtocols())
	assert.True(t, p.Has(ProtocolBase))
	assert.False(t, p.Has(ProtocolGame))
}
