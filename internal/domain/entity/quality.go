package entity

import "math"

// QualityScore 一次评审的结果
type QualityScore struct {
	Performance    int `json:"performance"`
	Accessibility  int `json:"accessibility"`
	Responsiveness int `json:"responsiveness"`
	CodeQuality    int `json:"codeQuality"`
	UserExperience int `json:"userExperience"`

	// TotalScore 五项均值（四舍五入），始终在本地重算
	TotalScore int `json:"totalScore"`
	// ReportedTotal 评审模型自报的总分，仅用于观测
	ReportedTotal *int `json:"reportedTotal,omitempty"`

	Improvements      []string `json:"improvements,omitempty"`
	ImprovementPrompt string   `json:"improvementPrompt,omitempty"`
}

// SubScores 按固定顺序返回五项子分
func (s QualityScore) SubScores() [5]int {
	return [5]int{s.Performance, s.Accessibility, s.Responsiveness, s.CodeQuality, s.UserExperience}
}

// MeanScore 计算子分均值并四舍五入
func MeanScore(scores [5]int) int {
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

// Normalize 重算总分；达到阈值时丢弃改进提示
func (s *QualityScore) Normalize(threshold int) {
	s.TotalScore = MeanScore(s.SubScores())
	if s.TotalScore >= threshold {
		s.ImprovementPrompt = ""
	}
}

// Passes 是否达到阈值
func (s QualityScore) Passes(threshold int) bool {
	return s.TotalScore >= threshold
}
