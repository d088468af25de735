// Package entity 定义领域实体
package entity

// HistoryRole 对话历史中的角色
type HistoryRole string

const (
	RoleUser  HistoryRole = "user"
	RoleModel HistoryRole = "model"
)

// Part 历史消息中的文本片段
type Part struct {
	Text string `json:"text"`
}

// HistoryMessage 一条对话历史
type HistoryMessage struct {
	Role  HistoryRole `json:"role"`
	Parts []Part      `json:"parts"`
}

// Text 拼接所有片段
func (m HistoryMessage) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0].Text
	}
	n := 0
	for _, p := range m.Parts {
		n += len(p.Text)
	}
	buf := make([]byte, 0, n)
	for _, p := range m.Parts {
		buf = append(buf, p.Text...)
	}
	return string(buf)
}

// ModelParams 传给上游模型的采样参数，nil 表示使用提供商默认值
type ModelParams struct {
	Model           string           `json:"model"`
	History         []HistoryMessage `json:"history,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxOutputTokens *int             `json:"max_output_tokens,omitempty"`
	TopP            *float64         `json:"top_p,omitempty"`
	TopK            *int             `json:"top_k,omitempty"`
}

// GenerationRequest 已校验并清洗过的生成请求
type GenerationRequest struct {
	Prompt          string           `json:"prompt"`
	ModelName       string           `json:"modelName"`
	History         []HistoryMessage `json:"history,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxOutputTokens *int             `json:"maxOutputTokens,omitempty"`
	TopP            *float64         `json:"topP,omitempty"`
	TopK            *int             `json:"topK,omitempty"`
	Stream          bool             `json:"stream"`
}

// Params 提取模型参数
func (r *GenerationRequest) Params() ModelParams {
	return ModelParams{
		Model:           r.ModelName,
		History:         r.History,
		Temperature:     r.Temperature,
		MaxOutputTokens: r.MaxOutputTokens,
		TopP:            r.TopP,
		TopK:            r.TopK,
	}
}
