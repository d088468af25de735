package entity

// DetectedContext 提示分类结果，每次请求重新计算，不持久化
type DetectedContext struct {
	IsGame       bool `json:"is_game"`
	IsFintech    bool `json:"is_fintech"`
	IsFullstack  bool `json:"is_fullstack"`
	IsSingleFile bool `json:"is_single_file"`
	IsMobileApp  bool `json:"is_mobile_app"`
	// MobileConfidence 移动端关键词得分 (0-100)，IsMobileApp 由它和阈值决定
	MobileConfidence int `json:"mobile_confidence"`
}

// ProtocolID 注入的指令块标识
type ProtocolID string

const (
	ProtocolBase       ProtocolID = "base"
	ProtocolFintech    ProtocolID = "fintech"
	ProtocolGame       ProtocolID = "game"
	ProtocolFullstack  ProtocolID = "fullstack"
	ProtocolMobile     ProtocolID = "mobile"
	ProtocolSingleFile ProtocolID = "single_file"
	ProtocolExcellence ProtocolID = "excellence"
)

// EnrichedPrompt 发往上游的最终提示，构造后不可变
type EnrichedPrompt struct {
	text      string
	protocols []ProtocolID
	context   DetectedContext
}

// NewEnrichedPrompt 构造增强提示
func NewEnrichedPrompt(text string, protocols []ProtocolID, ctx DetectedContext) EnrichedPrompt {
	return EnrichedPrompt{
		text:      text,
		protocols: append([]ProtocolID(nil), protocols...),
		context:   ctx,
	}
}

// Text 返回完整提示文本
func (p EnrichedPrompt) Text() string { return p.text }

// Context 返回分类结果
func (p EnrichedPrompt) Context() DetectedContext { return p.context }

// AppliedProtocols 返回按注入顺序排列的指令块副本
func (p EnrichedPrompt) AppliedProtocols() []ProtocolID {
	return append([]ProtocolID(nil), p.protocols...)
}

// Has 是否注入了指定指令块
func (p EnrichedPrompt) Has(id ProtocolID) bool {
	for _, v := range p.protocols {
		if v == id {
			return true
		}
	}
	return false
}
