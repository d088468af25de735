package entity

// AutopilotState 自动质检循环状态
type AutopilotState string

const (
	AutopilotIdle       AutopilotState = "idle"
	AutopilotScoring    AutopilotState = "scoring"
	AutopilotCorrecting AutopilotState = "correcting"
	AutopilotConverged  AutopilotState = "converged"
	AutopilotAborted    AutopilotState = "aborted"
)

// IsRunning 是否处于运行中的状态
func (s AutopilotState) IsRunning() bool {
	return s == AutopilotScoring || s == AutopilotCorrecting
}

// AbortReason 中止原因；budget 与错误中止相互区分
type AbortReason string

const (
	AbortNone            AbortReason = ""
	AbortBudget          AbortReason = "budget"
	AbortScoringError    AbortReason = "scoring_error"
	AbortGenerationError AbortReason = "generation_error"
	AbortStopped         AbortReason = "stopped"
	AbortNotApplied      AbortReason = "not_applied"
	AbortCancelled       AbortReason = "cancelled"
)

// AutopilotSnapshot 会话的只读快照
type AutopilotSnapshot struct {
	ID             string         `json:"id"`
	State          AutopilotState `json:"state"`
	AbortReason    AbortReason    `json:"abort_reason,omitempty"`
	IterationCount int            `json:"iteration_count"`
	MaxIterations  int            `json:"max_iterations"`
	CurrentCode    string         `json:"current_code"`
	History        []QualityScore `json:"history"`
	LastError      string         `json:"last_error,omitempty"`
}
