package llm

import "context"

// RiskLevel is the severity assigned to one analyzed photo.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists all levels from least to most severe.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Severity returns the position of the level in the LOW < MEDIUM < HIGH < CRITICAL
// ordering, or -1 for an unknown level.
func (r RiskLevel) Severity() int {
	for i, l := range RiskLevels {
		if l == r {
			return i
		}
	}
	return -1
}

// IsThreat reports whether the level warrants an alert (HIGH or CRITICAL).
func (r RiskLevel) IsThreat() bool {
	return r == RiskHigh || r == RiskCritical
}

// Action is the recommended remediation for the photo itself.
type Action string

const (
	ActionBlur        Action = "BLUR"
	ActionMovePrivate Action = "PRIVATE"
	ActionNone        Action = "NONE"
)

// Actions lists all valid actions.
var Actions = []Action{ActionBlur, ActionMovePrivate, ActionNone}

// AnalysisResult is the structured risk report for one photo.
type AnalysisResult struct {
	RiskLevel    RiskLevel `json:"riskLevel"`
	RiskSpots    []string  `json:"riskSpots"`
	Scripts      []string  `json:"scripts"`
	Excuses      []string  `json:"excuses"`
	Summary      string    `json:"summary"`
	ActionNeeded Action    `json:"actionNeeded"`
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Analyzer turns one encoded image into a risk report.
type Analyzer interface {
	// Analyze takes an encoded image (a data URL or bare base64) and returns its report.
	Analyze(ctx context.Context, encodedImage string) (*AnalysisResult, error)
}
