package models

import "time"

// RiskTier grades the blast radius of running a remediation process.
type RiskTier int

const (
	RiskTierLow RiskTier = iota
	RiskTierMedium
	RiskTierHigh
)

// String returns the string representation of a risk tier.
func (r RiskTier) String() string {
	switch r {
	case RiskTierLow:
		return "low"
	case RiskTierMedium:
		return "medium"
	case RiskTierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// RegenerationStrategy is a named candidate remediation referencing a
// process to execute. SuccessProbability is a ranking input only, never a
// guarantee.
type RegenerationStrategy struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	TargetMetric       string        `json:"target_metric"`
	ProcessName        string        `json:"process_name"`
	EstimatedDuration  time.Duration `json:"estimated_duration"`
	Risk               RiskTier      `json:"risk"`
	SuccessProbability float64       `json:"success_probability"`
}

// SimulationResult holds the outcome of a sandboxed dry run of a strategy.
type SimulationResult struct {
	StrategyID            string   `json:"strategy_id"`
	PredictedSuccess      float64  `json:"predicted_success"`
	PredictedEntropyDelta float64  `json:"predicted_entropy_delta"`
	SideEffects           []string `json:"side_effects,omitempty"`
}
