package models

import "time"

// Severity classifies how far a measurement sits from its healthy baseline.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EntropyMeasurement is a timestamped scalar value for one named metric.
type EntropyMeasurement struct {
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Severity   Severity  `json:"severity"`
	MeasuredAt time.Time `json:"measured_at"`
}

// ControlLimit holds the control-chart thresholds for one metric. Limits
// are static between explicit recalibrations; the controller never adjusts
// them mid-assessment.
type ControlLimit struct {
	Metric       string  `json:"metric"`
	Center       float64 `json:"center"`
	UpperControl float64 `json:"upper_control"`
	LowerControl float64 `json:"lower_control"`
	UpperWarning float64 `json:"upper_warning"`
	LowerWarning float64 `json:"lower_warning"`
}

// ViolationKind names the control-chart rule that fired.
type ViolationKind string

const (
	ViolationKindLimitExceeded ViolationKind = "limit_exceeded"
	ViolationKindRun           ViolationKind = "consecutive_one_side"
	ViolationKindTrend         ViolationKind = "point_trend"
)

// ControlViolation is an immutable record of a control-chart rule firing.
type ControlViolation struct {
	ID              string        `json:"id"`
	Metric          string        `json:"metric"`
	Kind            ViolationKind `json:"kind"`
	Value           float64       `json:"value"`
	Severity        Severity      `json:"severity"`
	ActionMandatory bool          `json:"action_mandatory"`
	ObservedAt      time.Time     `json:"observed_at"`
}
