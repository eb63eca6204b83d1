package models

import "time"

// RecordOutcome classifies how a recorded unit of work ended.
type RecordOutcome string

const (
	RecordOutcomeSuccess RecordOutcome = "success"
	RecordOutcomeError   RecordOutcome = "error"

	// RecordOutcomeIncomplete marks a begin that never saw its matching
	// end, surfaced by the reconciliation sweep on query.
	RecordOutcomeIncomplete RecordOutcome = "incomplete"
)

// TaskRecord is one span of execution evidence: a timestamped, attributed
// record of a single unit of work. Immutable once closed.
type TaskRecord struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	TaskName    string         `json:"task_name"`
	TaskKind    string         `json:"task_kind"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     time.Time      `json:"ended_at,omitzero"`
	Outcome     RecordOutcome  `json:"outcome"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// Duration returns the wall-clock span of the record, zero while open.
func (r *TaskRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}

	return r.EndedAt.Sub(r.StartedAt)
}

// Closed reports whether the record has seen its matching end.
func (r *TaskRecord) Closed() bool {
	return !r.EndedAt.IsZero()
}
