package models

import "time"

// ExecutionStatus defines the lifecycle states of a process execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning       ExecutionStatus = "running"
	ExecutionStatusCompleted     ExecutionStatus = "completed"
	ExecutionStatusFailed        ExecutionStatus = "failed"
	ExecutionStatusAborted       ExecutionStatus = "aborted"
	ExecutionStatusAwaitingInput ExecutionStatus = "awaiting_input"
)

// Terminal reports whether the status is final. AwaitingInput is a
// suspension state, not a terminal one.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusAborted:
		return true
	default:
		return false
	}
}

// Token marks a unit of control flow position within a running execution.
// More than one token exists only inside a parallel region.
type Token struct {
	ID     string `json:"id"`
	NodeID string `json:"node_id"`
}

// ExecutionContext holds the mutable state of one process execution. It is
// owned and mutated exclusively by the execution engine; everything else
// sees read-only snapshots.
type ExecutionContext struct {
	ID          string          `json:"id"`
	ProcessName string          `json:"process_name"`
	Status      ExecutionStatus `json:"status"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Tokens      []*Token        `json:"tokens,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`

	// FailureKind and FailureDetail carry the first fatal error for
	// executions that ended in ExecutionStatusFailed.
	FailureKind   string `json:"failure_kind,omitempty"`
	FailureDetail string `json:"failure_detail,omitempty"`
}

// SnapshotVariables returns a shallow copy of the variable bag. Task
// handlers receive copies so they cannot retain the live bag across calls.
func (e *ExecutionContext) SnapshotVariables() map[string]any {
	snapshot := make(map[string]any, len(e.Variables))
	for k, v := range e.Variables {
		snapshot[k] = v
	}

	return snapshot
}

// ApplyMutations merges handler-returned mutations into the variable bag,
// last writer wins per key.
func (e *ExecutionContext) ApplyMutations(mutations map[string]any) {
	if e.Variables == nil {
		e.Variables = make(map[string]any, len(mutations))
	}

	for k, v := range mutations {
		e.Variables[k] = v
	}
}
