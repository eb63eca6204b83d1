package engine

import (
	"errors"
	"fmt"
)

// Failure kinds recorded on executions that ended in failure.
const (
	FailureKindTaskFailure      = "task_failure"
	FailureKindTimeoutExceeded  = "timeout_exceeded"
	FailureKindTaskNotFound     = "task_not_found"
	FailureKindNoMatchingBranch = "no_matching_branch"
)

var (
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNoMatchingBranch fails an execution whose exclusive gateway has no
	// matching guard and no default edge.
	ErrNoMatchingBranch = errors.New("no outgoing edge matched and no default edge exists")

	ErrNotAwaitingInput = errors.New("execution is not awaiting input")

	ErrExecutionFinished = errors.New("execution already reached a terminal status")
)

// TaskFailureError wraps a handler failure with the node it happened on and
// the failure kind the error-boundary path reports.
type TaskFailureError struct {
	NodeID   string
	TaskName string
	Kind     string
	Err      error
}

func (e *TaskFailureError) Error() string {
	return fmt.Sprintf("task %s at node %s failed (%s): %v", e.TaskName, e.NodeID, e.Kind, e.Err)
}

func (e *TaskFailureError) Unwrap() error {
	return e.Err
}
