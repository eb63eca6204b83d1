// Package events defines the typed lifecycle events published on the bus:
// execution transitions, task evidence, control violations, and
// regeneration outcomes.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/regenera-io/regenera/pkg/models"
)

type EventType string

// Topic is the single stream carrying all lifecycle events.
const Topic = "regenera.events"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionAbortedEvent   EventType = "execution.aborted"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Task evidence events.
	TaskFinishedEvent EventType = "task.finished"
	TaskFailedEvent   EventType = "task.failed"

	// Control loop events.
	ControlViolationEvent          EventType = "control.violation"
	RegenerationStartedEvent       EventType = "regeneration.started"
	RegenerationCompletedEvent     EventType = "regeneration.completed"
	RegenerationEscalatedEvent     EventType = "regeneration.escalated"
	ControlLimitsRecalibratedEvent EventType = "control.limits_recalibrated"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ProcessName string         `json:"process_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, processName string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ProcessName: processName,
		Metadata:    make(map[string]any),
	}
}

// ExecutionRequested asks the engine to start an execution of the named
// process. Anything with bus access may publish it.
type ExecutionRequested struct {
	BaseEvent

	Variables map[string]any `json:"variables,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Variables   map[string]any `json:"variables,omitempty"`
	Initiator   string         `json:"initiator,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	DurationMs  int64          `json:"duration_ms"`
	Result      map[string]any `json:"result,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	FailureKind   string `json:"failure_kind"`
	FailureDetail string `json:"failure_detail"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionAborted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionAborted) GetType() EventType {
	return ExecutionAbortedEvent
}

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type TaskFinished struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	TaskName    string        `json:"task_name"`
	Duration    time.Duration `json:"duration"`
}

func (e TaskFinished) GetType() EventType {
	return TaskFinishedEvent
}

type TaskFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	TaskName    string        `json:"task_name"`
	FailureKind string        `json:"failure_kind"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e TaskFailed) GetType() EventType {
	return TaskFailedEvent
}

type ControlViolationDetected struct {
	BaseEvent

	Violation models.ControlViolation `json:"violation"`
}

func (e ControlViolationDetected) GetType() EventType {
	return ControlViolationEvent
}

type RegenerationStarted struct {
	BaseEvent

	ViolationID string `json:"violation_id"`
	StrategyID  string `json:"strategy_id"`
	Metric      string `json:"metric"`
	ExecutionID string `json:"execution_id"`
}

func (e RegenerationStarted) GetType() EventType {
	return RegenerationStartedEvent
}

type RegenerationCompleted struct {
	BaseEvent

	ViolationID string `json:"violation_id"`
	StrategyID  string `json:"strategy_id"`
	Metric      string `json:"metric"`
	ExecutionID string `json:"execution_id"`
	Resolved    bool   `json:"resolved"`
}

func (e RegenerationCompleted) GetType() EventType {
	return RegenerationCompletedEvent
}

type RegenerationEscalated struct {
	BaseEvent

	ViolationID string          `json:"violation_id"`
	StrategyID  string          `json:"strategy_id,omitempty"`
	Metric      string          `json:"metric"`
	Severity    models.Severity `json:"severity"`
	Reason      string          `json:"reason"`
}

func (e RegenerationEscalated) GetType() EventType {
	return RegenerationEscalatedEvent
}

type ControlLimitsRecalibrated struct {
	BaseEvent

	Metric string              `json:"metric"`
	Limits models.ControlLimit `json:"limits"`
}

func (e ControlLimitsRecalibrated) GetType() EventType {
	return ControlLimitsRecalibratedEvent
}
