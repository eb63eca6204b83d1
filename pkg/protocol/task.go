// Package protocol defines the interfaces and contracts implemented by
// external collaborators: task handlers and alert sinks.
package protocol

import (
	"context"
	"log/slog"
)

// TaskInput carries everything a handler may read for one dispatch. The
// variable bag is a snapshot copy; handlers must not retain it beyond the
// call and communicate changes only through the returned mutations.
type TaskInput struct {
	ExecutionID string
	ProcessName string
	NodeID      string
	Variables   map[string]any
	Config      map[string]any
	Logger      *slog.Logger
}

// TaskHandler is an atomic unit of work dispatched by the execution engine.
// On success it returns the set of variable-bag mutations to merge; on
// failure it returns a typed error which the engine routes through the
// node's error boundary, if any.
type TaskHandler interface {
	Execute(ctx context.Context, input TaskInput) (map[string]any, error)
}

// TaskHandlerFunc adapts a plain function to the TaskHandler interface.
type TaskHandlerFunc func(ctx context.Context, input TaskInput) (map[string]any, error)

// Execute implements TaskHandler.
func (f TaskHandlerFunc) Execute(ctx context.Context, input TaskInput) (map[string]any, error) {
	return f(ctx, input)
}
