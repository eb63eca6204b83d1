// Package registry provides the name-to-handler dispatch table for service
// tasks. Registration happens once at startup; afterwards the table is
// read-only, so concurrent dispatch needs no locking.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/regenera-io/regenera/pkg/protocol"
)

// ErrTaskNotFound indicates a dispatch against an unregistered task name.
var ErrTaskNotFound = errors.New("task not found")

type Registry struct {
	logger   *slog.Logger
	handlers map[string]protocol.TaskHandler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[string]protocol.TaskHandler),
	}
}

// Register installs a handler under the given task name. Registering the
// same name twice is a startup misconfiguration and fails loudly.
func (r *Registry) Register(name string, handler protocol.TaskHandler) error {
	if name == "" {
		return errors.New("task name is required")
	}

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	r.handlers[name] = handler
	r.logger.Info("Registered task handler", "task", name)

	return nil
}

// Dispatch runs the named handler with the given input.
func (r *Registry) Dispatch(ctx context.Context, name string, input protocol.TaskInput) (map[string]any, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	return handler.Execute(ctx, input)
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// HealthCheck reports whether the registry holds at least one handler.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.handlers) == 0 {
		return "Task registry is empty", false
	}

	return fmt.Sprintf("Task registry holds %d handlers", len(r.handlers)), true
}
