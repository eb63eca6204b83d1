// Package cmd provides common initialization helpers for the command-line
// binaries.
package cmd

import (
	"context"
	"log/slog"

	"github.com/regenera-io/regenera/pkg/protocol"
	"github.com/regenera-io/regenera/pkg/registry"
	"github.com/regenera-io/regenera/pkg/tasks/httprequest"
	logtask "github.com/regenera-io/regenera/pkg/tasks/log"
	"github.com/regenera-io/regenera/pkg/tasks/transform"
)

// NewRegistry builds the task registry with the builtin handlers installed.
// Registration failures are startup misconfigurations and panic.
func NewRegistry(ctx context.Context, logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	builtins := map[string]protocol.TaskHandler{
		logtask.TaskName:     logtask.New(),
		httprequest.TaskName: httprequest.New(),
		transform.TaskName:   transform.New(),
	}

	for name, handler := range builtins {
		if err := reg.Register(name, handler); err != nil {
			panic(err)
		}
	}

	logger.InfoContext(ctx, "Task registry initialized", "handlers", reg.Names())

	return reg
}
