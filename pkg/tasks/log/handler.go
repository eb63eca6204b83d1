// Package log provides the builtin log task handler. It renders a message
// template against the variable bag and writes it to the execution logger.
package log

import (
	"context"
	"log/slog"

	"github.com/regenera-io/regenera/pkg/protocol"
	"github.com/regenera-io/regenera/pkg/template"
)

const TaskName = "log"

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) Execute(ctx context.Context, input protocol.TaskInput) (map[string]any, error) {
	message, _ := input.Config["message"].(string)
	if message == "" {
		message = "Log task executed"
	}

	rendered, err := template.RenderString(message, templateData(input))
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if configured, ok := input.Config["level"].(string); ok {
		switch configured {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	input.Logger.Log(ctx, level, rendered, "node_id", input.NodeID)

	return nil, nil
}

func templateData(input protocol.TaskInput) map[string]any {
	return map[string]any{
		"variables": input.Variables,
		"vars":      input.Variables,
		"execution": map[string]any{
			"id":      input.ExecutionID,
			"process": input.ProcessName,
			"node":    input.NodeID,
		},
	}
}
