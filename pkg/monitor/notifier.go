package monitor

import (
	"context"
	"log/slog"

	"github.com/regenera-io/regenera/pkg/protocol"
)

// LogNotifier is the default escalation sink: alerts land in the log at
// error level so operators see them without extra infrastructure. The
// matching bus event is published by the regeneration engine itself.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "alerts")}
}

func (n *LogNotifier) Notify(ctx context.Context, alert protocol.Alert) error {
	n.logger.ErrorContext(ctx, "Regeneration escalated to operators",
		"metric", alert.Metric,
		"severity", alert.Severity,
		"violation", alert.Violation,
		"attempted_strategy", alert.AttemptedStrategy,
		"outcome", alert.Outcome,
		"message", alert.Message)

	return nil
}
