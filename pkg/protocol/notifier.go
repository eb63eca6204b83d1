package protocol

import (
	"context"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
)

// Alert is the structured payload handed to the escalation sink when a
// violation survives its single regeneration attempt.
type Alert struct {
	Metric            string          `json:"metric"`
	Severity          models.Severity `json:"severity"`
	Violation         string          `json:"violation"`
	AttemptedStrategy string          `json:"attempted_strategy,omitempty"`
	Outcome           string          `json:"outcome"`
	Message           string          `json:"message"`
	RaisedAt          time.Time       `json:"raised_at"`
}

// AlertNotifier delivers escalation alerts to operators. Implementations
// live outside the core; the engine only depends on this contract.
type AlertNotifier interface {
	Notify(ctx context.Context, alert Alert) error
}
