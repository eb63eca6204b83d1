package regeneration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regenera-io/regenera/pkg/eventbus"
	"github.com/regenera-io/regenera/pkg/events"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/protocol"
)

// ProcessExecutor runs a remediation process to its terminal status. The
// orchestration engine satisfies this.
type ProcessExecutor interface {
	Execute(ctx context.Context, processName string, variables map[string]any) (*models.ExecutionContext, error)
}

// PostCheck re-measures a metric after a remediation run and reports
// whether it is still in violation.
type PostCheck func(ctx context.Context, metric string) (*models.ControlViolation, error)

// LimitSource exposes the current control limits; the statistical process
// controller satisfies this.
type LimitSource interface {
	Limits() map[string]models.ControlLimit
}

// Engine turns a control violation into at most one remediation run. An
// unresolved violation escalates to the alert notifier instead of being
// retried, so a failing remediation can never loop.
type Engine struct {
	logger    *slog.Logger
	catalog   *Catalog
	simulator *Simulator
	executor  ProcessExecutor
	notifier  protocol.AlertNotifier
	limits    LimitSource
	postCheck PostCheck
	publisher eventbus.EventPublisher
	now       func() time.Time

	mu        sync.Mutex
	attempted map[string]bool
}

type Config struct {
	Catalog   *Catalog
	Simulator *Simulator
	Executor  ProcessExecutor
	Notifier  protocol.AlertNotifier
	Limits    LimitSource
	PostCheck PostCheck

	// Publisher is optional; without one, outcomes are only logged and
	// notified.
	Publisher eventbus.EventPublisher
}

func NewEngine(logger *slog.Logger, config Config) (*Engine, error) {
	if config.Catalog == nil || config.Executor == nil || config.Notifier == nil || config.PostCheck == nil || config.Limits == nil {
		return nil, fmt.Errorf("catalog, executor, notifier, limits and post-check are required")
	}

	return &Engine{
		logger:    logger.With("module", "regeneration"),
		catalog:   config.Catalog,
		simulator: config.Simulator,
		executor:  config.Executor,
		notifier:  config.Notifier,
		limits:    config.Limits,
		postCheck: config.PostCheck,
		publisher: config.Publisher,
		now:       time.Now,
		attempted: make(map[string]bool),
	}, nil
}

// Propose returns the candidate strategies for the violation, best first.
func (e *Engine) Propose(violation *models.ControlViolation) []models.RegenerationStrategy {
	return rank(e.catalog.For(violation.Metric), violation.Severity)
}

// Simulate dry-runs one candidate against recorded evidence. Without a
// configured simulator the catalog estimate is passed through unchanged.
func (e *Engine) Simulate(ctx context.Context, strategy models.RegenerationStrategy, violation *models.ControlViolation) (models.SimulationResult, error) {
	if e.simulator == nil {
		return models.SimulationResult{
			StrategyID:       strategy.ID,
			PredictedSuccess: strategy.SuccessProbability,
		}, nil
	}

	limit := e.limits.Limits()[violation.Metric]

	return e.simulator.Simulate(ctx, strategy, violation, limit)
}

// Select picks the best strategy after substituting each candidate's
// success estimate with its simulated prediction.
func (e *Engine) Select(strategies []models.RegenerationStrategy, simulations []models.SimulationResult, severity models.Severity) (models.RegenerationStrategy, bool) {
	if len(strategies) == 0 {
		return models.RegenerationStrategy{}, false
	}

	predicted := make(map[string]float64, len(simulations))
	for _, simulation := range simulations {
		predicted[simulation.StrategyID] = simulation.PredictedSuccess
	}

	adjusted := make([]models.RegenerationStrategy, len(strategies))
	copy(adjusted, strategies)

	for i := range adjusted {
		if p, ok := predicted[adjusted[i].ID]; ok {
			adjusted[i].SuccessProbability = p
		}
	}

	ranked := rank(adjusted, severity)

	// Return the original entry so the catalog estimate survives.
	for _, strategy := range strategies {
		if strategy.ID == ranked[0].ID {
			return strategy, true
		}
	}

	return ranked[0], true
}

// HandleViolation runs the full remediation path: propose, simulate,
// select, execute, post-check. Each violation gets exactly one attempt.
func (e *Engine) HandleViolation(ctx context.Context, violation *models.ControlViolation) error {
	e.mu.Lock()

	if e.attempted[violation.ID] {
		e.mu.Unlock()

		return e.escalate(ctx, violation, "", "already_attempted", "violation already had its regeneration attempt")
	}

	e.attempted[violation.ID] = true
	e.mu.Unlock()

	strategies := e.Propose(violation)
	if len(strategies) == 0 {
		return e.escalate(ctx, violation, "", "no_strategy", fmt.Sprintf("no remediation strategy registered for metric %s", violation.Metric))
	}

	simulations := make([]models.SimulationResult, 0, len(strategies))

	for _, strategy := range strategies {
		simulation, err := e.Simulate(ctx, strategy, violation)
		if err != nil {
			e.logger.ErrorContext(ctx, "Simulation failed", "strategy_id", strategy.ID, "error", err)

			continue
		}

		simulations = append(simulations, simulation)
	}

	selected, ok := e.Select(strategies, simulations, violation.Severity)
	if !ok {
		return e.escalate(ctx, violation, "", "no_strategy", "no strategy survived selection")
	}

	e.logger.InfoContext(ctx, "Starting regeneration",
		"violation_id", violation.ID,
		"metric", violation.Metric,
		"strategy", selected.Name,
		"process", selected.ProcessName)

	execution, err := e.executor.Execute(ctx, selected.ProcessName, map[string]any{
		"violation_id":  violation.ID,
		"target_metric": violation.Metric,
		"strategy_id":   selected.ID,
	})
	if err != nil {
		return e.escalate(ctx, violation, selected.ID, "execution_error", err.Error())
	}

	e.publishStarted(ctx, violation, selected, execution.ID)

	if execution.Status != models.ExecutionStatusCompleted {
		return e.escalate(ctx, violation, selected.ID, string(execution.Status),
			fmt.Sprintf("remediation process %s finished with status %s", selected.ProcessName, execution.Status))
	}

	remaining, err := e.postCheck(ctx, violation.Metric)
	if err != nil {
		return e.escalate(ctx, violation, selected.ID, "post_check_error", err.Error())
	}

	if remaining != nil {
		e.publishCompleted(ctx, violation, selected, execution.ID, false)

		return e.escalate(ctx, violation, selected.ID, "unresolved",
			fmt.Sprintf("metric %s still in violation after remediation (value %.4f)", remaining.Metric, remaining.Value))
	}

	e.logger.InfoContext(ctx, "Regeneration resolved violation",
		"violation_id", violation.ID,
		"metric", violation.Metric,
		"strategy", selected.Name)

	e.publishCompleted(ctx, violation, selected, execution.ID, true)

	return nil
}

func (e *Engine) escalate(ctx context.Context, violation *models.ControlViolation, strategyID, outcome, message string) error {
	e.logger.WarnContext(ctx, "Escalating violation",
		"violation_id", violation.ID,
		"metric", violation.Metric,
		"strategy_id", strategyID,
		"outcome", outcome)

	if e.publisher != nil {
		event := events.RegenerationEscalated{
			BaseEvent:   events.NewBaseEvent(events.RegenerationEscalatedEvent, ""),
			ViolationID: violation.ID,
			StrategyID:  strategyID,
			Metric:      violation.Metric,
			Severity:    violation.Severity,
			Reason:      message,
		}

		if err := e.publisher.Publish(ctx, violation.Metric, event); err != nil {
			e.logger.ErrorContext(ctx, "Failed to publish escalation event", "error", err)
		}
	}

	alert := protocol.Alert{
		Metric:            violation.Metric,
		Severity:          violation.Severity,
		Violation:         string(violation.Kind),
		AttemptedStrategy: strategyID,
		Outcome:           outcome,
		Message:           message,
		RaisedAt:          e.now().UTC(),
	}

	if err := e.notifier.Notify(ctx, alert); err != nil {
		return fmt.Errorf("failed to deliver escalation alert: %w", err)
	}

	return nil
}

func (e *Engine) publishStarted(ctx context.Context, violation *models.ControlViolation, strategy models.RegenerationStrategy, executionID string) {
	if e.publisher == nil {
		return
	}

	event := events.RegenerationStarted{
		BaseEvent:   events.NewBaseEvent(events.RegenerationStartedEvent, strategy.ProcessName),
		ViolationID: violation.ID,
		StrategyID:  strategy.ID,
		Metric:      violation.Metric,
		ExecutionID: executionID,
	}

	if err := e.publisher.Publish(ctx, violation.Metric, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish regeneration event", "error", err)
	}
}

func (e *Engine) publishCompleted(ctx context.Context, violation *models.ControlViolation, strategy models.RegenerationStrategy, executionID string, resolved bool) {
	if e.publisher == nil {
		return
	}

	event := events.RegenerationCompleted{
		BaseEvent:   events.NewBaseEvent(events.RegenerationCompletedEvent, strategy.ProcessName),
		ViolationID: violation.ID,
		StrategyID:  strategy.ID,
		Metric:      violation.Metric,
		ExecutionID: executionID,
		Resolved:    resolved,
	}

	if err := e.publisher.Publish(ctx, violation.Metric, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish regeneration event", "error", err)
	}
}
