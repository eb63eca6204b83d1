// Package monitor runs the periodic assessment loop: collect entropy
// measurements, check them against the control limits, and hand violations
// to the regeneration engine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/regenera-io/regenera/pkg/entropy"
	"github.com/regenera-io/regenera/pkg/eventbus"
	"github.com/regenera-io/regenera/pkg/events"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/regeneration"
	"github.com/regenera-io/regenera/pkg/spc"
)

const violationLimit = 100

type Config struct {
	Entropy     *entropy.System
	Controller  *spc.Controller
	Regenerator *regeneration.Engine

	// Schedule is a standard cron expression driving assessments.
	Schedule string

	// ActOnOptional also remediates violations whose action is advisory.
	// Mandatory violations are always handed to the regeneration engine.
	ActOnOptional bool

	// Publisher is optional; without one, violations are only logged.
	Publisher eventbus.EventPublisher
}

// Monitor is the control loop. Assessments never overlap; a pass still
// running when the next tick fires wins and the tick is skipped.
type Monitor struct {
	logger *slog.Logger
	config Config
	cron   *cron.Cron

	mu         sync.Mutex
	violations []*models.ControlViolation
}

func NewMonitor(logger *slog.Logger, config Config) (*Monitor, error) {
	if config.Entropy == nil || config.Controller == nil || config.Regenerator == nil {
		return nil, errors.New("entropy system, controller and regenerator are required")
	}

	if config.Schedule == "" {
		config.Schedule = "@every 1m"
	}

	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid assessment schedule %q: %w", config.Schedule, err)
	}

	return &Monitor{
		logger: logger.With("module", "monitor"),
		config: config,
	}, nil
}

// Start schedules periodic assessments until Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := m.cron.AddFunc(m.config.Schedule, func() {
		if err := m.Assess(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Assessment pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule assessment: %w", err)
	}

	m.cron.Start()
	m.logger.InfoContext(ctx, "Assessment loop started", "schedule", m.config.Schedule)

	return nil
}

// Stop halts the schedule and waits for a running assessment to finish.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}

	m.logger.InfoContext(ctx, "Assessment loop stopped")

	return nil
}

// Assess runs one full pass: collect every metric, check each against its
// control limits, and remediate what the policy requires.
func (m *Monitor) Assess(ctx context.Context) error {
	collected, err := m.config.Entropy.CollectAll(ctx)
	if err != nil {
		return fmt.Errorf("entropy collection failed: %w", err)
	}

	for metric, history := range collected {
		if len(history) == 0 {
			continue
		}

		latest := history[len(history)-1]

		violation, err := m.config.Controller.Check(ctx, metric, latest.Value)
		if err != nil {
			if errors.Is(err, spc.ErrMetricNotConfigured) {
				m.logger.DebugContext(ctx, "Metric has no control limits, skipping", "metric", metric)

				continue
			}

			return fmt.Errorf("control check failed for %s: %w", metric, err)
		}

		if violation == nil {
			continue
		}

		m.record(ctx, violation)

		if !violation.ActionMandatory && !m.config.ActOnOptional {
			m.logger.InfoContext(ctx, "Advisory violation noted, not remediating",
				"metric", metric, "violation_id", violation.ID)

			continue
		}

		if err := m.config.Regenerator.HandleViolation(ctx, violation); err != nil {
			m.logger.ErrorContext(ctx, "Remediation failed",
				"metric", metric, "violation_id", violation.ID, "error", err)
		}
	}

	return nil
}

// NewPostCheck builds the re-measurement used after a remediation run: a
// fresh collection pass followed by a control check of the target metric.
func NewPostCheck(system *entropy.System, controller *spc.Controller) regeneration.PostCheck {
	return func(ctx context.Context, metric string) (*models.ControlViolation, error) {
		if _, err := system.CollectAll(ctx); err != nil {
			return nil, err
		}

		latest, ok := system.Latest(metric)
		if !ok {
			return nil, nil
		}

		return controller.Check(ctx, metric, latest.Value)
	}
}

// Violations returns the observed violations, oldest first.
func (m *Monitor) Violations() []*models.ControlViolation {
	m.mu.Lock()
	defer m.mu.Unlock()

	violations := make([]*models.ControlViolation, len(m.violations))
	copy(violations, m.violations)

	return violations
}

func (m *Monitor) record(ctx context.Context, violation *models.ControlViolation) {
	m.logger.WarnContext(ctx, "Control violation detected",
		"metric", violation.Metric,
		"kind", violation.Kind,
		"value", violation.Value,
		"severity", violation.Severity,
		"mandatory", violation.ActionMandatory)

	m.mu.Lock()
	m.violations = append(m.violations, violation)

	if len(m.violations) > violationLimit {
		m.violations = m.violations[len(m.violations)-violationLimit:]
	}
	m.mu.Unlock()

	if m.config.Publisher == nil {
		return
	}

	event := events.ControlViolationDetected{
		BaseEvent: events.NewBaseEvent(events.ControlViolationEvent, ""),
		Violation: *violation,
	}

	if err := m.config.Publisher.Publish(ctx, violation.Metric, event); err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish violation event",
			"violation_id", violation.ID, "error", err)
	}
}
