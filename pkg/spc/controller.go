// Package spc implements control-chart evaluation over entropy
// measurements: per-metric control limits, run and trend rules, and
// explicit recalibration from accumulated history.
package spc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regenera-io/regenera/pkg/models"
)

const (
	// runLength is the rule-3 window: this many consecutive points on one
	// side of the center line signal systemic bias.
	runLength = 9

	// trendLength is the rule-4 window: this many strictly monotone points
	// signal a trend.
	trendLength = 6

	observationLimit = 100

	minRecalibrationSamples = 10
)

var (
	ErrMetricNotConfigured = errors.New("no control limit configured for metric")

	// ErrInsufficientHistory indicates a recalibration request over fewer
	// samples than the statistics need to be meaningful.
	ErrInsufficientHistory = errors.New("insufficient history for recalibration")
)

// Controller evaluates measurements against per-metric control limits.
// Limits are static between explicit Recalibrate calls; Check never adjusts
// them. A value exactly at a control or warning limit does not violate —
// only crossing does.
type Controller struct {
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	limits       map[string]models.ControlLimit
	observations map[string][]float64
}

func NewController(logger *slog.Logger, limits []models.ControlLimit) *Controller {
	configured := make(map[string]models.ControlLimit, len(limits))
	for _, limit := range limits {
		configured[limit.Metric] = limit
	}

	return &Controller{
		logger:       logger.With("module", "spc"),
		now:          time.Now,
		limits:       configured,
		observations: make(map[string][]float64),
	}
}

// WithClock overrides the controller's time source. Tests only.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now

	return c
}

// Limits returns the current limit set, keyed by metric.
func (c *Controller) Limits() map[string]models.ControlLimit {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]models.ControlLimit, len(c.limits))
	for metric, limit := range c.limits {
		result[metric] = limit
	}

	return result
}

// Check records the observation and evaluates the control-chart rules in
// order, first match wins:
//
//  1. outside the control limits: critical, action mandatory
//  2. outside the warning limits: warning, action optional
//  3. last 9 points all on one side of the center line: warning, mandatory
//  4. last 6 points strictly monotone: warning, optional
//
// Returns nil when no rule fires.
func (c *Controller) Check(ctx context.Context, metric string, value float64) (*models.ControlViolation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limit, ok := c.limits[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMetricNotConfigured, metric)
	}

	history := append(c.observations[metric], value)
	if len(history) > observationLimit {
		history = history[len(history)-observationLimit:]
	}

	c.observations[metric] = history

	violation := c.evaluate(limit, history, value)
	if violation != nil {
		c.logger.WarnContext(ctx, "Control rule fired",
			"metric", metric,
			"kind", violation.Kind,
			"value", value,
			"severity", violation.Severity,
			"mandatory", violation.ActionMandatory)
	}

	return violation, nil
}

func (c *Controller) evaluate(limit models.ControlLimit, history []float64, value float64) *models.ControlViolation {
	if value < limit.LowerControl || value > limit.UpperControl {
		return c.violation(limit.Metric, models.ViolationKindLimitExceeded, value, models.SeverityCritical, true)
	}

	if value < limit.LowerWarning || value > limit.UpperWarning {
		return c.violation(limit.Metric, models.ViolationKindLimitExceeded, value, models.SeverityWarning, false)
	}

	if oneSidedRun(history, limit.Center) {
		return c.violation(limit.Metric, models.ViolationKindRun, value, models.SeverityWarning, true)
	}

	if monotoneTrend(history) {
		return c.violation(limit.Metric, models.ViolationKindTrend, value, models.SeverityWarning, false)
	}

	return nil
}

func (c *Controller) violation(metric string, kind models.ViolationKind, value float64, severity models.Severity, mandatory bool) *models.ControlViolation {
	return &models.ControlViolation{
		ID:              uuid.New().String(),
		Metric:          metric,
		Kind:            kind,
		Value:           value,
		Severity:        severity,
		ActionMandatory: mandatory,
		ObservedAt:      c.now().UTC(),
	}
}

// Recalibrate recomputes a metric's limits as mean ± 3σ (warning band at
// ± 2σ) over the supplied history. Only called on explicit operator
// trigger; the previous limits stay in force until this returns.
func (c *Controller) Recalibrate(ctx context.Context, metric string, history []models.EntropyMeasurement) (models.ControlLimit, error) {
	c.mu.Lock()
	_, configured := c.limits[metric]
	c.mu.Unlock()

	if !configured {
		return models.ControlLimit{}, fmt.Errorf("%w: %s", ErrMetricNotConfigured, metric)
	}

	if len(history) < minRecalibrationSamples {
		return models.ControlLimit{}, fmt.Errorf("%w: %s has %d samples, need %d",
			ErrInsufficientHistory, metric, len(history), minRecalibrationSamples)
	}

	mean := 0.0
	for _, measurement := range history {
		mean += measurement.Value
	}

	mean /= float64(len(history))

	variance := 0.0
	for _, measurement := range history {
		delta := measurement.Value - mean
		variance += delta * delta
	}

	stddev := math.Sqrt(variance / float64(len(history)-1))

	limit := models.ControlLimit{
		Metric:       metric,
		Center:       mean,
		UpperControl: mean + 3*stddev,
		LowerControl: mean - 3*stddev,
		UpperWarning: mean + 2*stddev,
		LowerWarning: mean - 2*stddev,
	}

	c.mu.Lock()
	previous := c.limits[metric]
	c.limits[metric] = limit
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Control limits recalibrated",
		"metric", metric,
		"samples", len(history),
		"center", limit.Center,
		"upper_control", limit.UpperControl,
		"lower_control", limit.LowerControl,
		"previous_center", previous.Center)

	return limit, nil
}

// oneSidedRun reports whether the last runLength points all sit strictly on
// one side of the center line. A point on the line breaks the run. Never
// fires on a history shorter than runLength.
func oneSidedRun(history []float64, center float64) bool {
	if len(history) < runLength {
		return false
	}

	window := history[len(history)-runLength:]

	above, below := true, true

	for _, point := range window {
		if point <= center {
			above = false
		}

		if point >= center {
			below = false
		}
	}

	return above || below
}

// monotoneTrend reports whether the last trendLength points are strictly
// increasing or strictly decreasing.
func monotoneTrend(history []float64) bool {
	if len(history) < trendLength {
		return false
	}

	window := history[len(history)-trendLength:]

	increasing, decreasing := true, true

	for i := 1; i < len(window); i++ {
		if window[i] <= window[i-1] {
			increasing = false
		}

		if window[i] >= window[i-1] {
			decreasing = false
		}
	}

	return increasing || decreasing
}
