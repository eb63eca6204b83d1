package entropy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
)

const defaultHistoryLimit = 100

// Thresholds classify a measurement's severity at collection time. Metrics
// are ratios where higher is healthier, so severity rises as the value drops.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Report is the composite view over the latest measurements. The composite
// score is for reporting only; violation detection always runs per metric.
type Report struct {
	Metrics     map[string]float64 `json:"metrics"`
	Composite   float64            `json:"composite"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// System runs the registered collectors and keeps a bounded rolling history
// per metric, evicting the oldest measurement past the limit.
type System struct {
	logger       *slog.Logger
	collectors   []Collector
	weights      map[string]float64
	thresholds   map[string]Thresholds
	historyLimit int
	now          func() time.Time

	mu      sync.Mutex
	history map[string][]models.EntropyMeasurement
}

func NewSystem(logger *slog.Logger, collectors []Collector, weights map[string]float64, thresholds map[string]Thresholds) (*System, error) {
	sum := 0.0
	for _, weight := range weights {
		sum += weight
	}

	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("metric weights must sum to 1.0, got %.4f", sum)
	}

	for _, collector := range collectors {
		if _, ok := weights[collector.Metric()]; !ok {
			return nil, fmt.Errorf("no weight configured for metric %s", collector.Metric())
		}
	}

	return &System{
		logger:       logger.With("module", "entropy"),
		collectors:   collectors,
		weights:      weights,
		thresholds:   thresholds,
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
		history:      make(map[string][]models.EntropyMeasurement),
	}, nil
}

// WithClock overrides the system's time source. Tests only.
func (s *System) WithClock(now func() time.Time) *System {
	s.now = now

	return s
}

// CollectAll runs every collector once, classifies and records the
// measurements, and returns the updated history per metric. A collector
// error skips that metric for this cycle without failing the others.
func (s *System) CollectAll(ctx context.Context) (map[string][]models.EntropyMeasurement, error) {
	measurements := make([]models.EntropyMeasurement, 0, len(s.collectors))

	for _, collector := range s.collectors {
		value, err := collector.Collect(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Metric collection failed", "metric", collector.Metric(), "error", err)

			continue
		}

		measurements = append(measurements, models.EntropyMeasurement{
			Metric:     collector.Metric(),
			Value:      value,
			Severity:   s.classify(collector.Metric(), value),
			MeasuredAt: s.now().UTC(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, measurement := range measurements {
		s.appendLocked(measurement)
	}

	return s.snapshotLocked(), nil
}

// History returns a copy of one metric's rolling history, oldest first.
func (s *System) History(metric string) []models.EntropyMeasurement {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.history[metric]
	result := make([]models.EntropyMeasurement, len(stored))
	copy(result, stored)

	return result
}

// Latest returns the most recent measurement for a metric, if any.
func (s *System) Latest(metric string) (models.EntropyMeasurement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.history[metric]
	if len(stored) == 0 {
		return models.EntropyMeasurement{}, false
	}

	return stored[len(stored)-1], true
}

// Composite builds the weighted report over the latest measurement of each
// metric. Metrics with no history yet are omitted from the composite.
func (s *System) Composite() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := Report{
		Metrics:     make(map[string]float64),
		GeneratedAt: s.now().UTC(),
	}

	for metric, stored := range s.history {
		if len(stored) == 0 {
			continue
		}

		latest := stored[len(stored)-1]
		report.Metrics[metric] = latest.Value
		report.Composite += s.weights[metric] * latest.Value
	}

	return report
}

func (s *System) classify(metric string, value float64) models.Severity {
	thresholds, ok := s.thresholds[metric]
	if !ok {
		return models.SeverityNormal
	}

	switch {
	case value < thresholds.Critical:
		return models.SeverityCritical
	case value < thresholds.Warning:
		return models.SeverityWarning
	default:
		return models.SeverityNormal
	}
}

func (s *System) appendLocked(measurement models.EntropyMeasurement) {
	stored := append(s.history[measurement.Metric], measurement)

	if len(stored) > s.historyLimit {
		stored = stored[len(stored)-s.historyLimit:]
	}

	s.history[measurement.Metric] = stored
}

func (s *System) snapshotLocked() map[string][]models.EntropyMeasurement {
	snapshot := make(map[string][]models.EntropyMeasurement, len(s.history))

	for metric, stored := range s.history {
		copied := make([]models.EntropyMeasurement, len(stored))
		copy(copied, stored)
		snapshot[metric] = copied
	}

	return snapshot
}
