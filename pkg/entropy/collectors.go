// Package entropy computes scalar health metrics from recent execution
// evidence and keeps a bounded rolling history per metric.
package entropy

import (
	"context"
	"time"

	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
)

const (
	MetricAccuracy   = "accuracy"
	MetricEfficiency = "efficiency"
	MetricCoherence  = "coherence"
)

// Collector computes one metric's current value from recent evidence.
// Collectors are independent; a failing collector never blocks the others.
type Collector interface {
	Metric() string
	Collect(ctx context.Context) (float64, error)
}

// Collectors look at task-kind records only. Execution-level records would
// otherwise double-count every failure and measure whole-run wall clocks
// against per-task targets.
func taskRecord(record *models.TaskRecord) bool {
	return record.TaskKind == evidence.RecordKindTask
}

// AccuracyCollector measures the ratio of successful task records over the
// trailing window. An empty window reads as fully healthy.
type AccuracyCollector struct {
	recorder *evidence.Recorder
	window   time.Duration
}

func NewAccuracyCollector(recorder *evidence.Recorder, window time.Duration) *AccuracyCollector {
	return &AccuracyCollector{recorder: recorder, window: window}
}

func (c *AccuracyCollector) Metric() string {
	return MetricAccuracy
}

func (c *AccuracyCollector) Collect(ctx context.Context) (float64, error) {
	records, err := c.recorder.RecordsMatching(ctx, taskRecord, c.window)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 1.0, nil
	}

	successes := 0

	for _, record := range records {
		if record.Outcome == models.RecordOutcomeSuccess {
			successes++
		}
	}

	return float64(successes) / float64(len(records)), nil
}

// EfficiencyCollector measures the ratio of closed records that finished
// within the target duration.
type EfficiencyCollector struct {
	recorder *evidence.Recorder
	window   time.Duration
	target   time.Duration
}

func NewEfficiencyCollector(recorder *evidence.Recorder, window, target time.Duration) *EfficiencyCollector {
	return &EfficiencyCollector{recorder: recorder, window: window, target: target}
}

func (c *EfficiencyCollector) Metric() string {
	return MetricEfficiency
}

func (c *EfficiencyCollector) Collect(ctx context.Context) (float64, error) {
	records, err := c.recorder.RecordsMatching(ctx, func(record *models.TaskRecord) bool {
		return taskRecord(record) && record.Closed()
	}, c.window)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 1.0, nil
	}

	onTime := 0

	for _, record := range records {
		if record.Duration() <= c.target {
			onTime++
		}
	}

	return float64(onTime) / float64(len(records)), nil
}

// CoherenceCollector measures the ratio of records that were properly closed
// over the trailing window. Incomplete records pull the ratio down.
type CoherenceCollector struct {
	recorder *evidence.Recorder
	window   time.Duration
}

func NewCoherenceCollector(recorder *evidence.Recorder, window time.Duration) *CoherenceCollector {
	return &CoherenceCollector{recorder: recorder, window: window}
}

func (c *CoherenceCollector) Metric() string {
	return MetricCoherence
}

func (c *CoherenceCollector) Collect(ctx context.Context) (float64, error) {
	records, err := c.recorder.RecordsMatching(ctx, taskRecord, c.window)
	if err != nil {
		return 0, err
	}

	if len(records) == 0 {
		return 1.0, nil
	}

	closed := 0

	for _, record := range records {
		if record.Outcome != models.RecordOutcomeIncomplete {
			closed++
		}
	}

	return float64(closed) / float64(len(records)), nil
}
