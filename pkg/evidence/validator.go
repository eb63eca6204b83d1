package evidence

import (
	"context"
	"time"

	"github.com/regenera-io/regenera/pkg/models"
)

// PerformanceReport aggregates durations across an execution's records.
type PerformanceReport struct {
	MaxDuration   time.Duration `json:"max_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	TotalDuration time.Duration `json:"total_duration"`
	WallClock     time.Duration `json:"wall_clock"`

	// ParallelEfficiency is the sum of branch durations over the
	// wall-clock span, capped at 1.0 when branches fully overlap.
	ParallelEfficiency float64 `json:"parallel_efficiency"`
}

// ValidationResult reports how an execution's evidence compares against
// the expected step set.
type ValidationResult struct {
	ExecutionID  string            `json:"execution_id"`
	Completeness float64           `json:"completeness"`
	Missing      []string          `json:"missing,omitempty"`
	Extra        []string          `json:"extra,omitempty"`
	SuccessRate  float64           `json:"success_rate"`
	Performance  PerformanceReport `json:"performance"`
}

// Validator computes completeness and performance verdicts over recorded
// evidence.
type Validator struct {
	recorder *Recorder
}

func NewValidator(recorder *Recorder) *Validator {
	return &Validator{recorder: recorder}
}

// Validate compares the execution's recorded evidence against the expected
// step names. Only task-kind records count: the execution-level record the
// engine opens around the whole run would otherwise show up as an extra
// step and pin the parallel-efficiency ratio at 1.0. Queries never fail on
// incomplete evidence; open records are counted as unsuccessful.
func (v *Validator) Validate(ctx context.Context, executionID string, expectedSteps []string) (*ValidationResult, error) {
	all, err := v.recorder.RecordsFor(ctx, executionID)
	if err != nil {
		return nil, err
	}

	records := make([]*models.TaskRecord, 0, len(all))

	for _, record := range all {
		if record.TaskKind == RecordKindTask {
			records = append(records, record)
		}
	}

	result := &ValidationResult{ExecutionID: executionID}

	observed := make(map[string]bool, len(records))
	successes := 0

	for _, record := range records {
		observed[record.TaskName] = true

		if record.Outcome == models.RecordOutcomeSuccess {
			successes++
		}
	}

	expected := make(map[string]bool, len(expectedSteps))

	matched := 0

	for _, step := range expectedSteps {
		expected[step] = true

		if observed[step] {
			matched++
		} else {
			result.Missing = append(result.Missing, step)
		}
	}

	seenExtra := make(map[string]bool)

	for _, record := range records {
		if !expected[record.TaskName] && !seenExtra[record.TaskName] {
			seenExtra[record.TaskName] = true
			result.Extra = append(result.Extra, record.TaskName)
		}
	}

	if len(expectedSteps) > 0 {
		result.Completeness = float64(matched) / float64(len(expectedSteps))
	}

	if len(records) > 0 {
		result.SuccessRate = float64(successes) / float64(len(records))
	}

	result.Performance = performance(records)

	return result, nil
}

func performance(records []*models.TaskRecord) PerformanceReport {
	var report PerformanceReport

	closed := 0

	var earliest, latest time.Time

	for _, record := range records {
		if !record.Closed() {
			continue
		}

		duration := record.Duration()
		closed++
		report.TotalDuration += duration

		if duration > report.MaxDuration {
			report.MaxDuration = duration
		}

		if earliest.IsZero() || record.StartedAt.Before(earliest) {
			earliest = record.StartedAt
		}

		if record.EndedAt.After(latest) {
			latest = record.EndedAt
		}
	}

	if closed == 0 {
		return report
	}

	report.AvgDuration = report.TotalDuration / time.Duration(closed)
	report.WallClock = latest.Sub(earliest)

	if report.WallClock > 0 {
		report.ParallelEfficiency = min(float64(report.TotalDuration)/float64(report.WallClock), 1.0)
	}

	return report
}
