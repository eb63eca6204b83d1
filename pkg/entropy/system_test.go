package entropy

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
)

type stubCollector struct {
	metric string
	values []float64
	err    error
	calls  int
}

func (c *stubCollector) Metric() string {
	return c.metric
}

func (c *stubCollector) Collect(context.Context) (float64, error) {
	if c.err != nil {
		return 0, c.err
	}

	value := c.values[min(c.calls, len(c.values)-1)]
	c.calls++

	return value, nil
}

func newTestSystem(t *testing.T, collectors ...Collector) *System {
	t.Helper()

	weights := make(map[string]float64, len(collectors))
	for _, collector := range collectors {
		weights[collector.Metric()] = 1.0 / float64(len(collectors))
	}

	thresholds := map[string]Thresholds{
		MetricAccuracy:   {Warning: 0.9, Critical: 0.7},
		MetricEfficiency: {Warning: 0.9, Critical: 0.7},
		MetricCoherence:  {Warning: 0.9, Critical: 0.7},
	}

	system, err := NewSystem(slog.Default(), collectors, weights, thresholds)
	require.NoError(t, err)

	return system
}

func TestNewSystemRejectsBadWeights(t *testing.T) {
	collector := &stubCollector{metric: MetricAccuracy, values: []float64{1.0}}

	_, err := NewSystem(slog.Default(), []Collector{collector}, map[string]float64{MetricAccuracy: 0.5}, nil)
	assert.ErrorContains(t, err, "must sum to 1.0")

	_, err = NewSystem(slog.Default(), []Collector{collector}, map[string]float64{MetricEfficiency: 1.0}, nil)
	assert.ErrorContains(t, err, "no weight configured")
}

func TestCollectAllClassifiesSeverity(t *testing.T) {
	system := newTestSystem(t,
		&stubCollector{metric: MetricAccuracy, values: []float64{0.95}},
		&stubCollector{metric: MetricEfficiency, values: []float64{0.8}},
		&stubCollector{metric: MetricCoherence, values: []float64{0.5}},
	)

	history, err := system.CollectAll(t.Context())
	require.NoError(t, err)

	assert.Equal(t, models.SeverityNormal, history[MetricAccuracy][0].Severity)
	assert.Equal(t, models.SeverityWarning, history[MetricEfficiency][0].Severity)
	assert.Equal(t, models.SeverityCritical, history[MetricCoherence][0].Severity)
}

func TestCollectAllSkipsFailingCollector(t *testing.T) {
	healthy := &stubCollector{metric: MetricAccuracy, values: []float64{1.0}}
	broken := &stubCollector{metric: MetricEfficiency, err: errors.New("window query failed")}

	system := newTestSystem(t, healthy, broken)

	history, err := system.CollectAll(t.Context())
	require.NoError(t, err)

	assert.Len(t, history[MetricAccuracy], 1)
	assert.Empty(t, history[MetricEfficiency])
}

func TestHistoryEvictsOldestPastLimit(t *testing.T) {
	collector := &stubCollector{metric: MetricAccuracy, values: []float64{1.0}}
	system := newTestSystem(t, collector)
	system.historyLimit = 5

	for i := 0; i < 8; i++ {
		collector.values = []float64{float64(i)}
		collector.calls = 0

		_, err := system.CollectAll(t.Context())
		require.NoError(t, err)
	}

	history := system.History(MetricAccuracy)
	require.Len(t, history, 5)
	assert.InDelta(t, 3.0, history[0].Value, 1e-9)
	assert.InDelta(t, 7.0, history[4].Value, 1e-9)
}

func TestCompositeWeightedSum(t *testing.T) {
	accuracy := &stubCollector{metric: MetricAccuracy, values: []float64{1.0}}
	efficiency := &stubCollector{metric: MetricEfficiency, values: []float64{0.5}}

	weights := map[string]float64{MetricAccuracy: 0.75, MetricEfficiency: 0.25}

	system, err := NewSystem(slog.Default(), []Collector{accuracy, efficiency}, weights, nil)
	require.NoError(t, err)

	_, err = system.CollectAll(t.Context())
	require.NoError(t, err)

	report := system.Composite()
	assert.InDelta(t, 0.75*1.0+0.25*0.5, report.Composite, 1e-9)
	assert.InDelta(t, 1.0, report.Metrics[MetricAccuracy], 1e-9)
}

func TestCollectorsOverEvidenceWindow(t *testing.T) {
	recorder, clock := newEvidenceFixture(t)
	ctx := t.Context()

	record := func(name string, duration time.Duration, outcome models.RecordOutcome) {
		handle, err := recorder.Begin(ctx, "exec-1", name, "task", nil)
		require.NoError(t, err)

		clock.advance(duration)
		require.NoError(t, recorder.End(ctx, handle, outcome, nil, nil))
	}

	record("fast_ok", 100*time.Millisecond, models.RecordOutcomeSuccess)
	record("slow_ok", 2*time.Second, models.RecordOutcomeSuccess)
	record("fast_err", 100*time.Millisecond, models.RecordOutcomeError)

	// One record left open: counted against coherence, not efficiency.
	_, err := recorder.Begin(ctx, "exec-1", "dangling", "task", nil)
	require.NoError(t, err)

	accuracy, err := NewAccuracyCollector(recorder, time.Hour).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, accuracy, 1e-9)

	efficiency, err := NewEfficiencyCollector(recorder, time.Hour, time.Second).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, efficiency, 1e-9)

	coherence, err := NewCoherenceCollector(recorder, time.Hour).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, coherence, 1e-9)
}

func TestCollectorsIgnoreExecutionLevelRecords(t *testing.T) {
	recorder, clock := newEvidenceFixture(t)
	ctx := t.Context()

	// A failed run's process-level record spans the whole wall clock. Only
	// the task records underneath it may feed the metrics; counting it would
	// double every failure and compare run durations against task targets.
	procHandle, err := recorder.Begin(ctx, "exec-1", "billing", evidence.RecordKindProcess, nil)
	require.NoError(t, err)

	record := func(name string, duration time.Duration, outcome models.RecordOutcome) {
		handle, err := recorder.Begin(ctx, "exec-1", name, evidence.RecordKindTask, nil)
		require.NoError(t, err)

		clock.advance(duration)
		require.NoError(t, recorder.End(ctx, handle, outcome, nil, nil))
	}

	record("charge", 100*time.Millisecond, models.RecordOutcomeSuccess)
	record("receipt", 100*time.Millisecond, models.RecordOutcomeSuccess)

	require.NoError(t, recorder.End(ctx, procHandle, models.RecordOutcomeError, nil,
		errors.New("boundary exhausted")))

	accuracy, err := NewAccuracyCollector(recorder, time.Hour).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, accuracy, 1e-9)

	// 200ms of run wall clock against a 150ms per-task target: both tasks
	// were on time, so the metric must stay at 1.0.
	efficiency, err := NewEfficiencyCollector(recorder, time.Hour, 150*time.Millisecond).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, efficiency, 1e-9)

	coherence, err := NewCoherenceCollector(recorder, time.Hour).Collect(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, coherence, 1e-9)
}

func TestCollectorsEmptyWindowReadHealthy(t *testing.T) {
	recorder, _ := newEvidenceFixture(t)

	value, err := NewAccuracyCollector(recorder, time.Minute).Collect(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, value, 1e-9)
}

type testClock struct {
	current time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newEvidenceFixture(t *testing.T) (*evidence.Recorder, *testClock) {
	t.Helper()

	clock := &testClock{current: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := evidence.NewRecorder(slog.Default(), evidence.NewMemoryStore(), nil).
		WithClock(func() time.Time { return clock.current })

	return recorder, clock
}
