package monitor

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/entropy"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/regeneration"
	"github.com/regenera-io/regenera/pkg/spc"
)

type stubCollector struct {
	metric string
	value  float64
}

func (c *stubCollector) Metric() string {
	return c.metric
}

func (c *stubCollector) Collect(context.Context) (float64, error) {
	return c.value, nil
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeExecutor) Execute(_ context.Context, processName string, _ map[string]any) (*models.ExecutionContext, error) {
	f.mu.Lock()
	f.calls = append(f.calls, processName)
	f.mu.Unlock()

	return &models.ExecutionContext{ID: "remediation-1", Status: models.ExecutionStatusCompleted}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

type fixture struct {
	monitor   *Monitor
	collector *stubCollector
	executor  *fakeExecutor
}

func newFixture(t *testing.T, actOnOptional bool) *fixture {
	t.Helper()

	logger := slog.Default()
	collector := &stubCollector{metric: "accuracy", value: 0.95}

	system, err := entropy.NewSystem(logger, []entropy.Collector{collector},
		map[string]float64{"accuracy": 1.0},
		map[string]entropy.Thresholds{"accuracy": {Warning: 0.9, Critical: 0.7}})
	require.NoError(t, err)

	controller := spc.NewController(logger, []models.ControlLimit{{
		Metric:       "accuracy",
		Center:       0.95,
		UpperControl: 1.0,
		LowerControl: 0.7,
		UpperWarning: 1.0,
		LowerWarning: 0.85,
	}})

	catalog := regeneration.NewCatalog()
	require.NoError(t, catalog.Register(models.RegenerationStrategy{
		ID:                 "restart",
		Name:               "Restart degraded workers",
		TargetMetric:       "accuracy",
		ProcessName:        "restart_workers",
		EstimatedDuration:  time.Minute,
		Risk:               models.RiskTierLow,
		SuccessProbability: 0.8,
	}))

	executor := &fakeExecutor{}

	regenerator, err := regeneration.NewEngine(logger, regeneration.Config{
		Catalog:  catalog,
		Executor: executor,
		Notifier: NewLogNotifier(logger),
		Limits:   controller,
		PostCheck: func(context.Context, string) (*models.ControlViolation, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)

	m, err := NewMonitor(logger, Config{
		Entropy:       system,
		Controller:    controller,
		Regenerator:   regenerator,
		Schedule:      "@every 1s",
		ActOnOptional: actOnOptional,
	})
	require.NoError(t, err)

	return &fixture{monitor: m, collector: collector, executor: executor}
}

func TestNewMonitorValidation(t *testing.T) {
	_, err := NewMonitor(slog.Default(), Config{})
	assert.Error(t, err)

	f := newFixture(t, false)

	_, err = NewMonitor(slog.Default(), Config{
		Entropy:     f.monitor.config.Entropy,
		Controller:  f.monitor.config.Controller,
		Regenerator: f.monitor.config.Regenerator,
		Schedule:    "not a schedule",
	})
	assert.Error(t, err)
}

func TestAssessHealthyMetric(t *testing.T) {
	f := newFixture(t, false)
	f.collector.value = 0.95

	require.NoError(t, f.monitor.Assess(t.Context()))

	assert.Empty(t, f.monitor.Violations())
	assert.Zero(t, f.executor.callCount())
}

func TestAssessMandatoryViolationRemediates(t *testing.T) {
	f := newFixture(t, false)
	f.collector.value = 0.5

	require.NoError(t, f.monitor.Assess(t.Context()))

	violations := f.monitor.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, models.ViolationKindLimitExceeded, violations[0].Kind)
	assert.Equal(t, models.SeverityCritical, violations[0].Severity)
	assert.True(t, violations[0].ActionMandatory)

	assert.Equal(t, 1, f.executor.callCount())
}

func TestAssessAdvisoryViolationIsOnlyRecorded(t *testing.T) {
	f := newFixture(t, false)
	f.collector.value = 0.82

	require.NoError(t, f.monitor.Assess(t.Context()))

	violations := f.monitor.Violations()
	require.Len(t, violations, 1)
	assert.False(t, violations[0].ActionMandatory)

	assert.Zero(t, f.executor.callCount())
}

func TestAssessAdvisoryViolationWithOptInPolicy(t *testing.T) {
	f := newFixture(t, true)
	f.collector.value = 0.82

	require.NoError(t, f.monitor.Assess(t.Context()))

	require.Len(t, f.monitor.Violations(), 1)
	assert.Equal(t, 1, f.executor.callCount())
}

func TestAssessRecoveredMetricStopsRemediating(t *testing.T) {
	f := newFixture(t, false)

	f.collector.value = 0.5
	require.NoError(t, f.monitor.Assess(t.Context()))
	require.Equal(t, 1, f.executor.callCount())

	f.collector.value = 0.95
	require.NoError(t, f.monitor.Assess(t.Context()))

	// No new violation, no new remediation.
	assert.Len(t, f.monitor.Violations(), 1)
	assert.Equal(t, 1, f.executor.callCount())
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.monitor.Start(t.Context()))
	require.NoError(t, f.monitor.Stop(t.Context()))
}
