package regeneration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/protocol"
)

type fakeExecutor struct {
	status    models.ExecutionStatus
	err       error
	processes []string
}

func (f *fakeExecutor) Execute(_ context.Context, processName string, _ map[string]any) (*models.ExecutionContext, error) {
	f.processes = append(f.processes, processName)

	if f.err != nil {
		return nil, f.err
	}

	return &models.ExecutionContext{ID: "exec-regen", ProcessName: processName, Status: f.status}, nil
}

type fakeNotifier struct {
	alerts []protocol.Alert
}

func (f *fakeNotifier) Notify(_ context.Context, alert protocol.Alert) error {
	f.alerts = append(f.alerts, alert)

	return nil
}

type fakeLimits struct {
	limits map[string]models.ControlLimit
}

func (f *fakeLimits) Limits() map[string]models.ControlLimit {
	return f.limits
}

type engineFixture struct {
	engine    *Engine
	executor  *fakeExecutor
	notifier  *fakeNotifier
	postCheck *postCheckStub
}

type postCheckStub struct {
	remaining *models.ControlViolation
	calls     int
}

func (s *postCheckStub) check(context.Context, string) (*models.ControlViolation, error) {
	s.calls++

	return s.remaining, nil
}

func newEngineFixture(t *testing.T, strategies ...models.RegenerationStrategy) *engineFixture {
	t.Helper()

	catalog := NewCatalog()
	for _, strategy := range strategies {
		require.NoError(t, catalog.Register(strategy))
	}

	executor := &fakeExecutor{status: models.ExecutionStatusCompleted}
	notifier := &fakeNotifier{}
	postCheck := &postCheckStub{}

	limits := &fakeLimits{limits: map[string]models.ControlLimit{
		"accuracy": {Metric: "accuracy", Center: 0.9, LowerControl: 0.8, UpperControl: 1.0},
	}}

	engine, err := NewEngine(slog.Default(), Config{
		Catalog:   catalog,
		Executor:  executor,
		Notifier:  notifier,
		Limits:    limits,
		PostCheck: postCheck.check,
	})
	require.NoError(t, err)

	return &engineFixture{engine: engine, executor: executor, notifier: notifier, postCheck: postCheck}
}

func accuracyViolation() *models.ControlViolation {
	return &models.ControlViolation{
		ID:              "violation-1",
		Metric:          "accuracy",
		Kind:            models.ViolationKindLimitExceeded,
		Value:           0.7,
		Severity:        models.SeverityCritical,
		ActionMandatory: true,
		ObservedAt:      time.Now().UTC(),
	}
}

func strategy(id string, risk models.RiskTier, probability float64, duration time.Duration) models.RegenerationStrategy {
	return models.RegenerationStrategy{
		ID:                 id,
		Name:               "strategy " + id,
		TargetMetric:       "accuracy",
		ProcessName:        "remediate_" + id,
		EstimatedDuration:  duration,
		Risk:               risk,
		SuccessProbability: probability,
	}
}

func TestProposeRanksBySeverityWeights(t *testing.T) {
	fast := strategy("fast", models.RiskTierLow, 0.5, time.Minute)
	sure := strategy("sure", models.RiskTierHigh, 0.99, 30*time.Minute)

	fixture := newEngineFixture(t, fast, sure)

	// Warning severity favors low risk and short duration.
	warning := accuracyViolation()
	warning.Severity = models.SeverityWarning
	ranked := fixture.engine.Propose(warning)
	require.Len(t, ranked, 2)
	assert.Equal(t, "fast", ranked[0].ID)

	// Critical severity shifts the weight to success probability.
	ranked = fixture.engine.Propose(accuracyViolation())
	assert.Equal(t, "sure", ranked[0].ID)
}

func TestHandleViolationResolved(t *testing.T) {
	fixture := newEngineFixture(t, strategy("s1", models.RiskTierLow, 0.9, time.Minute))

	err := fixture.engine.HandleViolation(t.Context(), accuracyViolation())
	require.NoError(t, err)

	assert.Equal(t, []string{"remediate_s1"}, fixture.executor.processes)
	assert.Equal(t, 1, fixture.postCheck.calls)
	assert.Empty(t, fixture.notifier.alerts)
}

func TestHandleViolationUnresolvedEscalatesWithoutRetry(t *testing.T) {
	fixture := newEngineFixture(t, strategy("s1", models.RiskTierLow, 0.9, time.Minute))
	fixture.postCheck.remaining = accuracyViolation()

	err := fixture.engine.HandleViolation(t.Context(), accuracyViolation())
	require.NoError(t, err)

	// Exactly one remediation run, then escalation.
	assert.Equal(t, []string{"remediate_s1"}, fixture.executor.processes)
	require.Len(t, fixture.notifier.alerts, 1)

	alert := fixture.notifier.alerts[0]
	assert.Equal(t, "accuracy", alert.Metric)
	assert.Equal(t, "s1", alert.AttemptedStrategy)
	assert.Equal(t, "unresolved", alert.Outcome)
}

func TestHandleViolationSecondAttemptEscalatesImmediately(t *testing.T) {
	fixture := newEngineFixture(t, strategy("s1", models.RiskTierLow, 0.9, time.Minute))

	violation := accuracyViolation()
	require.NoError(t, fixture.engine.HandleViolation(t.Context(), violation))
	require.NoError(t, fixture.engine.HandleViolation(t.Context(), violation))

	assert.Len(t, fixture.executor.processes, 1)
	require.Len(t, fixture.notifier.alerts, 1)
	assert.Equal(t, "already_attempted", fixture.notifier.alerts[0].Outcome)
}

func TestHandleViolationNoStrategyEscalates(t *testing.T) {
	fixture := newEngineFixture(t)

	err := fixture.engine.HandleViolation(t.Context(), accuracyViolation())
	require.NoError(t, err)

	assert.Empty(t, fixture.executor.processes)
	require.Len(t, fixture.notifier.alerts, 1)
	assert.Equal(t, "no_strategy", fixture.notifier.alerts[0].Outcome)
}

func TestHandleViolationFailedRemediationEscalates(t *testing.T) {
	fixture := newEngineFixture(t, strategy("s1", models.RiskTierLow, 0.9, time.Minute))
	fixture.executor.status = models.ExecutionStatusFailed

	err := fixture.engine.HandleViolation(t.Context(), accuracyViolation())
	require.NoError(t, err)

	require.Len(t, fixture.notifier.alerts, 1)
	assert.Equal(t, "failed", fixture.notifier.alerts[0].Outcome)
	assert.Zero(t, fixture.postCheck.calls)
}

func TestSelectPrefersSimulatedPrediction(t *testing.T) {
	optimist := strategy("optimist", models.RiskTierLow, 0.95, time.Minute)
	realist := strategy("realist", models.RiskTierLow, 0.6, time.Minute)

	fixture := newEngineFixture(t, optimist, realist)

	// Simulation contradicts the catalog: the optimist's track record is
	// poor, the realist's is excellent.
	simulations := []models.SimulationResult{
		{StrategyID: "optimist", PredictedSuccess: 0.2},
		{StrategyID: "realist", PredictedSuccess: 0.9},
	}

	selected, ok := fixture.engine.Select([]models.RegenerationStrategy{optimist, realist}, simulations, models.SeverityCritical)
	require.True(t, ok)

	assert.Equal(t, "realist", selected.ID)
	assert.InDelta(t, 0.6, selected.SuccessProbability, 1e-9, "catalog estimate must survive selection")
}
