package regeneration

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
)

func TestSimulateWithoutHistory(t *testing.T) {
	recorder := evidence.NewRecorder(slog.Default(), evidence.NewMemoryStore(), nil)
	simulator := NewSimulator(recorder, time.Hour)

	candidate := strategy("s1", models.RiskTierLow, 0.8, time.Minute)
	violation := accuracyViolation()
	limit := models.ControlLimit{Metric: "accuracy", Center: 0.9}

	result, err := simulator.Simulate(t.Context(), candidate, violation, limit)
	require.NoError(t, err)

	assert.Equal(t, "s1", result.StrategyID)
	assert.InDelta(t, 0.8, result.PredictedSuccess, 1e-9)
	assert.InDelta(t, (0.9-0.7)*0.8, result.PredictedEntropyDelta, 1e-9)
	assert.Empty(t, result.SideEffects)
}

func TestSimulateBlendsHistoricalOutcomes(t *testing.T) {
	recorder := evidence.NewRecorder(slog.Default(), evidence.NewMemoryStore(), nil)
	simulator := NewSimulator(recorder, time.Hour)

	candidate := strategy("s1", models.RiskTierLow, 1.0, time.Minute)

	// Two past runs of the remediation process, one failed.
	outcomes := []models.RecordOutcome{models.RecordOutcomeSuccess, models.RecordOutcomeError}
	for i, outcome := range outcomes {
		handle, err := recorder.Begin(t.Context(), "exec-"+string(rune('a'+i)), candidate.ProcessName, evidence.RecordKindProcess, nil)
		require.NoError(t, err)
		require.NoError(t, recorder.End(t.Context(), handle, outcome, nil, nil))
	}

	result, err := simulator.Simulate(t.Context(), candidate, accuracyViolation(), models.ControlLimit{Center: 0.9})
	require.NoError(t, err)

	// (1.0 catalog + 0.5 observed) / 2, low risk keeps it undiscounted.
	assert.InDelta(t, 0.75, result.PredictedSuccess, 1e-9)
}

func TestSimulateHighRiskDiscountAndSideEffects(t *testing.T) {
	recorder := evidence.NewRecorder(slog.Default(), evidence.NewMemoryStore(), nil)
	simulator := NewSimulator(recorder, time.Hour)

	candidate := strategy("s1", models.RiskTierHigh, 1.0, time.Minute)

	result, err := simulator.Simulate(t.Context(), candidate, accuracyViolation(), models.ControlLimit{Center: 0.9})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, result.PredictedSuccess, 1e-9)
	assert.NotEmpty(t, result.SideEffects)
}

func TestCatalogRegisterValidation(t *testing.T) {
	catalog := NewCatalog()

	err := catalog.Register(models.RegenerationStrategy{Name: "incomplete"})
	assert.ErrorContains(t, err, "needs id")

	valid := strategy("s1", models.RiskTierLow, 0.5, time.Minute)
	require.NoError(t, catalog.Register(valid))

	err = catalog.Register(valid)
	assert.ErrorContains(t, err, "already registered")

	bad := strategy("s2", models.RiskTierLow, 1.5, time.Minute)
	err = catalog.Register(bad)
	assert.ErrorContains(t, err, "outside [0,1]")

	assert.Equal(t, []string{"accuracy"}, catalog.Metrics())
	assert.Len(t, catalog.For("accuracy"), 1)
}
