package spc

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/models"
)

func accuracyLimit() models.ControlLimit {
	return models.ControlLimit{
		Metric:       "accuracy",
		Center:       0.9,
		UpperControl: 1.0,
		LowerControl: 0.8,
		UpperWarning: 0.98,
		LowerWarning: 0.85,
	}
}

func newTestController() *Controller {
	return NewController(slog.Default(), []models.ControlLimit{accuracyLimit()})
}

func TestCheckUnknownMetric(t *testing.T) {
	controller := newTestController()

	_, err := controller.Check(t.Context(), "latency", 0.5)
	assert.ErrorIs(t, err, ErrMetricNotConfigured)
}

func TestCheckControlLimitExceeded(t *testing.T) {
	controller := newTestController()

	violation, err := controller.Check(t.Context(), "accuracy", 0.75)
	require.NoError(t, err)
	require.NotNil(t, violation)

	assert.Equal(t, models.ViolationKindLimitExceeded, violation.Kind)
	assert.Equal(t, models.SeverityCritical, violation.Severity)
	assert.True(t, violation.ActionMandatory)
	assert.NotEmpty(t, violation.ID)
}

func TestCheckWarningBand(t *testing.T) {
	controller := newTestController()

	violation, err := controller.Check(t.Context(), "accuracy", 0.82)
	require.NoError(t, err)
	require.NotNil(t, violation)

	assert.Equal(t, models.SeverityWarning, violation.Severity)
	assert.False(t, violation.ActionMandatory)
}

func TestCheckInsideWarningBandNoViolation(t *testing.T) {
	controller := newTestController()

	violation, err := controller.Check(t.Context(), "accuracy", 0.9)
	require.NoError(t, err)
	assert.Nil(t, violation)
}

func TestCheckValueExactlyAtLimitsDoesNotCross(t *testing.T) {
	controller := newTestController()

	// Touching a limit is not crossing it. At the lower control limit the
	// warning rule still applies, but action must stay optional.
	for i := 0; i < 3; i++ {
		violation, err := controller.Check(t.Context(), "accuracy", 0.8)
		require.NoError(t, err)
		require.NotNil(t, violation)

		assert.NotEqual(t, models.SeverityCritical, violation.Severity)
		assert.False(t, violation.ActionMandatory)
	}

	violation, err := controller.Check(t.Context(), "accuracy", 0.85)
	require.NoError(t, err)
	assert.Nil(t, violation, "value at the warning limit must not violate")
}

func TestCheckNineConsecutiveOneSide(t *testing.T) {
	controller := newTestController()

	// Eight points below center: rule must stay silent.
	for i := 0; i < 8; i++ {
		violation, err := controller.Check(t.Context(), "accuracy", 0.88)
		require.NoError(t, err)
		assert.Nil(t, violation)
	}

	violation, err := controller.Check(t.Context(), "accuracy", 0.88)
	require.NoError(t, err)
	require.NotNil(t, violation)

	assert.Equal(t, models.ViolationKindRun, violation.Kind)
	assert.Equal(t, models.SeverityWarning, violation.Severity)
	assert.True(t, violation.ActionMandatory)
}

func TestCheckRunBrokenByCenterPoint(t *testing.T) {
	controller := newTestController()

	for i := 0; i < 8; i++ {
		_, err := controller.Check(t.Context(), "accuracy", 0.88)
		require.NoError(t, err)
	}

	// A point on the center line resets the run.
	violation, err := controller.Check(t.Context(), "accuracy", 0.9)
	require.NoError(t, err)
	assert.Nil(t, violation)
}

func TestCheckMonotoneTrend(t *testing.T) {
	controller := newTestController()

	values := []float64{0.86, 0.87, 0.88, 0.89, 0.90, 0.91}

	var violation *models.ControlViolation

	for _, value := range values {
		var err error
		violation, err = controller.Check(t.Context(), "accuracy", value)
		require.NoError(t, err)
	}

	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationKindTrend, violation.Kind)
	assert.False(t, violation.ActionMandatory)
}

func TestCheckTrendRequiresStrictMonotone(t *testing.T) {
	controller := newTestController()

	values := []float64{0.86, 0.87, 0.87, 0.88, 0.89, 0.90}

	var violation *models.ControlViolation

	for _, value := range values {
		var err error
		violation, err = controller.Check(t.Context(), "accuracy", value)
		require.NoError(t, err)
	}

	assert.Nil(t, violation)
}

func TestCheckRuleOrderControlBeforeRun(t *testing.T) {
	controller := newTestController()

	for i := 0; i < 9; i++ {
		_, err := controller.Check(t.Context(), "accuracy", 0.88)
		require.NoError(t, err)
	}

	// Below both the center and the control limit: rule 1 wins over rule 3.
	violation, err := controller.Check(t.Context(), "accuracy", 0.7)
	require.NoError(t, err)
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationKindLimitExceeded, violation.Kind)
	assert.Equal(t, models.SeverityCritical, violation.Severity)
}

func TestRecalibrate(t *testing.T) {
	controller := newTestController()

	history := make([]models.EntropyMeasurement, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, models.EntropyMeasurement{Metric: "accuracy", Value: 0.9})
	}

	limit, err := controller.Recalibrate(t.Context(), "accuracy", history)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, limit.Center, 1e-9)
	assert.InDelta(t, 0.9, limit.UpperControl, 1e-9)
	assert.InDelta(t, 0.9, limit.LowerControl, 1e-9)

	assert.InDelta(t, 0.9, controller.Limits()["accuracy"].Center, 1e-9)
}

func TestRecalibrateSpread(t *testing.T) {
	controller := newTestController()

	history := make([]models.EntropyMeasurement, 0, 10)
	for i := 0; i < 10; i++ {
		value := 0.85
		if i%2 == 1 {
			value = 0.95
		}

		history = append(history, models.EntropyMeasurement{Metric: "accuracy", Value: value})
	}

	limit, err := controller.Recalibrate(t.Context(), "accuracy", history)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, limit.Center, 1e-9)
	assert.Greater(t, limit.UpperControl, limit.UpperWarning)
	assert.Less(t, limit.LowerControl, limit.LowerWarning)
}

func TestRecalibrateUnknownMetric(t *testing.T) {
	controller := newTestController()

	history := make([]models.EntropyMeasurement, 10)

	_, err := controller.Recalibrate(t.Context(), "latency", history)
	assert.ErrorIs(t, err, ErrMetricNotConfigured)
}

func TestRecalibrateInsufficientHistory(t *testing.T) {
	controller := newTestController()

	history := []models.EntropyMeasurement{{Metric: "accuracy", Value: 0.9}}

	_, err := controller.Recalibrate(t.Context(), "accuracy", history)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
