package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/regenera-io/regenera/pkg/entropy"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/regeneration"
)

// DefaultControlLimits returns the initial control-chart limits applied to
// ratio metrics until the first recalibration.
func DefaultControlLimits() []models.ControlLimit {
	limits := make([]models.ControlLimit, 0, 3)

	for _, metric := range []string{entropy.MetricAccuracy, entropy.MetricEfficiency, entropy.MetricCoherence} {
		limits = append(limits, models.ControlLimit{
			Metric:       metric,
			Center:       0.95,
			UpperControl: 1.0,
			LowerControl: 0.7,
			UpperWarning: 1.0,
			LowerWarning: 0.85,
		})
	}

	return limits
}

// LoadControlLimits reads a JSON array of control limits, falling back to
// the defaults when no path is given.
func LoadControlLimits(logger *slog.Logger, path string) ([]models.ControlLimit, error) {
	if path == "" {
		return DefaultControlLimits(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read control limits %s: %w", path, err)
	}

	var limits []models.ControlLimit
	if err := json.Unmarshal(data, &limits); err != nil {
		return nil, fmt.Errorf("failed to parse control limits %s: %w", path, err)
	}

	logger.Info("Loaded control limits", "path", path, "metrics", len(limits))

	return limits, nil
}

// LoadStrategies reads a JSON array of regeneration strategies into the
// catalog. Without a path the catalog stays empty and every violation
// escalates.
func LoadStrategies(logger *slog.Logger, path string, catalog *regeneration.Catalog) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read strategy catalog %s: %w", path, err)
	}

	var strategies []models.RegenerationStrategy
	if err := json.Unmarshal(data, &strategies); err != nil {
		return fmt.Errorf("failed to parse strategy catalog %s: %w", path, err)
	}

	for _, strategy := range strategies {
		if err := catalog.Register(strategy); err != nil {
			return err
		}
	}

	logger.Info("Loaded strategy catalog", "path", path, "strategies", len(strategies))

	return nil
}

// NewEntropySystem wires the standard collectors over the recorder with the
// default weighting.
func NewEntropySystem(logger *slog.Logger, recorder *evidence.Recorder, window, efficiencyTarget time.Duration) (*entropy.System, error) {
	collectors := []entropy.Collector{
		entropy.NewAccuracyCollector(recorder, window),
		entropy.NewEfficiencyCollector(recorder, window, efficiencyTarget),
		entropy.NewCoherenceCollector(recorder, window),
	}

	weights := map[string]float64{
		entropy.MetricAccuracy:   0.4,
		entropy.MetricEfficiency: 0.3,
		entropy.MetricCoherence:  0.3,
	}

	thresholds := map[string]entropy.Thresholds{
		entropy.MetricAccuracy:   {Warning: 0.9, Critical: 0.7},
		entropy.MetricEfficiency: {Warning: 0.9, Critical: 0.7},
		entropy.MetricCoherence:  {Warning: 0.9, Critical: 0.7},
	}

	return entropy.NewSystem(logger, collectors, weights, thresholds)
}
