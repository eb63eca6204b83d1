package regeneration

import (
	"context"
	"time"

	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
)

var riskSideEffects = map[models.RiskTier][]string{
	models.RiskTierMedium: {"partial rebuild of derived artifacts"},
	models.RiskTierHigh:   {"full rebuild of derived artifacts", "transient unavailability of dependent executions"},
}

// Simulator dry-runs a strategy against recorded evidence instead of the
// live engine: the catalog's success estimate is blended with the
// remediation process's actual historical outcome ratio, then discounted
// by risk tier.
type Simulator struct {
	recorder *evidence.Recorder
	window   time.Duration
}

func NewSimulator(recorder *evidence.Recorder, window time.Duration) *Simulator {
	return &Simulator{recorder: recorder, window: window}
}

func (s *Simulator) Simulate(ctx context.Context, strategy models.RegenerationStrategy, violation *models.ControlViolation, limit models.ControlLimit) (models.SimulationResult, error) {
	predicted := strategy.SuccessProbability

	history, err := s.recorder.RecordsMatching(ctx, func(record *models.TaskRecord) bool {
		return record.TaskKind == evidence.RecordKindProcess && record.TaskName == strategy.ProcessName
	}, s.window)
	if err != nil {
		return models.SimulationResult{}, err
	}

	if len(history) > 0 {
		successes := 0

		for _, record := range history {
			if record.Outcome == models.RecordOutcomeSuccess {
				successes++
			}
		}

		observed := float64(successes) / float64(len(history))
		predicted = (predicted + observed) / 2
	}

	predicted *= 1.0 - 0.1*float64(strategy.Risk)

	return models.SimulationResult{
		StrategyID:            strategy.ID,
		PredictedSuccess:      predicted,
		PredictedEntropyDelta: (limit.Center - violation.Value) * predicted,
		SideEffects:           riskSideEffects[strategy.Risk],
	}, nil
}
