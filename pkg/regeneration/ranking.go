package regeneration

import (
	"sort"

	"github.com/regenera-io/regenera/pkg/models"
)

// rankWeights splits the scoring weight between success probability,
// inverted risk tier and inverted estimated duration. More severe
// violations shift weight toward success probability.
type rankWeights struct {
	success  float64
	risk     float64
	duration float64
}

func weightsFor(severity models.Severity) rankWeights {
	if severity == models.SeverityCritical {
		return rankWeights{success: 0.7, risk: 0.2, duration: 0.1}
	}

	return rankWeights{success: 0.5, risk: 0.3, duration: 0.2}
}

// score combines the ranking inputs into a single comparable value in
// [0,1]. Duration is normalized against the slowest candidate in the set.
func score(strategy models.RegenerationStrategy, weights rankWeights, maxDuration float64) float64 {
	riskInverted := 1.0 - float64(strategy.Risk)/float64(models.RiskTierHigh)

	durationInverted := 1.0
	if maxDuration > 0 {
		durationInverted = 1.0 - float64(strategy.EstimatedDuration)/maxDuration
	}

	return weights.success*strategy.SuccessProbability +
		weights.risk*riskInverted +
		weights.duration*durationInverted
}

// rank orders candidates best first for the given severity. The input
// slice is not modified.
func rank(candidates []models.RegenerationStrategy, severity models.Severity) []models.RegenerationStrategy {
	weights := weightsFor(severity)

	maxDuration := 0.0
	for _, candidate := range candidates {
		if d := float64(candidate.EstimatedDuration); d > maxDuration {
			maxDuration = d
		}
	}

	ranked := make([]models.RegenerationStrategy, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i], weights, maxDuration) > score(ranked[j], weights, maxDuration)
	})

	return ranked
}
