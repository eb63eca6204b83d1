// Package regeneration selects and runs remediation processes in response
// to control violations, with a one-attempt circuit breaker before
// escalation.
package regeneration

import (
	"fmt"
	"sort"
	"sync"

	"github.com/regenera-io/regenera/pkg/models"
)

// Catalog holds the registered remediation strategies, grouped by the
// metric they target. Registration happens at startup; the catalog is
// read-mostly afterwards.
type Catalog struct {
	mu         sync.RWMutex
	strategies map[string][]models.RegenerationStrategy
}

func NewCatalog() *Catalog {
	return &Catalog{strategies: make(map[string][]models.RegenerationStrategy)}
}

func (c *Catalog) Register(strategy models.RegenerationStrategy) error {
	if strategy.ID == "" || strategy.TargetMetric == "" || strategy.ProcessName == "" {
		return fmt.Errorf("strategy %q needs id, target metric and process name", strategy.Name)
	}

	if strategy.SuccessProbability < 0 || strategy.SuccessProbability > 1 {
		return fmt.Errorf("strategy %q success probability %.2f outside [0,1]", strategy.Name, strategy.SuccessProbability)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.strategies[strategy.TargetMetric] {
		if existing.ID == strategy.ID {
			return fmt.Errorf("strategy %s already registered", strategy.ID)
		}
	}

	c.strategies[strategy.TargetMetric] = append(c.strategies[strategy.TargetMetric], strategy)

	return nil
}

// For returns the strategies targeting one metric, in registration order.
func (c *Catalog) For(metric string) []models.RegenerationStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored := c.strategies[metric]
	result := make([]models.RegenerationStrategy, len(stored))
	copy(result, stored)

	return result
}

// Metrics returns the metrics with at least one registered strategy.
func (c *Catalog) Metrics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metrics := make([]string, 0, len(c.strategies))
	for metric := range c.strategies {
		metrics = append(metrics, metric)
	}

	sort.Strings(metrics)

	return metrics
}
