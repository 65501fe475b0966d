package optimizer

import (
	"fmt"

	"github.com/j-veylop/tokenwatch/internal/models"
)

const (
	minLookupsForHitRate = 10
	lowHitRate           = 0.3
	cacheNearFull        = 0.9
	maxPotentialSavings  = 90.0
)

// OptimizationRecommendations derives prioritized strategies from the
// running counters.
func (e *Engine) OptimizationRecommendations() models.OptimizationRecommendations {
	m := e.OptimizationMetrics()
	lookups := m.CacheHits + m.CacheMisses

	var strategies []models.OptimizationStrategyRecommendation
	add := func(name, category, description string, priority models.RecommendationPriority, savings float64) {
		strategies = append(strategies, models.OptimizationStrategyRecommendation{
			Name:            name,
			Category:        category,
			Description:     description,
			Priority:        priority,
			ExpectedSavings: savings,
		})
	}

	switch {
	case !e.config.CachingEnabled:
		add("Enable response caching", "caching",
			"Caching is disabled; repeated requests are sent to the model every time",
			models.PriorityHigh, 30)
	case lookups >= minLookupsForHitRate && m.CacheHitRate < lowHitRate:
		add("Improve cache hit rate", "caching",
			fmt.Sprintf("Only %.0f%% of requests hit the cache; reuse shared context and stable prompts", m.CacheHitRate*100),
			models.PriorityHigh, 30)
	}

	if m.CompressionUses == 0 {
		add("Compress large contexts", "compression",
			fmt.Sprintf("No context has been compressed; contexts over %d tokens are eligible", e.config.CompressionThreshold),
			models.PriorityMedium, 20)
	}

	if m.BatchOperations == 0 {
		add("Batch independent requests", "batching",
			"Requests are sent one at a time; batching amortizes overhead",
			models.PriorityMedium, 15)
	}

	if float64(m.TotalCacheEntries) >= cacheNearFull*float64(e.config.MaxCacheSize) {
		add("Grow the response cache", "caching",
			fmt.Sprintf("Cache holds %d of %d entries; raise the limit or shorten the TTL", m.TotalCacheEntries, e.config.MaxCacheSize),
			models.PriorityLow, 10)
	}

	add("Route by request profile", "routing",
		"Send small cost-sensitive requests to cheaper models and keep large contexts on the widest window",
		models.PriorityLow, 25)

	recs := models.OptimizationRecommendations{Strategies: strategies}
	if lookups > 0 {
		recs.CurrentEfficiency = min(float64(m.CacheHits+m.CompressionUses)/float64(lookups)*100, 100)
	}
	for _, s := range strategies {
		recs.PotentialSavings += s.ExpectedSavings
	}
	recs.PotentialSavings = min(recs.PotentialSavings, maxPotentialSavings)
	return recs
}
