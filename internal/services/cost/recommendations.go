package cost

import (
	"fmt"
	"slices"

	"github.com/j-veylop/tokenwatch/internal/models"
)

const (
	highCostPerRequest  = 0.10
	contextOverutilized = 0.8
	contextUnderused    = 0.1
	minSavingsWorthIt   = 0.25
)

type modelUsage struct {
	requests    int
	inputTokens int
	outputTkns  int
	cost        float64
}

// OptimizationRecommendations derives cost-saving advice from the ledger.
func (a *Analyzer) OptimizationRecommendations() []string {
	records := a.Records()
	if len(records) == 0 {
		return nil
	}

	var recs []string
	total := 0.0
	byModel := make(map[string]*modelUsage)
	for _, r := range records {
		total += r.Cost
		u, ok := byModel[r.Model]
		if !ok {
			u = &modelUsage{}
			byModel[r.Model] = u
		}
		u.requests++
		u.inputTokens += r.InputTokens
		u.outputTkns += r.OutputTokens
		u.cost += r.Cost
	}

	if avg := total / float64(len(records)); avg > highCostPerRequest {
		recs = append(recs, fmt.Sprintf(
			"Average cost per request is $%.4f; enable response caching for repeated prompts", avg))
	}

	ids := make([]string, 0, len(byModel))
	for id := range byModel {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		u := byModel[id]
		tier, err := a.pricing.Lookup(id)
		if err != nil || tier.ContextLimit == 0 {
			continue
		}

		avgInput := u.inputTokens / u.requests
		utilization := float64(avgInput) / float64(tier.ContextLimit)
		switch {
		case utilization > contextOverutilized:
			recs = append(recs, fmt.Sprintf(
				"%s requests use %.0f%% of the context window on average; compress context or route to a larger-context model",
				id, utilization*100))
		case utilization < contextUnderused:
			recs = append(recs, fmt.Sprintf(
				"%s requests use only %.1f%% of the context window; a smaller model may be sufficient",
				id, utilization*100))
		}

		if alt, saving, ok := a.cheaperAlternative(id, avgInput, u.outputTkns/u.requests); ok {
			recs = append(recs, fmt.Sprintf(
				"Switching %s to %s would cut cost for typical requests by %.0f%%", id, alt, saving*100))
		}
	}

	if limit := a.BudgetLimit(); limit > 0 {
		f := a.ForecastMonthlyBudget(limit)
		switch f.BudgetStatus {
		case models.BudgetOver:
			recs = append(recs, fmt.Sprintf(
				"Projected monthly spend $%.2f exceeds the $%.2f budget; limit daily spend to $%.2f",
				f.ProjectedCost, limit, f.RecommendedDailyLimit))
		case models.BudgetApproaching:
			recs = append(recs, fmt.Sprintf(
				"Projected monthly spend $%.2f is approaching the $%.2f budget", f.ProjectedCost, limit))
		}
	}

	return recs
}

// cheaperAlternative finds the next cheaper tier down from model: the most
// expensive registered model that still fits the request, has at least the
// same context window, and saves at least minSavingsWorthIt.
func (a *Analyzer) cheaperAlternative(model string, input, output int) (string, float64, bool) {
	current, err := a.CalculateRequestCost(input, output, model)
	if err != nil || current == 0 {
		return "", 0, false
	}
	currentTier, err := a.pricing.Lookup(model)
	if err != nil {
		return "", 0, false
	}

	best, bestSaving := "", 0.0
	for _, mc := range a.CompareModelCosts(input, output) {
		if mc.Model == model || mc.Cost >= current {
			break
		}
		tier, err := a.pricing.Lookup(mc.Model)
		if err != nil || tier.ContextLimit < input || tier.ContextLimit < currentTier.ContextLimit {
			continue
		}
		if saving := 1 - mc.Cost/current; saving >= minSavingsWorthIt {
			best, bestSaving = mc.Model, saving
		}
	}
	return best, bestSaving, best != ""
}
