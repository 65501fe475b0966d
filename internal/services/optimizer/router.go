package optimizer

import (
	"fmt"
	"time"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
)

// Routing limits that switch the router into its specialised branches.
const (
	LargeContextTokens = 128_000
	LowCostLimit       = 0.01
	LowLatencyLimit    = 10 * time.Second
)

// Route is a model the router can choose, with its quality and speed profile.
type Route struct {
	Model           string
	Quality         float64 // 0..1
	BaseLatency     time.Duration
	TokensPerSecond float64
}

// DefaultRoutes returns the built-in routing profiles.
func DefaultRoutes() []Route {
	return []Route{
		{Model: "gpt-4.1", Quality: 0.95, BaseLatency: 800 * time.Millisecond, TokensPerSecond: 100_000},
		{Model: "gpt-4o", Quality: 0.9, BaseLatency: 400 * time.Millisecond, TokensPerSecond: 200_000},
		{Model: "gpt-3.5-turbo", Quality: 0.7, BaseLatency: 500 * time.Millisecond, TokensPerSecond: 150_000},
	}
}

// RouteConstraints bounds a routing decision. Zero values are unset.
type RouteConstraints struct {
	MaxCost    float64 // USD
	MaxLatency time.Duration
}

type candidate struct {
	route   Route
	tier    pricing.Tier
	cost    float64
	latency time.Duration
}

// RouteRequest picks a model for the request. The cascade is: a context
// over LargeContextTokens goes to the model with the largest window
// regardless of other constraints; a MaxCost under LowCostLimit goes to the
// cheapest model; a MaxLatency under LowLatencyLimit goes to the fastest
// model meeting the quality floor; anything else goes to the best model.
// Estimates cover input tokens only.
func (e *Engine) RouteRequest(contextText, prompt string, c RouteConstraints) models.RoutingDecision {
	tokens := pricing.EstimateTokens(contextText) + pricing.EstimateTokens(prompt)
	decision := models.RoutingDecision{EstimatedTokens: tokens}

	all := e.candidates(tokens)
	if len(all) == 0 {
		decision.Reasoning = "No routable model is registered"
		return decision
	}

	var (
		pick   candidate
		reason string
	)
	fits := filter(all, func(x candidate) bool { return x.tier.ContextLimit == 0 || x.tier.ContextLimit >= tokens })

	switch {
	case tokens > LargeContextTokens:
		pick = best(all, func(a, b candidate) bool { return a.tier.ContextLimit > b.tier.ContextLimit })
		reason = fmt.Sprintf("Large context (%d tokens) needs the %d-token window of %s", tokens, pick.tier.ContextLimit, pick.route.Model)
	case c.MaxCost > 0 && c.MaxCost < LowCostLimit:
		pick = best(orAll(fits, all), func(a, b candidate) bool { return a.cost < b.cost })
		reason = fmt.Sprintf("Cost optimization: %s is the cheapest model at $%.6f", pick.route.Model, pick.cost)
	case c.MaxLatency > 0 && c.MaxLatency < LowLatencyLimit:
		adequate := filter(fits, func(x candidate) bool { return x.route.Quality >= e.config.RoutingQualityFloor })
		pick = best(orAll(adequate, all), func(a, b candidate) bool { return a.latency < b.latency })
		reason = fmt.Sprintf("Latency optimization: %s is the fastest adequate model at %s", pick.route.Model, pick.latency)
	default:
		pick = best(orAll(fits, all), func(a, b candidate) bool { return a.route.Quality > b.route.Quality })
		reason = fmt.Sprintf("Quality priority: %s has the highest quality score (%.2f)", pick.route.Model, pick.route.Quality)
	}

	decision.Model = pick.route.Model
	decision.Reasoning = reason
	decision.EstimatedCost = pick.cost
	decision.EstimatedLatency = pick.latency
	return decision
}

func (e *Engine) candidates(tokens int) []candidate {
	var out []candidate
	for _, r := range e.routes {
		tier, err := e.pricing.Lookup(r.Model)
		if err != nil {
			logger.Warn("route skipped", "model", r.Model, "error", err)
			continue
		}
		latency := r.BaseLatency
		if r.TokensPerSecond > 0 {
			latency += time.Duration(float64(tokens) / r.TokensPerSecond * float64(time.Second))
		}
		out = append(out, candidate{
			route:   r,
			tier:    tier,
			cost:    tier.Cost(tokens, 0),
			latency: latency,
		})
	}
	return out
}

func filter(in []candidate, keep func(candidate) bool) []candidate {
	var out []candidate
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func orAll(preferred, all []candidate) []candidate {
	if len(preferred) == 0 {
		return all
	}
	return preferred
}

// best returns the first candidate no other candidate beats.
func best(in []candidate, better func(a, b candidate) bool) candidate {
	pick := in[0]
	for _, c := range in[1:] {
		if better(c, pick) {
			pick = c
		}
	}
	return pick
}
