package optimizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRouteRequest(t *testing.T) {
	largeContext := strings.Repeat("x", 600_000) // 150k tokens

	tests := []struct {
		name        string
		context     string
		constraints RouteConstraints
		wantModel   string
		wantReason  string
	}{
		{"LargeContext", largeContext, RouteConstraints{}, "gpt-4.1", "Large context"},
		{"LargeContextBeatsCost", largeContext, RouteConstraints{MaxCost: 0.0001}, "gpt-4.1", "Large context"},
		{"CostSensitive", "Small context", RouteConstraints{MaxCost: 0.001}, "gpt-3.5-turbo", "Cost optimization"},
		{"LatencySensitive", "Small context", RouteConstraints{MaxLatency: 5 * time.Second}, "gpt-4o", "Latency optimization"},
		{"CostBeatsLatency", "Small context", RouteConstraints{MaxCost: 0.001, MaxLatency: time.Second}, "gpt-3.5-turbo", "Cost optimization"},
		{"GenerousLimits", "Small context", RouteConstraints{MaxCost: 5, MaxLatency: time.Minute}, "gpt-4.1", "Quality priority"},
		{"NoConstraints", "Small context", RouteConstraints{}, "gpt-4.1", "Quality priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(nil, DefaultConfig())

			got := e.RouteRequest(tt.context, "Test prompt", tt.constraints)
			assert.Equal(t, tt.wantModel, got.Model)
			assert.Contains(t, got.Reasoning, tt.wantReason)
			assert.Positive(t, got.EstimatedLatency)
			assert.Positive(t, got.EstimatedCost)
		})
	}
}

func TestRouteRequestEstimates(t *testing.T) {
	e := New(nil, DefaultConfig())

	got := e.RouteRequest("Small context", "Test prompt", RouteConstraints{})
	assert.Equal(t, 7, got.EstimatedTokens)
	assert.InDelta(t, 7.0/1_000_000*2, got.EstimatedCost, 1e-15)
	assert.InDelta(t, float64(800*time.Millisecond+70*time.Microsecond), float64(got.EstimatedLatency), 10)
}

func TestRouteRequestCostSkipsModelsThatDoNotFit(t *testing.T) {
	e := New(nil, DefaultConfig())
	mid := strings.Repeat("x", 200_000) // 50k tokens, beyond gpt-3.5-turbo

	got := e.RouteRequest(mid, "p", RouteConstraints{MaxCost: 0.005})
	assert.Equal(t, "gpt-4.1", got.Model)
}

func TestRouteRequestQualityFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RoutingQualityFloor = 0.6
	e := New(nil, cfg)

	got := e.RouteRequest("Small context", "Test prompt", RouteConstraints{MaxLatency: time.Second})
	assert.Equal(t, "gpt-4o", got.Model)

	cfg.Routes = []Route{
		{Model: "gpt-4.1", Quality: 0.95, BaseLatency: 800 * time.Millisecond},
		{Model: "gpt-4o-mini", Quality: 0.75, BaseLatency: 100 * time.Millisecond},
	}
	e = New(nil, cfg)
	got = e.RouteRequest("Small context", "Test prompt", RouteConstraints{MaxLatency: time.Second})
	assert.Equal(t, "gpt-4o-mini", got.Model)
}

func TestRouteRequestSkipsUnknownModels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Routes = []Route{{Model: "mystery", Quality: 1}}
	e := New(nil, cfg)

	got := e.RouteRequest("ctx", "p", RouteConstraints{})
	assert.Empty(t, got.Model)
	assert.NotEmpty(t, got.Reasoning)
}
