// Package executor defines the boundary to the model API and a placeholder
// simulator used until a real client is wired in.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
)

// Executor sends one request to a model.
type Executor interface {
	Execute(ctx context.Context, contextText, prompt, model string) (models.Response, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, contextText, prompt, model string) (models.Response, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, contextText, prompt, model string) (models.Response, error) {
	return f(ctx, contextText, prompt, model)
}

// ErrSimulatedFailure is returned by the simulator for injected failures.
var ErrSimulatedFailure = errors.New("simulated request failure")

// SimulatorConfig holds configuration for the simulator.
type SimulatorConfig struct {
	Latency   time.Duration
	ErrorRate float64 // 0..1
	Seed      uint64
}

// Simulator answers requests locally with a canned response.
type Simulator struct {
	rng    *rand.Rand
	config SimulatorConfig
	mu     sync.Mutex
}

// NewSimulator creates a simulator.
func NewSimulator(config SimulatorConfig) *Simulator {
	return &Simulator{
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		config: config,
	}
}

// Execute implements Executor.
func (s *Simulator) Execute(ctx context.Context, contextText, prompt, model string) (models.Response, error) {
	if s.config.Latency > 0 {
		timer := time.NewTimer(s.config.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Response{}, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	failed := s.config.ErrorRate > 0 && s.rng.Float64() < s.config.ErrorRate
	s.mu.Unlock()
	if failed {
		return models.Response{}, fmt.Errorf("%s: %w", model, ErrSimulatedFailure)
	}

	content := fmt.Sprintf("Simulated response from %s for: %s", model, truncate(prompt, 80))
	return models.Response{
		Content: content,
		Model:   model,
		TokenUsage: &models.TokenUsage{
			InputTokens:  pricing.EstimateTokens(contextText) + pricing.EstimateTokens(prompt),
			OutputTokens: pricing.EstimateTokens(content),
		},
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
