// Package pricing holds per-model token prices and the token estimation heuristic.
package pricing

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownModel is returned when a model has no registered pricing tier.
var ErrUnknownModel = errors.New("unknown model")

// UnknownModelError reports a lookup for an unregistered model.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownModel, e.Model)
}

// Unwrap lets errors.Is match ErrUnknownModel.
func (e *UnknownModelError) Unwrap() error {
	return ErrUnknownModel
}

// Tier holds per-million-token prices and limits for a model.
type Tier struct {
	Model         string  `json:"model" toml:"model"`
	InputPerMTok  float64 `json:"inputPerMTok" toml:"input_per_mtok"`
	OutputPerMTok float64 `json:"outputPerMTok" toml:"output_per_mtok"`
	ContextLimit  int     `json:"contextLimit" toml:"context_limit"`
	OutputLimit   int     `json:"outputLimit" toml:"output_limit"`
}

// Cost returns the USD cost of the given token counts at this tier.
func (t Tier) Cost(inputTokens, outputTokens int) float64 {
	cost := float64(inputTokens) / 1_000_000 * t.InputPerMTok
	cost += float64(outputTokens) / 1_000_000 * t.OutputPerMTok
	return cost
}

// ReferenceInputPerMTok is the input price used to value saved tokens.
const ReferenceInputPerMTok = 2.0

// DefaultTiers lists the built-in pricing tiers.
var DefaultTiers = []Tier{
	{Model: "gpt-4.1", InputPerMTok: 2.00, OutputPerMTok: 8.00, ContextLimit: 1_047_576, OutputLimit: 32_768},
	{Model: "gpt-4.1-mini", InputPerMTok: 0.40, OutputPerMTok: 1.60, ContextLimit: 1_047_576, OutputLimit: 32_768},
	{Model: "gpt-4.1-nano", InputPerMTok: 0.10, OutputPerMTok: 0.40, ContextLimit: 1_047_576, OutputLimit: 32_768},
	{Model: "gpt-4o", InputPerMTok: 2.50, OutputPerMTok: 10.00, ContextLimit: 128_000, OutputLimit: 16_384},
	{Model: "gpt-4o-mini", InputPerMTok: 0.15, OutputPerMTok: 0.60, ContextLimit: 128_000, OutputLimit: 16_384},
	{Model: "gpt-4-turbo", InputPerMTok: 10.00, OutputPerMTok: 30.00, ContextLimit: 128_000, OutputLimit: 4_096},
	{Model: "gpt-4", InputPerMTok: 30.00, OutputPerMTok: 60.00, ContextLimit: 8_192, OutputLimit: 8_192},
	{Model: "gpt-3.5-turbo", InputPerMTok: 0.50, OutputPerMTok: 1.50, ContextLimit: 16_385, OutputLimit: 4_096},
}

// Registry maps model ids to their pricing tier. Tiers are immutable once registered.
type Registry struct {
	tiers map[string]Tier
	mu    sync.RWMutex
}

// NewRegistry creates a registry holding the given tiers.
func NewRegistry(tiers ...Tier) *Registry {
	r := &Registry{tiers: make(map[string]Tier, len(tiers))}
	for _, t := range tiers {
		r.tiers[t.Model] = t
	}
	return r
}

// Default returns a registry with DefaultTiers.
func Default() *Registry {
	return NewRegistry(DefaultTiers...)
}

// Register adds a tier. Registering an existing model is an error.
func (r *Registry) Register(t Tier) error {
	if t.Model == "" {
		return errors.New("pricing tier requires a model id")
	}
	if t.InputPerMTok < 0 || t.OutputPerMTok < 0 {
		return fmt.Errorf("pricing tier %q has negative price", t.Model)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tiers[t.Model]; exists {
		return fmt.Errorf("pricing tier %q already registered", t.Model)
	}
	r.tiers[t.Model] = t
	return nil
}

// Lookup returns the tier for a model, normalizing dated model ids first.
func (r *Registry) Lookup(model string) (Tier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tiers[model]; ok {
		return t, nil
	}
	if t, ok := r.tiers[normalizeModelName(model)]; ok {
		return t, nil
	}
	return Tier{}, &UnknownModelError{Model: model}
}

// Models returns the registered model ids in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tiers))
	for id := range r.tiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// normalizeModelName strips a trailing date suffix.
// e.g., "gpt-4.1-2025-04-14" -> "gpt-4.1", "gpt-4o-20240806" -> "gpt-4o"
func normalizeModelName(raw string) string {
	parts := strings.Split(raw, "-")
	for len(parts) > 1 && isAllDigits(parts[len(parts)-1]) {
		last := parts[len(parts)-1]
		if len(last) != 2 && len(last) != 4 && len(last) != 8 {
			break
		}
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "-")
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// CharsPerToken is the fixed characters-per-token estimation ratio.
const CharsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return EstimateTokensFromLength(len(text))
}

// EstimateTokensFromLength approximates the token count of n characters.
func EstimateTokensFromLength(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}
