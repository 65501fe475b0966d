package models

import "time"

// TokenUsage is the token accounting reported by a request executor.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the result of executing one request against a model.
type Response struct {
	Content    string      `json:"content"`
	Model      string      `json:"model,omitempty"`
	TokenUsage *TokenUsage `json:"tokenUsage,omitempty"`
}

// CacheEntry is a stored response keyed by the hash of its request.
type CacheEntry struct {
	Key         string    `json:"key"`
	Response    Response  `json:"response"`
	Timestamp   time.Time `json:"timestamp"`
	HitCount    int       `json:"hitCount"`
	ContentHash string    `json:"contentHash"`
	TokensSaved int       `json:"tokensSaved"`
	CostSaved   float64   `json:"costSaved"`
}

// CompressionResult describes one compression pass over a context.
type CompressionResult struct {
	OriginalSize     int     `json:"originalSize"`
	CompressedSize   int     `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	QualityScore     float64 `json:"qualityScore"`
	Technique        string  `json:"technique"`
}

// OptimizedRequest is the outcome of the optimization pipeline.
// On a cache hit both optimized strings are empty and Cached holds the stored response.
type OptimizedRequest struct {
	OptimizedContext    string             `json:"optimizedContext"`
	OptimizedPrompt     string             `json:"optimizedPrompt"`
	CacheKey            string             `json:"cacheKey"`
	CacheHit            bool               `json:"cacheHit"`
	Cached              *Response          `json:"cached,omitempty"`
	CompressionUsed     bool               `json:"compressionUsed"`
	Compression         *CompressionResult `json:"compression,omitempty"`
	TokensSaved         int                `json:"tokensSaved"`
	EstimatedCostSaving float64            `json:"estimatedCostSaving"`
}

// RecommendationPriority ranks optimization strategies.
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// OptimizationStrategyRecommendation is a derived, never persisted, suggestion.
type OptimizationStrategyRecommendation struct {
	Name            string                 `json:"name"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
	Priority        RecommendationPriority `json:"priority"`
	ExpectedSavings float64                `json:"expectedSavings"` // percent
}

// OptimizationRecommendations bundles strategies with efficiency estimates.
type OptimizationRecommendations struct {
	Strategies        []OptimizationStrategyRecommendation `json:"strategies"`
	CurrentEfficiency float64                              `json:"currentEfficiency"` // percent
	PotentialSavings  float64                              `json:"potentialSavings"`  // percent
}

// OptimizationMetrics exposes the optimizer's running counters.
type OptimizationMetrics struct {
	TotalCostSaved    float64 `json:"totalCostSaved"`
	TotalTokensSaved  int     `json:"totalTokensSaved"`
	CacheHits         int     `json:"cacheHits"`
	CacheMisses       int     `json:"cacheMisses"`
	CacheHitRate      float64 `json:"cacheHitRate"`
	CompressionUses   int     `json:"compressionUses"`
	BatchOperations   int     `json:"batchOperations"`
	TotalCacheEntries int     `json:"totalCacheEntries"`
}

// RoutingDecision is the model chosen for a request and why.
type RoutingDecision struct {
	Model            string        `json:"model"`
	Reasoning        string        `json:"reasoning"`
	EstimatedTokens  int           `json:"estimatedTokens"`
	EstimatedCost    float64       `json:"estimatedCost"`
	EstimatedLatency time.Duration `json:"estimatedLatency"`
}
