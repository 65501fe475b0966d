// Package optimizer reduces request cost through response caching, context
// compression, prompt normalization, batching and model routing.
package optimizer

import (
	"sync"
	"time"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
	"github.com/j-veylop/tokenwatch/internal/pricing"
)

// Config holds configuration for the optimization engine.
type Config struct {
	CachingEnabled       bool
	CompressionEnabled   bool
	Strategy             string
	CompressionThreshold int // estimated context tokens
	QualityThreshold     float64
	MaxCacheSize         int
	CacheTTL             time.Duration // zero disables expiry
	BatchSize            int
	BatchDelay           time.Duration
	RoutingQualityFloor  float64
	Routes               []Route
	Clock                func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CachingEnabled:       true,
		CompressionEnabled:   true,
		Strategy:             StrategySemantic,
		CompressionThreshold: 800_000,
		QualityThreshold:     0.85,
		MaxCacheSize:         1000,
		CacheTTL:             time.Hour,
		BatchSize:            5,
		BatchDelay:           time.Second,
		RoutingQualityFloor:  0.8,
	}
}

// Options adjusts a single OptimizeRequest call.
type Options struct {
	SkipCache       bool
	SkipCompression bool
	// Strategy overrides the configured compression strategy.
	Strategy string
	// CompressionThreshold overrides the configured token ceiling when positive.
	CompressionThreshold int
}

// counters are the running totals behind OptimizationMetrics.
type counters struct {
	cacheHits        int
	cacheMisses      int
	compressionUses  int
	batchOperations  int
	totalTokensSaved int
	totalCostSaved   float64
}

// Engine runs the cache, compress and normalize pipeline. All state,
// including the running counters, is owned by the instance.
type Engine struct {
	cache       map[string]*cacheItem
	compressors map[string]Compressor
	pricing     *pricing.Registry
	routes      []Route
	counters    counters
	seq         uint64
	config      Config
	now         func() time.Time
	mu          sync.Mutex
}

// New creates an optimization engine. A nil registry uses the default pricing.
func New(registry *pricing.Registry, config Config) *Engine {
	defaults := DefaultConfig()
	if config.Strategy == "" {
		config.Strategy = defaults.Strategy
	}
	if config.CompressionThreshold <= 0 {
		config.CompressionThreshold = defaults.CompressionThreshold
	}
	if config.QualityThreshold <= 0 {
		config.QualityThreshold = defaults.QualityThreshold
	}
	if config.MaxCacheSize <= 0 {
		config.MaxCacheSize = defaults.MaxCacheSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RoutingQualityFloor <= 0 {
		config.RoutingQualityFloor = defaults.RoutingQualityFloor
	}
	if registry == nil {
		registry = pricing.Default()
	}

	routes := config.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		cache:       make(map[string]*cacheItem),
		compressors: make(map[string]Compressor),
		pricing:     registry,
		routes:      routes,
		config:      config,
		now:         now,
	}
	for _, c := range builtinCompressors() {
		e.compressors[c.Name()] = c
	}
	return e
}

// OptimizeRequest runs the pipeline for one request. A cache hit returns
// immediately with the stored savings, empty optimized strings and the
// cached response; the caller must not execute the request again.
func (e *Engine) OptimizeRequest(contextText, prompt string, opts Options) models.OptimizedRequest {
	key := CacheKey(contextText, prompt)
	result := models.OptimizedRequest{CacheKey: key}

	if e.config.CachingEnabled && !opts.SkipCache {
		if entry, ok := e.lookup(key); ok {
			response := entry.Response
			result.CacheHit = true
			result.Cached = &response
			result.TokensSaved = entry.TokensSaved
			result.EstimatedCostSaving = entry.CostSaved
			return result
		}
	}

	result.OptimizedContext = contextText

	threshold := e.config.CompressionThreshold
	if opts.CompressionThreshold > 0 {
		threshold = opts.CompressionThreshold
	}
	if e.config.CompressionEnabled && !opts.SkipCompression && pricing.EstimateTokens(contextText) > threshold {
		strategy := opts.Strategy
		if strategy == "" {
			strategy = e.config.Strategy
		}

		compressed, res, err := e.Compress(contextText, strategy)
		if err != nil {
			logger.Warn("compression skipped", "strategy", strategy, "error", err)
		} else {
			saved := pricing.EstimateTokens(contextText) - pricing.EstimateTokens(compressed)
			costSaved := float64(saved) / 1_000_000 * pricing.ReferenceInputPerMTok

			result.OptimizedContext = compressed
			result.CompressionUsed = true
			result.Compression = &res
			result.TokensSaved = saved
			result.EstimatedCostSaving = costSaved

			e.mu.Lock()
			e.counters.compressionUses++
			e.counters.totalTokensSaved += saved
			e.counters.totalCostSaved += costSaved
			e.mu.Unlock()

			logger.Debug("context compressed",
				"technique", res.Technique, "ratio", res.CompressionRatio, "tokensSaved", saved)
		}
	}

	result.OptimizedPrompt = NormalizePrompt(prompt)
	return result
}

// OptimizationMetrics returns a snapshot of the running counters.
func (e *Engine) OptimizationMetrics() models.OptimizationMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.counters
	metrics := models.OptimizationMetrics{
		TotalCostSaved:    c.totalCostSaved,
		TotalTokensSaved:  c.totalTokensSaved,
		CacheHits:         c.cacheHits,
		CacheMisses:       c.cacheMisses,
		CompressionUses:   c.compressionUses,
		BatchOperations:   c.batchOperations,
		TotalCacheEntries: len(e.cache),
	}
	if lookups := c.cacheHits + c.cacheMisses; lookups > 0 {
		metrics.CacheHitRate = float64(c.cacheHits) / float64(lookups)
	}
	return metrics
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}
