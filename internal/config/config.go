// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/tokenwatch/internal/models"
)

// Environment profile names.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Compression strategy names.
const (
	StrategySemantic      = "semantic"
	StrategyStructural    = "structural"
	StrategySummarization = "summarization"
	StrategyAdaptive      = "adaptive"
)

// Config holds the application configuration.
type Config struct {
	Environment   string
	LogLevel      string
	CostAnalysis  CostAnalysisConfig
	Monitoring    MonitoringConfig
	Optimization  OptimizationConfig
	Benchmarking  BenchmarkingConfig
	API           APIConfig
	Notifications NotificationsConfig
}

// CostAnalysisConfig controls spend tracking and budgets.
type CostAnalysisConfig struct {
	BudgetLimit     float64 // monthly USD, 0 disables forecasting status
	DailyBudget     float64 // USD, 0 disables the daily check
	AlertThreshold  float64 // percent of budget that counts as approaching
	TrackingEnabled bool
}

// Range is a warning/critical threshold pair.
type Range struct {
	Warning  float64
	Critical float64
}

// Thresholds are the monitor's alerting limits.
type Thresholds struct {
	ResponseTime         Range // ms
	ErrorRate            Range // 0..1
	ThroughputMin        float64
	ContextProcessingMax float64 // ms
	TokenProcessingMin   float64
}

// MonitoringConfig controls the performance monitor.
type MonitoringConfig struct {
	Enabled        bool
	Interval       time.Duration
	AlertsEnabled  bool
	RetentionHours int
	Thresholds     Thresholds
}

// OptimizationConfig controls caching, compression, batching and routing.
type OptimizationConfig struct {
	CachingEnabled       bool
	CompressionEnabled   bool
	CompressionStrategy  string
	BatchingEnabled      bool
	BatchSize            int
	BatchDelay           time.Duration
	MaxCacheSize         int
	CacheTTL             time.Duration
	CompressionThreshold int // estimated context tokens
	QualityThreshold     float64
	RoutingQualityFloor  float64
}

// BenchmarkingConfig controls benchmark scheduling and simulation.
type BenchmarkingConfig struct {
	AutoRunEnabled        bool
	ScheduleIntervalHours int
	CustomScenarios       []models.BenchmarkScenario
	SimulationSpeedup     float64
	ErrorRate             float64
	Seed                  uint64
}

// APIConfig controls outbound request pacing.
type APIConfig struct {
	RequestsPerMinute int // 0 disables rate limiting
}

// NotificationsConfig controls alert delivery.
type NotificationsConfig struct {
	DesktopEnabled bool
}

// Default returns the development profile.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		LogLevel:    "info",
		CostAnalysis: CostAnalysisConfig{
			BudgetLimit:     200,
			DailyBudget:     10,
			AlertThreshold:  80,
			TrackingEnabled: true,
		},
		Monitoring: MonitoringConfig{
			Enabled:        true,
			Interval:       time.Minute,
			AlertsEnabled:  true,
			RetentionHours: 24,
			Thresholds: Thresholds{
				ResponseTime:         Range{Warning: 15000, Critical: 30000},
				ErrorRate:            Range{Warning: 0.02, Critical: 0.05},
				ThroughputMin:        1,
				ContextProcessingMax: 10000,
				TokenProcessingMin:   100,
			},
		},
		Optimization: OptimizationConfig{
			CachingEnabled:       true,
			CompressionEnabled:   true,
			CompressionStrategy:  StrategySemantic,
			BatchingEnabled:      false,
			BatchSize:            5,
			BatchDelay:           time.Second,
			MaxCacheSize:         1000,
			CacheTTL:             time.Hour,
			CompressionThreshold: 800_000,
			QualityThreshold:     0.85,
			RoutingQualityFloor:  0.8,
		},
		Benchmarking: BenchmarkingConfig{
			AutoRunEnabled:        false,
			ScheduleIntervalHours: 24,
			SimulationSpeedup:     1000,
			ErrorRate:             0.02,
		},
		Notifications: NotificationsConfig{
			DesktopEnabled: true,
		},
	}
}

// ForEnvironment returns the profile for env. Unknown names get the development profile.
func ForEnvironment(env string) *Config {
	cfg := Default()

	switch strings.ToLower(env) {
	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.CostAnalysis.BudgetLimit = 1000
		cfg.CostAnalysis.DailyBudget = 50
		cfg.CostAnalysis.AlertThreshold = 75
		cfg.Monitoring.Interval = 30 * time.Second
		cfg.Monitoring.Thresholds.ResponseTime = Range{Warning: 8000, Critical: 20000}
		cfg.Monitoring.Thresholds.ErrorRate = Range{Warning: 0.03, Critical: 0.08}
		cfg.Optimization.CompressionStrategy = StrategyAdaptive
		cfg.Optimization.QualityThreshold = 0.9
		cfg.Optimization.MaxCacheSize = 5000
		cfg.Optimization.CacheTTL = 2 * time.Hour
		cfg.Optimization.BatchingEnabled = true
		cfg.Optimization.BatchSize = 8
		cfg.Optimization.RoutingQualityFloor = 0.85
		cfg.Benchmarking.AutoRunEnabled = true
		cfg.API.RequestsPerMinute = 200

	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.LogLevel = "warn"
		cfg.CostAnalysis.BudgetLimit = 10000
		cfg.CostAnalysis.DailyBudget = 500
		cfg.CostAnalysis.AlertThreshold = 70
		cfg.Monitoring.Interval = 10 * time.Second
		cfg.Monitoring.Thresholds = Thresholds{
			ResponseTime:         Range{Warning: 5000, Critical: 15000},
			ErrorRate:            Range{Warning: 0.01, Critical: 0.05},
			ThroughputMin:        2,
			ContextProcessingMax: 10000,
			TokenProcessingMin:   200,
		}
		cfg.Optimization.CompressionStrategy = StrategyAdaptive
		cfg.Optimization.QualityThreshold = 0.9
		cfg.Optimization.MaxCacheSize = 10000
		cfg.Optimization.CacheTTL = 4 * time.Hour
		cfg.Optimization.BatchingEnabled = true
		cfg.Optimization.BatchSize = 10
		cfg.Optimization.BatchDelay = 500 * time.Millisecond
		cfg.Optimization.RoutingQualityFloor = 0.9
		cfg.Benchmarking.AutoRunEnabled = true
		cfg.Benchmarking.ScheduleIntervalHours = 168
		cfg.API.RequestsPerMinute = 500
		cfg.Notifications.DesktopEnabled = false
	}

	return cfg
}

// AlertRules converts the thresholds into monitor rules.
func (t Thresholds) AlertRules() []models.AlertThresholdRule {
	return []models.AlertThresholdRule{
		{Metric: models.MetricResponseTime, Threshold: t.ResponseTime.Critical, Operator: models.OpGreater, Severity: models.SeverityHigh},
		{Metric: models.MetricErrorRate, Threshold: t.ErrorRate.Critical, Operator: models.OpGreater, Severity: models.SeverityCritical},
		{Metric: models.MetricThroughput, Threshold: t.ThroughputMin, Operator: models.OpLess, Severity: models.SeverityMedium},
		{Metric: models.MetricContextProcessingTime, Threshold: t.ContextProcessingMax, Operator: models.OpGreater, Severity: models.SeverityMedium},
		{Metric: models.MetricTokenProcessingRate, Threshold: t.TokenProcessingMin, Operator: models.OpLess, Severity: models.SeverityLow},
	}
}

// Load reads configuration from .env files, an optional TOML file named by
// TOKENWATCH_CONFIG, and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	return LoadWithFile(os.Getenv("TOKENWATCH_CONFIG"))
}

// LoadWithFile builds the config for the TOKENWATCH_ENV profile, overlays the
// TOML file at path (if any), applies environment overrides and validates.
func LoadWithFile(path string) (*Config, error) {
	cfg := ForEnvironment(getEnvString("TOKENWATCH_ENV", EnvDevelopment))

	if path != "" {
		overlay, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		Merge(cfg, overlay)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.CostAnalysis.BudgetLimit = getEnvFloat("BUDGET_MONTHLY", cfg.CostAnalysis.BudgetLimit)
	cfg.CostAnalysis.DailyBudget = getEnvFloat("BUDGET_DAILY", cfg.CostAnalysis.DailyBudget)
	cfg.Monitoring.Enabled = getEnvBool("MONITORING_ENABLED", cfg.Monitoring.Enabled)
	cfg.Monitoring.Interval = getEnvDuration("MONITORING_INTERVAL", cfg.Monitoring.Interval)
	cfg.Optimization.MaxCacheSize = getEnvInt("CACHE_MAX_SIZE", cfg.Optimization.MaxCacheSize)
	cfg.API.RequestsPerMinute = getEnvInt("REQUESTS_PER_MINUTE", cfg.API.RequestsPerMinute)
	cfg.Notifications.DesktopEnabled = getEnvBool("DESKTOP_NOTIFICATIONS", cfg.Notifications.DesktopEnabled)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "tokenwatch", ".env"),
			filepath.Join(home, ".tokenwatch", ".env"),
		)
	}

	return paths
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
// Only an explicit "false"/"0"/"no" disables a default-on flag.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return defaultValue
	case "false", "0", "no", "off":
		return false
	case "true", "1", "yes", "on":
		return true
	default:
		return defaultValue
	}
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// String summarizes the active profile for logs.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s budget=%.2f monitoring=%t caching=%t compression=%s",
		c.Environment, c.CostAnalysis.BudgetLimit, c.Monitoring.Enabled,
		c.Optimization.CachingEnabled, c.Optimization.CompressionStrategy)
}
