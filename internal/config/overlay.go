package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/j-veylop/tokenwatch/internal/logger"
	"github.com/j-veylop/tokenwatch/internal/models"
)

// Duration is a time.Duration decoded from TOML strings like "30s".
// A bare number is read as seconds.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if v, err := time.ParseDuration(s); err == nil {
		d.Duration = v
		return nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

// Overlay is a partial configuration. Nil fields leave the base value untouched.
type Overlay struct {
	Environment   *string               `toml:"environment"`
	LogLevel      *string               `toml:"log_level"`
	CostAnalysis  *CostAnalysisOverlay  `toml:"cost_analysis"`
	Monitoring    *MonitoringOverlay    `toml:"monitoring"`
	Optimization  *OptimizationOverlay  `toml:"optimization"`
	Benchmarking  *BenchmarkingOverlay  `toml:"benchmarking"`
	API           *APIOverlay           `toml:"api"`
	Notifications *NotificationsOverlay `toml:"notifications"`
}

// CostAnalysisOverlay overrides CostAnalysisConfig fields.
type CostAnalysisOverlay struct {
	BudgetLimit     *float64 `toml:"budget_limit"`
	DailyBudget     *float64 `toml:"daily_budget"`
	AlertThreshold  *float64 `toml:"alert_threshold"`
	TrackingEnabled *bool    `toml:"tracking_enabled"`
}

// RangeOverlay overrides a Range.
type RangeOverlay struct {
	Warning  *float64 `toml:"warning"`
	Critical *float64 `toml:"critical"`
}

// ThresholdsOverlay overrides Thresholds fields.
type ThresholdsOverlay struct {
	ResponseTime         *RangeOverlay `toml:"response_time"`
	ErrorRate            *RangeOverlay `toml:"error_rate"`
	ThroughputMin        *float64      `toml:"throughput_min"`
	ContextProcessingMax *float64      `toml:"context_processing_max"`
	TokenProcessingMin   *float64      `toml:"token_processing_min"`
}

// MonitoringOverlay overrides MonitoringConfig fields.
type MonitoringOverlay struct {
	Enabled        *bool              `toml:"enabled"`
	Interval       *Duration          `toml:"interval"`
	AlertsEnabled  *bool              `toml:"alerts_enabled"`
	RetentionHours *int               `toml:"retention_hours"`
	Thresholds     *ThresholdsOverlay `toml:"thresholds"`
}

// OptimizationOverlay overrides OptimizationConfig fields.
type OptimizationOverlay struct {
	CachingEnabled       *bool     `toml:"caching_enabled"`
	CompressionEnabled   *bool     `toml:"compression_enabled"`
	CompressionStrategy  *string   `toml:"compression_strategy"`
	BatchingEnabled      *bool     `toml:"batching_enabled"`
	BatchSize            *int      `toml:"batch_size"`
	BatchDelay           *Duration `toml:"batch_delay"`
	MaxCacheSize         *int      `toml:"max_cache_size"`
	CacheTTL             *Duration `toml:"cache_ttl"`
	CompressionThreshold *int      `toml:"compression_threshold"`
	QualityThreshold     *float64  `toml:"quality_threshold"`
	RoutingQualityFloor  *float64  `toml:"routing_quality_floor"`
}

// BenchmarkingOverlay overrides BenchmarkingConfig fields.
type BenchmarkingOverlay struct {
	AutoRunEnabled        *bool                      `toml:"auto_run_enabled"`
	ScheduleIntervalHours *int                       `toml:"schedule_interval_hours"`
	CustomScenarios       []models.BenchmarkScenario `toml:"custom_scenarios"`
	SimulationSpeedup     *float64                   `toml:"simulation_speedup"`
	ErrorRate             *float64                   `toml:"error_rate"`
	Seed                  *uint64                    `toml:"seed"`
}

// APIOverlay overrides APIConfig fields.
type APIOverlay struct {
	RequestsPerMinute *int `toml:"requests_per_minute"`
}

// NotificationsOverlay overrides NotificationsConfig fields.
type NotificationsOverlay struct {
	DesktopEnabled *bool `toml:"desktop_enabled"`
}

// LoadFile decodes a TOML overlay. Unknown keys are logged and ignored.
func LoadFile(path string) (*Overlay, error) {
	var o Overlay
	md, err := toml.DecodeFile(path, &o)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("unknown config key", "path", path, "key", key.String())
	}
	return &o, nil
}

// Merge applies every non-nil overlay field onto cfg.
func Merge(cfg *Config, o *Overlay) {
	if cfg == nil || o == nil {
		return
	}

	set(&cfg.Environment, o.Environment)
	set(&cfg.LogLevel, o.LogLevel)

	if c := o.CostAnalysis; c != nil {
		set(&cfg.CostAnalysis.BudgetLimit, c.BudgetLimit)
		set(&cfg.CostAnalysis.DailyBudget, c.DailyBudget)
		set(&cfg.CostAnalysis.AlertThreshold, c.AlertThreshold)
		set(&cfg.CostAnalysis.TrackingEnabled, c.TrackingEnabled)
	}

	if m := o.Monitoring; m != nil {
		set(&cfg.Monitoring.Enabled, m.Enabled)
		setDuration(&cfg.Monitoring.Interval, m.Interval)
		set(&cfg.Monitoring.AlertsEnabled, m.AlertsEnabled)
		set(&cfg.Monitoring.RetentionHours, m.RetentionHours)
		if t := m.Thresholds; t != nil {
			mergeRange(&cfg.Monitoring.Thresholds.ResponseTime, t.ResponseTime)
			mergeRange(&cfg.Monitoring.Thresholds.ErrorRate, t.ErrorRate)
			set(&cfg.Monitoring.Thresholds.ThroughputMin, t.ThroughputMin)
			set(&cfg.Monitoring.Thresholds.ContextProcessingMax, t.ContextProcessingMax)
			set(&cfg.Monitoring.Thresholds.TokenProcessingMin, t.TokenProcessingMin)
		}
	}

	if op := o.Optimization; op != nil {
		set(&cfg.Optimization.CachingEnabled, op.CachingEnabled)
		set(&cfg.Optimization.CompressionEnabled, op.CompressionEnabled)
		set(&cfg.Optimization.CompressionStrategy, op.CompressionStrategy)
		set(&cfg.Optimization.BatchingEnabled, op.BatchingEnabled)
		set(&cfg.Optimization.BatchSize, op.BatchSize)
		setDuration(&cfg.Optimization.BatchDelay, op.BatchDelay)
		set(&cfg.Optimization.MaxCacheSize, op.MaxCacheSize)
		setDuration(&cfg.Optimization.CacheTTL, op.CacheTTL)
		set(&cfg.Optimization.CompressionThreshold, op.CompressionThreshold)
		set(&cfg.Optimization.QualityThreshold, op.QualityThreshold)
		set(&cfg.Optimization.RoutingQualityFloor, op.RoutingQualityFloor)
	}

	if b := o.Benchmarking; b != nil {
		set(&cfg.Benchmarking.AutoRunEnabled, b.AutoRunEnabled)
		set(&cfg.Benchmarking.ScheduleIntervalHours, b.ScheduleIntervalHours)
		if b.CustomScenarios != nil {
			cfg.Benchmarking.CustomScenarios = append([]models.BenchmarkScenario(nil), b.CustomScenarios...)
		}
		set(&cfg.Benchmarking.SimulationSpeedup, b.SimulationSpeedup)
		set(&cfg.Benchmarking.ErrorRate, b.ErrorRate)
		set(&cfg.Benchmarking.Seed, b.Seed)
	}

	if a := o.API; a != nil {
		set(&cfg.API.RequestsPerMinute, a.RequestsPerMinute)
	}

	if n := o.Notifications; n != nil {
		set(&cfg.Notifications.DesktopEnabled, n.DesktopEnabled)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

func mergeRange(dst *Range, src *RangeOverlay) {
	if src == nil {
		return
	}
	set(&dst.Warning, src.Warning)
	set(&dst.Critical, src.Critical)
}
