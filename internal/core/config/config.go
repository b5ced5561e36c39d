package config

import (
	"fmt"
	"time"

	redisclient "github.com/vietddude/doctrans/internal/infra/redis"
	"github.com/vietddude/doctrans/internal/infra/storage/postgres"
)

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or a bare integer of
// nanoseconds.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var ns int64
	if err := unmarshal(&ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Pipeline PipelineConfig     `yaml:"pipeline"`
	Recovery RecoveryConfig     `yaml:"recovery"`
	Download DownloadConfig     `yaml:"download"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	MaxConcurrentJobs      int      `yaml:"max_concurrent_jobs"`
	JobTimeout             Duration `yaml:"job_timeout"`
	SweepInterval          Duration `yaml:"sweep_interval"`
	MaxJobHistory          int      `yaml:"max_job_history"`
	MaxRetries             int      `yaml:"max_retries"`
	SkipQualityAssessment  bool     `yaml:"skip_quality_assessment"`
	QualityThreshold       float64  `yaml:"quality_threshold"`
	ProximityThreshold     float64  `yaml:"proximity_threshold"`
	TranslationServiceURL  string   `yaml:"translation_service_url"`
	SupportedLanguagePairs []string `yaml:"supported_language_pairs"` // "en:vi" entries, empty = all
}

// RecoveryConfig holds error-recovery settings.
type RecoveryConfig struct {
	MaxAttemptsPerJob   int      `yaml:"max_attempts_per_job"`
	StrategyTimeout     Duration `yaml:"strategy_timeout"`
	MaxRetries          int      `yaml:"max_retries"`
	BackoffFactor       float64  `yaml:"backoff_factor"`
	FallbackServices    []string `yaml:"fallback_services"`
	LayoutAdjustmentCap float64  `yaml:"layout_adjustment_cap"`
	QualityFloor        float64  `yaml:"quality_floor"`
	QualityStep         float64  `yaml:"quality_step"`
}

// DownloadConfig holds settings for packaged output files.
type DownloadConfig struct {
	Directory string   `yaml:"directory"`
	LinkTTL   Duration `yaml:"link_ttl"`
}
