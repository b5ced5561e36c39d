package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Pipeline.MaxConcurrentJobs == 0 {
		cfg.Pipeline.MaxConcurrentJobs = 5
	}
	if cfg.Pipeline.JobTimeout == 0 {
		cfg.Pipeline.JobTimeout = Duration(30 * time.Minute)
	}
	if cfg.Pipeline.SweepInterval == 0 {
		cfg.Pipeline.SweepInterval = Duration(time.Minute)
	}
	if cfg.Pipeline.MaxJobHistory == 0 {
		cfg.Pipeline.MaxJobHistory = 100
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 3
	}
	if cfg.Pipeline.QualityThreshold == 0 {
		cfg.Pipeline.QualityThreshold = 0.8
	}
	if cfg.Pipeline.ProximityThreshold == 0 {
		cfg.Pipeline.ProximityThreshold = 100
	}

	if cfg.Recovery.MaxAttemptsPerJob == 0 {
		cfg.Recovery.MaxAttemptsPerJob = 5
	}
	if cfg.Recovery.StrategyTimeout == 0 {
		cfg.Recovery.StrategyTimeout = Duration(5 * time.Minute)
	}
	if cfg.Recovery.MaxRetries == 0 {
		cfg.Recovery.MaxRetries = 3
	}
	if cfg.Recovery.BackoffFactor == 0 {
		cfg.Recovery.BackoffFactor = 2.0
	}
	if cfg.Recovery.QualityFloor == 0 {
		cfg.Recovery.QualityFloor = 0.5
	}
	if cfg.Recovery.QualityStep == 0 {
		cfg.Recovery.QualityStep = 0.1
	}

	if cfg.Download.Directory == "" {
		cfg.Download.Directory = "downloads"
	}
	if cfg.Download.LinkTTL == 0 {
		cfg.Download.LinkTTL = Duration(24 * time.Hour)
	}

	return &cfg, nil
}
