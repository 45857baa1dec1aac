//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-starload.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for pgedge-starload.
type Config struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// DataDir is the directory holding the raw CSV extracts.
	DataDir string `mapstructure:"data_dir"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFormat selects console ("pretty") or "json" log output.
	LogFormat string `mapstructure:"log_format"`

	// Sources overrides the file name of individual extracts, keyed by
	// source name.
	Sources map[string]string `mapstructure:"sources"`

	// Load holds configuration for the warehouse load.
	Load LoadConfig `mapstructure:"load"`

	// Pipeline holds configuration for the transform and build phases.
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Generate holds configuration for the generate subcommand.
	Generate GenerateConfig `mapstructure:"generate"`
}

// LoadConfig holds configuration for the transactional load.
type LoadConfig struct {
	// CopyBatchSize is the number of rows sent per COPY.
	CopyBatchSize int `mapstructure:"copy_batch_size"`

	// ProgressInterval is how many rows pass between progress log lines.
	ProgressInterval int `mapstructure:"progress_interval"`
}

// PipelineConfig holds configuration for the in-memory phases.
type PipelineConfig struct {
	// ParallelTransform runs the independent cleaners concurrently.
	ParallelTransform bool `mapstructure:"parallel_transform"`

	// MaxUnresolvedRatio fails the build when a fact foreign-key column has
	// a larger share of unresolved keys (0 = disabled).
	MaxUnresolvedRatio float64 `mapstructure:"max_unresolved_ratio"`
}

// GenerateConfig holds configuration for synthetic extract generation.
type GenerateConfig struct {
	// Orders is the number of orders to generate.
	Orders int `mapstructure:"orders"`

	// Seed makes the output reproducible (0 = random).
	Seed uint64 `mapstructure:"seed"`

	// DuplicateRatio is the share of rows repeated in each file.
	DuplicateRatio float64 `mapstructure:"duplicate_ratio"`

	// NoiseRatio is the probability of injecting a dirty value.
	NoiseRatio float64 `mapstructure:"noise_ratio"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir:   "data",
		LogLevel:  "info",
		LogFormat: "pretty",
		Load: LoadConfig{
			CopyBatchSize:    5000,
			ProgressInterval: 100000,
		},
		Pipeline: PipelineConfig{
			ParallelTransform:  true,
			MaxUnresolvedRatio: 0,
		},
		Generate: GenerateConfig{
			Orders:         1000,
			DuplicateRatio: 0.01,
			NoiseRatio:     0.02,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-starload.yaml
// 3. ~/.config/pgedge-starload/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-starload")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-starload"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'pretty' or 'json'")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Load.CopyBatchSize < 1 {
		return fmt.Errorf("copy_batch_size must be at least 1")
	}
	if c.Load.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval must be non-negative")
	}
	if c.Pipeline.MaxUnresolvedRatio < 0 || c.Pipeline.MaxUnresolvedRatio > 1 {
		return fmt.Errorf("max_unresolved_ratio must be between 0 and 1")
	}
	return nil
}

// ValidateStatus checks configuration required for the status command.
func (c *Config) ValidateStatus() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateGenerate checks configuration required for the generate command.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Generate.Orders < 1 {
		return fmt.Errorf("orders must be at least 1")
	}
	if c.Generate.DuplicateRatio < 0 || c.Generate.DuplicateRatio > 1 {
		return fmt.Errorf("duplicate_ratio must be between 0 and 1")
	}
	if c.Generate.NoiseRatio < 0 || c.Generate.NoiseRatio > 1 {
		return fmt.Errorf("noise_ratio must be between 0 and 1")
	}
	return nil
}
