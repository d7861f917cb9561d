// Package config provides unified configuration for the Tributary backfill
// job.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for one backfill invocation.
type Config struct {
	// DataDir is the base directory for local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the path to the events database (defaults under DataDir)
	DBPath string `json:"db_path" yaml:"db_path"`

	// Fetch configuration
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Backfill configuration
	Backfill BackfillConfig `json:"backfill" yaml:"backfill"`
}

// FetchConfig holds event-fetch configuration.
type FetchConfig struct {
	// Region is the AWS region of the publisher event buckets
	Region string `json:"region" yaml:"region"`

	// Endpoint is an optional custom S3 endpoint (MinIO, LocalStack)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// BucketPrefix is prepended to each publisher slug to form its bucket name
	BucketPrefix string `json:"bucket_prefix" yaml:"bucket_prefix"`

	// Concurrency is the number of parallel object downloads
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// SpoolDir is the local download cache directory (empty disables spooling)
	SpoolDir string `json:"spool_dir" yaml:"spool_dir"`
}

// BackfillConfig holds batching configuration.
type BackfillConfig struct {
	// BatchSizeHours is the number of hour buckets processed per batch
	BatchSizeHours int `json:"batch_size_hours" yaml:"batch_size_hours"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tributary",
		Fetch: FetchConfig{
			Region:      "us-east-1",
			Concurrency: 4,
		},
		Backfill: BackfillConfig{
			BatchSizeHours: 1,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tributary"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "events.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Backfill.BatchSizeHours < 1 {
		return fmt.Errorf("backfill.batch_size_hours must be at least 1, got %d", c.Backfill.BatchSizeHours)
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.DBPath)}
	if c.Fetch.SpoolDir != "" {
		dirs = append(dirs, c.Fetch.SpoolDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TRIBUTARY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TRIBUTARY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRIBUTARY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	// Fetch configuration
	if v := os.Getenv("TRIBUTARY_FETCH_REGION"); v != "" {
		cfg.Fetch.Region = v
	}
	if v := os.Getenv("TRIBUTARY_FETCH_ENDPOINT"); v != "" {
		cfg.Fetch.Endpoint = v
	}
	if v := os.Getenv("TRIBUTARY_FETCH_USE_PATH_STYLE"); v != "" {
		cfg.Fetch.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("TRIBUTARY_FETCH_BUCKET_PREFIX"); v != "" {
		cfg.Fetch.BucketPrefix = v
	}
	if v := os.Getenv("TRIBUTARY_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.Concurrency = n
		}
	}
	if v := os.Getenv("TRIBUTARY_FETCH_SPOOL_DIR"); v != "" {
		cfg.Fetch.SpoolDir = v
	}

	// Backfill configuration
	if v := os.Getenv("TRIBUTARY_BACKFILL_BATCH_SIZE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backfill.BatchSizeHours = n
		}
	}
}
