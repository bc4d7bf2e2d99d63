// Package config loads brewlog settings from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brewlog/internal/retry"
)

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "brewlog.yaml"

// Queue backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all configuration values for the application.
type Config struct {
	// SQLite database file
	Database string `yaml:"database"`

	Log     LogConfig     `yaml:"log"`
	Queue   QueueConfig   `yaml:"queue"`
	Retry   RetryConfig   `yaml:"retry"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`

	// File holding the host boot id
	BootIDPath string `yaml:"boot_id_path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// QueueConfig selects and tunes the deferred-task facility.
type QueueConfig struct {
	Backend      string        `yaml:"backend"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Concurrency  int           `yaml:"concurrency"`
	Lease        time.Duration `yaml:"lease"`
}

// RetryConfig bounds retries of transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen address for /metrics; empty disables the endpoint
	Addr string `yaml:"addr"`
}

// NotifyConfig tunes notification text.
type NotifyConfig struct {
	// Shown when an alarm's batch can no longer be found
	PlaceholderBatchName string `yaml:"placeholder_batch_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "brewlog.db",
		Log:      LogConfig{Level: "info", Format: "text"},
		Queue: QueueConfig{
			Backend:      BackendSQLite,
			PollInterval: time.Second,
			Concurrency:  2,
			Lease:        time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: retry.Default.MaxAttempts,
			BaseDelay:   retry.Default.BaseDelay,
			MaxDelay:    retry.Default.MaxDelay,
		},
		Notify:     NotifyConfig{PlaceholderBatchName: "Unknown Batch"},
		BootIDPath: "/proc/sys/kernel/random/boot_id",
	}
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. An empty path reads DefaultPath if it exists.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if v := getenv("BREWLOG_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := getenv("BREWLOG_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration for values the components cannot run
// with.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database: must not be empty"))
	}
	switch c.Queue.Backend {
	case BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("queue.backend: unknown backend %q (want sqlite or memory)", c.Queue.Backend))
	}
	if c.Queue.PollInterval <= 0 {
		errs = append(errs, errors.New("queue.poll_interval: must be positive"))
	}
	if c.Queue.Concurrency <= 0 {
		errs = append(errs, errors.New("queue.concurrency: must be positive"))
	}
	if c.Queue.Lease <= 0 {
		errs = append(errs, errors.New("queue.lease: must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.max_attempts: must be positive"))
	}
	if c.Retry.BaseDelay <= 0 {
		errs = append(errs, errors.New("retry.base_delay: must be positive"))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry.max_delay: must not be below base_delay"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry section.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
	}
}
