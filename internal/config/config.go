// Package config provides configuration parsing and validation for the ORION engine.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds all configuration parameters for the ORION engine.
type Config struct {
	HTTPPort            string
	PostgresDSN         string
	RedisAddr           string // empty disables Redis metrics reporting
	KafkaBrokers        string // empty disables event publishing
	AlertEventsTopic    string
	GenerateTimeout     time.Duration
	SnapshotConcurrency int
	LogLevel            string
	RunMigrations       bool
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.KafkaBrokers != "" && c.AlertEventsTopic == "" {
		return fmt.Errorf("alert-events-topic cannot be empty when kafka-brokers is set")
	}
	if c.GenerateTimeout <= 0 {
		return fmt.Errorf("generate-timeout must be greater than 0")
	}
	if c.SnapshotConcurrency <= 0 {
		return fmt.Errorf("snapshot-concurrency must be greater than 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// EventsEnabled reports whether alert lifecycle events should be published.
func (c *Config) EventsEnabled() bool {
	return c.KafkaBrokers != ""
}

// MetricsEnabled reports whether metrics should be reported to Redis.
func (c *Config) MetricsEnabled() bool {
	return c.RedisAddr != ""
}

// ParseLogLevel maps a log level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log-level: %s", level)
	}
}
