// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

// Package config loads and validates the Meet Tracker configuration using
// Koanf v2 with layered sources: built-in defaults, an optional YAML
// config file, and environment-variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the embedded BadgerDB store.
type DatabaseConfig struct {
	// Path is the Badger directory. Empty disables persistence entirely
	// (registry-only mode), which is only useful for tooling.
	Path string `koanf:"path"`

	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio" validate:"gt=0,lte=1"`

	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// TrackerConfig carries the session lifecycle policy constants.
type TrackerConfig struct {
	RecoveryWindow    time.Duration `koanf:"recovery_window"`
	AutosaveInterval  time.Duration `koanf:"autosave_interval"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	FailedSaveGrace   time.Duration `koanf:"failed_save_grace"`
	AutosaveRate      float64       `koanf:"autosave_rate"`
}

// SecurityConfig configures authentication and the HTTP rate limits.
type SecurityConfig struct {
	// AuthMode is "none" (default) or "jwt".
	AuthMode          string        `koanf:"auth_mode" validate:"oneof=none jwt"`
	JWTSecret         string        `koanf:"jwt_secret"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3857,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:           "/data/meet-tracker",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
			RetryAttempts:  3,
			RetryDelay:     50 * time.Millisecond,
		},
		Tracker: TrackerConfig{
			RecoveryWindow:    8 * time.Hour,
			AutosaveInterval:  30 * time.Second,
			HeartbeatInterval: 20 * time.Second,
			FailedSaveGrace:   5 * time.Minute,
			AutosaveRate:      20,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks structural constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Security.AuthMode == "jwt" {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("config validation: security.jwt_secret must be at least 32 characters in jwt mode")
		}
		if c.Security.AdminUsername == "" || c.Security.AdminPasswordHash == "" {
			return fmt.Errorf("config validation: security.admin_username and security.admin_password_hash are required in jwt mode")
		}
	}

	if c.Tracker.RecoveryWindow <= 0 {
		return fmt.Errorf("config validation: tracker.recovery_window must be positive")
	}
	return nil
}
