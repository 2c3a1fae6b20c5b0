// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package config loads layered configuration: struct defaults, then an
// optional YAML file, then environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for both the server and the sync agent.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Storage  StorageConfig  `koanf:"storage"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds token signing and API protection settings.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig holds the durable document store location.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// SyncConfig holds client-side sync agent settings.
type SyncConfig struct {
	ServerURL      string        `koanf:"server_url"`
	DebounceWindow time.Duration `koanf:"debounce_window"`
	Email          string        `koanf:"email"`
	Password       string        `koanf:"password"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks required fields and value ranges. Called after all layers
// are applied, so file and env overrides are validated too.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required (set JWT_SECRET)")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive, got %s", c.Security.SessionTimeout)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Sync.DebounceWindow <= 0 {
		return fmt.Errorf("sync.debounce_window must be positive, got %s", c.Sync.DebounceWindow)
	}
	return nil
}
