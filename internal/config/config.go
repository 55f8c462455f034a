// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package config loads and validates Shotcaster configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Environment variables
//  2. Optional YAML config file
//  3. Built-in defaults
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Shotcaster server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	SSE      SSEConfig      `koanf:"sse"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Database DatabaseConfig `koanf:"database"`
	History  HistoryConfig  `koanf:"history"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment selects runtime behavior: "development" enables the SSE
	// inactivity sweep that guards against hot-reload client accumulation.
	Environment string `koanf:"environment" validate:"oneof=development production"`
}

// SSEConfig holds broadcast manager settings.
type SSEConfig struct {
	// MaxClients bounds the subscriber registry. Registrations past the
	// bound evict the least-recently-active clients.
	MaxClients int `koanf:"max_clients" validate:"gte=1"`

	// PingInterval is the dead-connection sweep cadence.
	PingInterval time.Duration `koanf:"ping_interval"`

	// InactivityWindow is how long a client may stay silent before the
	// development-only inactivity sweep removes it.
	InactivityWindow time.Duration `koanf:"inactivity_window"`
}

// GeoIPConfig holds geo-resolution cache settings.
type GeoIPConfig struct {
	// SnapshotPath is where the on-disk cache snapshot lives.
	SnapshotPath string `koanf:"snapshot_path" validate:"required"`

	CacheCapacity int           `koanf:"cache_capacity" validate:"gte=1"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`

	// BatchURL is the upstream batch lookup endpoint.
	BatchURL string `koanf:"batch_url" validate:"required,url"`

	// BatchSize is the upstream per-request query ceiling.
	BatchSize int `koanf:"batch_size" validate:"gte=1,lte=100"`

	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RatePerMinute is the client-side request budget for the upstream
	// service (ip-api.com free tier allows 45/min).
	RatePerMinute int `koanf:"rate_per_minute" validate:"gte=1"`
}

// DatabaseConfig holds DuckDB settings for the access log.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// HistoryConfig holds the flat-file upload history settings.
type HistoryConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the configuration for structural and semantic errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Duration fields can't be covered by validator tags cleanly; check the
	// ones a zero value would break.
	if c.SSE.PingInterval <= 0 {
		return fmt.Errorf("sse.ping_interval must be positive, got %s", c.SSE.PingInterval)
	}
	if c.SSE.InactivityWindow <= 0 {
		return fmt.Errorf("sse.inactivity_window must be positive, got %s", c.SSE.InactivityWindow)
	}
	if c.GeoIP.CacheTTL <= 0 {
		return fmt.Errorf("geoip.cache_ttl must be positive, got %s", c.GeoIP.CacheTTL)
	}
	if c.GeoIP.RequestTimeout <= 0 {
		return fmt.Errorf("geoip.request_timeout must be positive, got %s", c.GeoIP.RequestTimeout)
	}

	return nil
}
