// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package config provides layered configuration loading for PulseStream
// using Koanf v2: built-in defaults, an optional YAML file, and environment
// variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the server binary.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Database    DatabaseConfig    `koanf:"database"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
	Moderation  ModerationConfig  `koanf:"moderation"`
	Cache       CacheConfig       `koanf:"cache"`
	Upload      UploadConfig      `koanf:"upload"`
	API         APIConfig         `koanf:"api"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// JWTSecret signs session tokens (HS256). Required, minimum 32 chars.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername/AdminPassword seed the initial admin account on first
	// start when the user store is empty.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds the embedded record store settings.
type DatabaseConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (tests only).
	Path string `koanf:"path"`
}

// ObjectStoreConfig holds S3 settings for media payloads.
type ObjectStoreConfig struct {
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`

	// Endpoint overrides the S3 endpoint for MinIO or localstack setups.
	Endpoint string `koanf:"endpoint"`

	// SignedURLTTL is the lifetime of presigned streaming redirects.
	SignedURLTTL time.Duration `koanf:"signed_url_ttl"`
}

// ModerationConfig holds the content moderation job settings.
type ModerationConfig struct {
	// MinConfidence is the label confidence threshold in percent; labels
	// below it are not returned by the moderation service.
	MinConfidence float32 `koanf:"min_confidence"`

	// PollInterval is the delay between job status polls.
	PollInterval time.Duration `koanf:"poll_interval"`

	// PollTimeout bounds the overall wall-clock time of the polling loop.
	// Zero disables the bound and polls until the service reports a
	// terminal status.
	PollTimeout time.Duration `koanf:"poll_timeout"`

	// PollRatePerSecond throttles status polls across all concurrent
	// pipeline runs. Zero disables the throttle.
	PollRatePerSecond float64 `koanf:"poll_rate_per_second"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// UploadConfig holds upload validation settings.
type UploadConfig struct {
	// MaxSizeMB caps the multipart payload size.
	MaxSizeMB int64 `koanf:"max_size_mb"`

	// AllowedExtensions lists acceptable file extensions without dots.
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// APIConfig holds pagination settings.
type APIConfig struct {
	PageSize int `koanf:"page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would prevent the
// server from operating safely.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Moderation.MinConfidence < 0 || c.Moderation.MinConfidence > 100 {
		return fmt.Errorf("moderation.min_confidence must be in 0-100, got %v", c.Moderation.MinConfidence)
	}
	if c.Moderation.PollInterval <= 0 {
		return fmt.Errorf("moderation.poll_interval must be positive, got %v", c.Moderation.PollInterval)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be positive, got %d", c.API.PageSize)
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("upload.max_size_mb must be positive, got %d", c.Upload.MaxSizeMB)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
// Production mode suppresses error detail in HTTP 500 responses.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
