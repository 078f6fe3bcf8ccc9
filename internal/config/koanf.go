// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulsestream/config.yaml",
	"/etc/pulsestream/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are the
// baseline layer; the config file and environment override them.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "/data/pulsestream",
		},
		ObjectStore: ObjectStoreConfig{
			Region:       "us-east-1",
			Bucket:       "",
			AccessKey:    "",
			SecretKey:    "",
			Endpoint:     "",
			SignedURLTTL: time.Hour,
		},
		Moderation: ModerationConfig{
			MinConfidence:     60,
			PollInterval:      5 * time.Second,
			PollTimeout:       30 * time.Minute,
			PollRatePerSecond: 2,
		},
		Cache: CacheConfig{
			TTL: 600 * time.Second,
		},
		Upload: UploadConfig{
			MaxSizeMB:         2048,
			AllowedExtensions: []string{"mp4", "mov", "avi", "mkv"},
		},
		API: APIConfig{
			PageSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SERVER_PORT -> server.port, OBJECT_STORE_BUCKET -> object_store.bucket
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exist.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when provided via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"upload.allowed_extensions",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envPrefixes maps leading environment variable segments to config
// sections. Only variables matching a known prefix are loaded, so unrelated
// environment noise never leaks into the config.
var envPrefixes = map[string]string{
	"SERVER_":       "server.",
	"SECURITY_":     "security.",
	"DATABASE_":     "database.",
	"OBJECT_STORE_": "object_store.",
	"MODERATION_":   "moderation.",
	"CACHE_":        "cache.",
	"UPLOAD_":       "upload.",
	"API_":          "api.",
	"LOG_":          "logging.",
}

// envTransformFunc transforms environment variable names to koanf config
// paths.
//
// Examples:
//   - SERVER_PORT -> server.port
//   - SECURITY_JWT_SECRET -> security.jwt_secret
//   - OBJECT_STORE_SIGNED_URL_TTL -> object_store.signed_url_ttl
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	for prefix, section := range envPrefixes {
		if strings.HasPrefix(key, prefix) {
			rest := strings.ToLower(strings.TrimPrefix(key, prefix))
			return section + rest
		}
	}
	return ""
}
