// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for storysync tools from YAML and
// environment variables. Source priority: explicit path given to Load, then
// the CONFIG_PATH environment variable, then ./storysync.yaml, then
// environment variables alone.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
type Config struct {
	// BaseURL is the fixed story API endpoint.
	BaseURL string `yaml:"base_url" env:"STORYSYNC_BASE_URL" env-default:"https://story-api.dicoding.dev/v1"`
	// DatabaseFile is the local SQLite file holding the cache and queues.
	DatabaseFile string `yaml:"database_file" env:"STORYSYNC_DB" env-default:"storysync.db"`

	Sync SyncConfig `yaml:"sync"`
	Net  NetConfig  `yaml:"net"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"STORYSYNC_LOG_LEVEL" env-default:"info"`
}

// SyncConfig holds reconciliation tunables.
type SyncConfig struct {
	// MaxDraftAttempts bounds retries of drafts the remote keeps rejecting.
	MaxDraftAttempts int `yaml:"max_draft_attempts" env:"STORYSYNC_MAX_DRAFT_ATTEMPTS" env-default:"5"`
	// ThumbnailWidth bounds the preview stored with queued drafts (0 keeps
	// the package default).
	ThumbnailWidth uint `yaml:"thumbnail_width" env:"STORYSYNC_THUMBNAIL_WIDTH" env-default:"320"`
}

// NetConfig holds connectivity probing settings.
type NetConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval" env:"STORYSYNC_PROBE_INTERVAL" env-default:"15s"`
	// ForceOffline pins the oracle offline regardless of probing (airplane
	// mode for simulations).
	ForceOffline bool `yaml:"force_offline" env:"STORYSYNC_FORCE_OFFLINE" env-default:"false"`
}

// Load reads the configuration following the documented source priority.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat("storysync.yaml"); err == nil {
			path = "storysync.yaml"
		}
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}
