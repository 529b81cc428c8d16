// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFromEnvironmentOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "https://story-api.dicoding.dev/v1", cfg.BaseURL)
	require.Equal(t, "storysync.db", cfg.DatabaseFile)
	require.Equal(t, 5, cfg.Sync.MaxDraftAttempts)
	require.Equal(t, uint(320), cfg.Sync.ThumbnailWidth)
	require.Equal(t, 15*time.Second, cfg.Net.ProbeInterval)
	require.False(t, cfg.Net.ForceOffline)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storysync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://localhost:8080/v1
database_file: /tmp/test.db
log_level: debug
sync:
  max_draft_attempts: 3
  thumbnail_width: 160
net:
  probe_interval: 5s
  force_offline: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	require.Equal(t, "/tmp/test.db", cfg.DatabaseFile)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 3, cfg.Sync.MaxDraftAttempts)
	require.Equal(t, uint(160), cfg.Sync.ThumbnailWidth)
	require.Equal(t, 5*time.Second, cfg.Net.ProbeInterval)
	require.True(t, cfg.Net.ForceOffline)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("STORYSYNC_BASE_URL", "http://localhost:9090/v1")
	t.Setenv("STORYSYNC_MAX_DRAFT_ATTEMPTS", "7")
	t.Setenv("STORYSYNC_FORCE_OFFLINE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9090/v1", cfg.BaseURL)
	require.Equal(t, 7, cfg.Sync.MaxDraftAttempts)
	require.True(t, cfg.Net.ForceOffline)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
