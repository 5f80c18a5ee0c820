package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
repo:
  path: /srv/deploy-config
  target_branch: main
pipeline:
  base_url: https://pipeline.example.com/api
  app_id: app-1
  token: tok-123
deploy:
  identity: alice
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redeploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "/srv/deploy-config", cfg.Repo.Path)
	assert.Equal(t, "origin", cfg.Repo.Remote)
	assert.Equal(t, "main", cfg.Repo.TargetBranch)
	assert.Equal(t, "alice", cfg.Deploy.Identity)
	assert.Equal(t, 10*time.Second, cfg.Deploy.PollInterval)
	assert.Equal(t, 3, cfg.Deploy.DiscoveryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Deploy.DiscoveryBaseDelay)
	assert.Equal(t, "Update runtime configuration", cfg.Deploy.CommitMessage)
	assert.Equal(t, "redeploy.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Telemetry.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
  poll_interval: 30s
store:
  path: /var/lib/redeploy/state.db
telemetry:
  log_level: debug
  log_format: json
  metrics_enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Deploy.PollInterval)
	assert.Equal(t, "/var/lib/redeploy/state.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.True(t, cfg.Telemetry.MetricsEnabled)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load(writeConfig(t, `
repo:
  path: /srv/deploy-config
pipeline:
  base_url: https://pipeline.example.com/api
  app_id: app-1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TargetBranch")
}

func TestLoadRejectsBadURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
repo:
  path: /srv/deploy-config
  target_branch: main
pipeline:
  base_url: not-a-url
  app_id: app-1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+`
telemetry:
  log_level: loud
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, validConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	var lastBranch atomic.Value

	w := NewWatcher(zerolog.Nop())
	defer w.Close()

	err := w.Watch(ctx, path, func(cfg *Config) error {
		lastBranch.Store(cfg.Repo.TargetBranch)
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)

	updated := `
repo:
  path: /srv/deploy-config
  target_branch: production
pipeline:
  base_url: https://pipeline.example.com/api
  app_id: app-1
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	deadline := time.Now().Add(5 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	require.GreaterOrEqual(t, reloads.Load(), int32(1), "expected at least one reload")
	assert.Equal(t, "production", lastBranch.Load())
}

func TestWatcherIgnoresInvalidUpdate(t *testing.T) {
	path := writeConfig(t, validConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32

	w := NewWatcher(zerolog.Nop())
	defer w.Close()

	err := w.Watch(ctx, path, func(cfg *Config) error {
		reloads.Add(1)
		return nil
	})
	require.NoError(t, err)

	// Broken YAML must not reach the reload callback.
	require.NoError(t, os.WriteFile(path, []byte("repo: ["), 0o644))

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int32(0), reloads.Load())
}
