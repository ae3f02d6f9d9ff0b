package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  format: json
redis:
  addr: localhost:6379
  ttl: 5m
postgres:
  url: postgres://trivia@localhost/trivia
catalog:
  path: config/catalog.yaml
leaderboard:
  max_limit: 100
  min_points: 0
  snapshot_ttl: 500ms
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "config/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, 100, cfg.Leaderboard.MaxLimit)
	require.NotNil(t, cfg.Leaderboard.MinPoints)
	assert.Equal(t, 0, *cfg.Leaderboard.MinPoints)
	assert.Equal(t, 500*time.Millisecond, TTLDuration(cfg.Leaderboard.SnapshotTTL, time.Second))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("1m30s", time.Minute))
}
