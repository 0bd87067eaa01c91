package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "all_LOF.txt", cfg.Data.InstrumentsFile)
	assert.Equal(t, "https://www.jisilu.cn", cfg.Feed.BaseURL)
	assert.Equal(t, 50, cfg.Feed.WindowSize)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout())
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "sqlite", cfg.RunLog.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOFSYNC_FEED_WINDOW_SIZE", "25")
	t.Setenv("LOFSYNC_DATA_DIR", "/var/lib/lofsync")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Feed.WindowSize)
	assert.Equal(t, "/var/lib/lofsync", cfg.Data.Dir)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	assert.Error(t, err)
}
