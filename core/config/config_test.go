package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENGINE_POLL_INTERVAL", "")
	t.Setenv("DB_DRIVER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Engine.PollInterval)
	assert.Equal(t, 3, cfg.Engine.RetryAttempts)
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_EngineOverrides(t *testing.T) {
	t.Setenv("ENGINE_POLL_INTERVAL", "90s")
	t.Setenv("ENGINE_FEED_DEADLINE", "45")
	t.Setenv("ENGINE_WORKERS", "9")
	t.Setenv("VALKEY_ENABLED", "on")
	t.Setenv("AI_PROVIDER", "Gemini")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Engine.PollInterval)
	assert.Equal(t, 45*time.Second, cfg.Engine.FeedDeadline)
	assert.Equal(t, 9, cfg.Engine.Workers)
	assert.True(t, cfg.Database.ValkeyEnabled)
	assert.Equal(t, "gemini", cfg.AI.Provider)
}

func TestLoadConfig_RaisesShortLeaseTTL(t *testing.T) {
	t.Setenv("ENGINE_FEED_DEADLINE", "2m")
	t.Setenv("ENGINE_ORDER_TIMEOUT", "20s")
	t.Setenv("ENGINE_RETRY_ATTEMPTS", "3")
	t.Setenv("ENGINE_RETRY_MAX_DELAY", "10s")
	t.Setenv("ENGINE_COMMENT_TIMEOUT", "30s")
	t.Setenv("ENGINE_LEASE_TTL", "1m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	// 2m + 3*20s + 2*10s + 30s
	assert.Equal(t, 4*time.Minute+50*time.Second, cfg.Engine.LeaseTTL)

	t.Setenv("ENGINE_LEASE_TTL", "15m")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Engine.LeaseTTL)
}

func TestLoadConfig_FeedProvider(t *testing.T) {
	t.Setenv("RSSAPP_API_KEY", "k")
	t.Setenv("RSSAPP_API_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Feeds.Enabled())

	t.Setenv("RSSAPP_API_SECRET", "s")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Feeds.Enabled())
	assert.Equal(t, "https://api.rss.app/v1", cfg.Feeds.URL)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}

func TestSettings_OmitsSecrets(t *testing.T) {
	t.Setenv("ENGINE_WORKERS", "6")
	t.Setenv("JAP_API_KEY", "secret-key")

	_, err := LoadConfig()
	require.NoError(t, err)

	settings := Settings()
	assert.Equal(t, 6, settings["engine_workers"])
	for _, v := range settings {
		assert.NotEqual(t, "secret-key", v)
	}
}
