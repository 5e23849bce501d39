package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 4, cfg.DefaultDraw)
	assert.Equal(t, 8, cfg.BoostedDraw)
	assert.Equal(t, 2000, cfg.WarmBulkSize)
	assert.Equal(t, 2*time.Hour, cfg.WarmTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("FREE_DAILY_LIMIT", "3")
	t.Setenv("FREE_INTERVAL", "30m")
	t.Setenv("BOOSTED_GAME", "Cafe Dash")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())

	limits := cfg.TierLimits()
	assert.Equal(t, 3, limits.For(domain.StatusFree).DailyLimit)
	assert.Equal(t, 30*time.Minute, limits.For(domain.StatusFree).Interval)
	// unknown tier rejects everything
	assert.Equal(t, 0, limits.For("unknown").DailyLimit)

	assert.Equal(t, 8, cfg.DrawFor("Cafe Dash"))
	assert.Equal(t, 4, cfg.DrawFor("Polysphere"))
}

func TestDrawFor_NoBoostedGame(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.DrawFor("Cafe Dash"))
}
