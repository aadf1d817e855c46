package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("RETENTION_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 60.0, cfg.Metrics.AtRiskScoreThreshold)
	assert.Equal(t, 2, cfg.Metrics.AtRiskMinAttemptsPerWindow)
	assert.Equal(t, 14, cfg.Metrics.AtRiskWindowDays)
	assert.Equal(t, 1095, cfg.Metrics.RetentionDays)
	assert.Equal(t, time.Hour, cfg.Metrics.AggregateFreshness)
	assert.Equal(t, []string{"desktop", "laptop", "tablet", "mobile"}, cfg.Metrics.DeviceTypes)
	assert.Equal(t, 50000, cfg.Store.MaxRowsPerQuery)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "REDIS")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("AT_RISK_WINDOW_DAYS", "7")
	t.Setenv("DEVICE_TYPES", "Desktop, Kiosk")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 7, cfg.Metrics.AtRiskWindowDays)
	assert.Equal(t, []string{"desktop", "kiosk"}, cfg.Metrics.DeviceTypes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("MAX_ROWS_PER_QUERY", "-3")
	t.Setenv("RELIABILITY_WEIGHT_ERROR", "0")
	t.Setenv("RELIABILITY_WEIGHT_LATENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 50000, cfg.Store.MaxRowsPerQuery)
	assert.Equal(t, 0.7, cfg.Metrics.ReliabilityWeightError)
	assert.Equal(t, 0.3, cfg.Metrics.ReliabilityWeightLatency)
}

func TestLoadCacheTTLInSeconds(t *testing.T) {
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("AGGREGATE_FRESHNESS", "120")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Minute, cfg.Metrics.AggregateFreshness)

	t.Setenv("CACHE_TTL_SECONDS", "45")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Cache.TTL)

	t.Setenv("CACHE_TTL_SECONDS", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}
