package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-risk-engine/internal/risk"
	"github.com/i474232898/agri-risk-engine/internal/risk/sources"
)

var configKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "SOURCE_MODE", "SYNTHETIC_SEED", "HTTP_TIMEOUT",
	"SOURCE_TIMEOUT", "WEATHERAPI_API_KEY", "GEOCODER_API_KEY", "CACHE_MAX_ENTRIES",
	"CACHE_MAX_AGE", "WATCH_LOCATIONS", "WATCH_INTERVAL", "WATCH_WINDOW_DAYS", "SHUTDOWN_TIMEOUT",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SAMPLER_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, sources.ModeSynthetic, cfg.SourceMode)
	assert.Equal(t, int64(42), cfg.SyntheticSeed)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 10*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 512, cfg.CacheMaxEntries)
	assert.Equal(t, time.Hour, cfg.CacheMaxAge)
	assert.Equal(t, 6*time.Hour, cfg.WatchInterval)
	assert.Equal(t, 7, cfg.WatchWindowDays)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.WatchTargets)
	assert.False(t, cfg.TracingEnabled)
	assert.InDelta(t, 0.1, cfg.TracingSampleRatio, 1e-9)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_MODE", "fallback")
	t.Setenv("SYNTHETIC_SEED", "7")
	t.Setenv("SOURCE_TIMEOUT", "2s")
	t.Setenv("WATCH_LOCATIONS", "dhaka:23.81:90.41:Rice; punjab:30.9:75.85:wheat")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, sources.ModeFallback, cfg.SourceMode)
	assert.Equal(t, int64(7), cfg.SyntheticSeed)
	assert.Equal(t, 2*time.Second, cfg.SourceTimeout)
	require.Len(t, cfg.WatchTargets, 2)
	assert.Equal(t, WatchTarget{Name: "dhaka", Location: risk.Location{Lat: 23.81, Lon: 90.41}, Crop: risk.CropRice}, cfg.WatchTargets[0])
	assert.Equal(t, risk.CropWheat, cfg.WatchTargets[1].Crop)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "collector:4318", cfg.TracingEndpoint)
	assert.InDelta(t, 0.5, cfg.TracingSampleRatio, 1e-9)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SOURCE_MODE", "offline"},
		{"SYNTHETIC_SEED", "abc"},
		{"HTTP_TIMEOUT", "soon"},
		{"CACHE_MAX_ENTRIES", "1.5"},
		{"WATCH_WINDOW_DAYS", "45"},
		{"WATCH_LOCATIONS", "dhaka:23.81:90.41"},
		{"WATCH_LOCATIONS", "dhaka:north:90.41:rice"},
		{"OTEL_ENABLED", "maybe"},
		{"OTEL_SAMPLER_RATIO", "half"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
