package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, "skywatch.db", cfg.DBPath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "prometheus", cfg.SourceBackend)
	assert.Equal(t, 60, cfg.CollectInterval)
	assert.Equal(t, 24, cfg.LookbackHours)
	assert.Equal(t, 10, cfg.MinSamples)
	assert.Equal(t, 0.1, cfg.Contamination)
	assert.Equal(t, 5, cfg.RecentPoints)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SKYWATCH_HTTP_PORT", "8080")
	t.Setenv("SKYWATCH_SOURCE_BACKEND", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "local", cfg.SourceBackend)
}

func TestLoadRejectsBadContamination(t *testing.T) {
	t.Setenv("SKYWATCH_CONTAMINATION", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contamination")
}
