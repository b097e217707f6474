package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halonen/skywatch/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	src, err := New(&config.Config{SourceBackend: "local"})
	require.NoError(t, err)
	assert.Equal(t, "local", src.Name())

	src, err = New(&config.Config{SourceBackend: "prometheus", PrometheusURL: "http://localhost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "prometheus", src.Name())

	src, err = New(&config.Config{SourceBackend: "", PrometheusURL: "http://localhost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "prometheus", src.Name(), "prometheus is the default backend")
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(&config.Config{SourceBackend: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
