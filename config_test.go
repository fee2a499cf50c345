package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Explorer.Timeout)
	assert.Equal(t, 2, cfg.Explorer.RetryMax)
	assert.Equal(t, float64(5), cfg.Explorer.RateLimit)
	assert.Equal(t, 3, cfg.MaxProxyHops)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestParseConfigFromEnvironmentAndFlags(t *testing.T) {
	t.Setenv("EXPLORER_TIMEOUT", "2500ms")
	t.Setenv("MAX_PROXY_HOPS", "1")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := ParseConfig([]string{"--listen", "127.0.0.1:9000", "--explorer-rate-limit", "0"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 2500*time.Millisecond, cfg.Explorer.Timeout)
	assert.Equal(t, float64(0), cfg.Explorer.RateLimit)
	assert.Equal(t, 1, cfg.MaxProxyHops)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	for name, args := range map[string][]string{
		"zero proxy hops":    {"--max-proxy-hops", "0"},
		"negative retries":   {"--explorer-retry-max=-1"},
		"zero timeout":       {"--explorer-timeout", "0s"},
		"unknown log format": {"--log-format", "xml"},
	} {
		_, err := ParseConfig(args)
		assert.Error(t, err, name)
	}
}
