package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chainflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config with env expansion", func(t *testing.T) {
		t.Setenv("TEST_ETH_KEY", "sekrit")
		path := writeConfig(t, `
listen: 127.0.0.1:9090
feed_listen: 127.0.0.1:9091
log_level: debug
log_format: json
environment: live
defaults:
  max_concurrency: 8
  node_timeout: 30s
  max_attempts: 5
  backoff: 250ms
  cancel_grace: 2s
chains:
  ethereum:
    rpc_url: https://eth.example/rpc
    api_key: ${TEST_ETH_KEY}
secrets:
  QUOTE_API_URL: https://quotes.example/v1
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "live", cfg.Environment)
		assert.Equal(t, 8, cfg.Defaults.MaxConcurrency)
		assert.Equal(t, 30*time.Second, cfg.Defaults.NodeTimeout)
		assert.Equal(t, "sekrit", cfg.Chains["ethereum"].APIKey)
		assert.Equal(t, "https://quotes.example/v1", cfg.Secrets["QUOTE_API_URL"])
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "listen: 127.0.0.1:9999\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
		assert.Equal(t, "127.0.0.1:8081", cfg.FeedListen)
		assert.Equal(t, 4, cfg.Defaults.MaxConcurrency)
		assert.Equal(t, "test", cfg.Environment)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		for name, body := range map[string]string{
			"bad log level":   "log_level: loud\n",
			"bad environment": "environment: staging\n",
			"bad chain url":   "chains:\n  ethereum:\n    rpc_url: not-a-url\n",
			"bad concurrency": "defaults:\n  max_concurrency: 0\n",
		} {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err, name)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
