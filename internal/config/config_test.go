package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
broker:
  binance:
    api_key: key
    api_secret: secret
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, "binance", cfg.Broker.Name)
	assert.Equal(t, "https://fapi.binance.com", cfg.Broker.Binance.RESTBaseURL)
	assert.Equal(t, 1, cfg.OCO.PollIntervalSeconds)
	assert.Equal(t, 10, cfg.OCO.GatewayTimeoutSeconds)
	assert.Equal(t, 60, cfg.OCO.ReconcileIntervalSeconds)
	assert.Equal(t, 256, cfg.OCO.DispatchBuffer)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
app:
  log_level: debug
http:
  addr: ":8000"
store:
  kind: memory
broker:
  binance:
    api_key: key
    api_secret: secret
oco:
  poll_interval_seconds: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, 5, cfg.OCO.PollIntervalSeconds)
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
broker:
  binance:
    api_key: key
    api_secret: secret
oco:
  poll_interval_seconds: 3
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  log_level: warn
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, "key", cfg.Broker.Binance.APIKey)
	assert.Equal(t, 3, cfg.OCO.PollIntervalSeconds)
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "include cycle")
}

func TestRenderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", minimalConfig+`
app:
  log_level: debug
oco:
  poll_interval_seconds: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	out, err := cfg.Render()
	require.NoError(t, err)
	assert.Contains(t, string(out), "log_level")
	assert.Contains(t, string(out), "rest_base_url")

	reloaded, err := Load(writeConfig(t, dir, "rendered.yaml", string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing credentials", func(t *testing.T) {
		path := writeConfig(t, dir, "nocreds.yaml", `
broker:
  name: binance
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "api_key")
	})

	t.Run("unknown store kind", func(t *testing.T) {
		path := writeConfig(t, dir, "badstore.yaml", minimalConfig+`
store:
  kind: redis
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "store.kind")
	})

	t.Run("unknown broker", func(t *testing.T) {
		path := writeConfig(t, dir, "badbroker.yaml", `
broker:
  name: zerodha
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "broker.name")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})
}
