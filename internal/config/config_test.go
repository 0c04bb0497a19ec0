package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Verify.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Verify.InitialBackoff())
	assert.NotEmpty(t, cfg.Topology.DeviceTypeRules)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"engine": {"base_url": "http://engine:9996", "timeout_ms": 5000},
		"verify": {"timeout_ms": 10000, "max_attempts": 5, "initial_backoff_ms": 100, "max_concurrent": 2},
		"storage": {"backend": "memory"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://engine:9996", cfg.Engine.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Engine.Timeout())
	assert.Equal(t, 5, cfg.Verify.MaxAttempts)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	// untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty engine url", func(c *Config) { c.Engine.BaseURL = "" }},
		{"zero engine timeout", func(c *Config) { c.Engine.TimeoutMS = 0 }},
		{"zero verify timeout", func(c *Config) { c.Verify.TimeoutMS = 0 }},
		{"zero attempts", func(c *Config) { c.Verify.MaxAttempts = 0 }},
		{"zero concurrency", func(c *Config) { c.Verify.MaxConcurrent = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
