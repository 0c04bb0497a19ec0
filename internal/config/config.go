package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the full service configuration file.
type Config struct {
	Engine   EngineConfig   `json:"engine"`
	Verify   VerifyConfig   `json:"verify"`
	Topology TopologyConfig `json:"topology"`
	Storage  StorageConfig  `json:"storage"`
	Events   EventsConfig   `json:"events"`
	Logging  LoggingConfig  `json:"logging"`
}

// EngineConfig describes how to reach the external analysis engine.
type EngineConfig struct {
	BaseURL   string `json:"base_url"`
	TimeoutMS int    `json:"timeout_ms"`
}

func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// VerifyConfig tunes the verification orchestrator. The retry bound and
// backoff curve are policy, not semantics, and stay configurable.
type VerifyConfig struct {
	TimeoutMS        int `json:"timeout_ms"`
	MaxAttempts      int `json:"max_attempts"`
	InitialBackoffMS int `json:"initial_backoff_ms"`
	MaxConcurrent    int `json:"max_concurrent"`
}

func (c VerifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c VerifyConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// DeviceTypeRule maps hostname/model substrings to a device type. Rules are
// applied in order; first match wins.
type DeviceTypeRule struct {
	Contains []string `json:"contains"`
	Type     string   `json:"type"`
}

// TopologyConfig tunes the aggregator's inference heuristics.
type TopologyConfig struct {
	DeviceTypeRules []DeviceTypeRule `json:"device_type_rules"`
}

// StorageConfig selects the snapshot store backend.
type StorageConfig struct {
	Backend string `json:"backend"` // "badger" or "memory"
	Path    string `json:"path"`
}

// EventsConfig configures the NATS lifecycle event publisher.
type EventsConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `json:"level"`
}

// Default returns a working configuration for a local engine.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			BaseURL:   "http://localhost:9996",
			TimeoutMS: 60_000,
		},
		Verify: VerifyConfig{
			TimeoutMS:        30_000,
			MaxAttempts:      3,
			InitialBackoffMS: 500,
			MaxConcurrent:    8,
		},
		Topology: TopologyConfig{
			DeviceTypeRules: []DeviceTypeRule{
				{Contains: []string{"router", "rtr"}, Type: "ROUTER"},
				{Contains: []string{"switch", "sw"}, Type: "SWITCH"},
				{Contains: []string{"firewall", "fw"}, Type: "FIREWALL"},
				{Contains: []string{"balancer", "lb"}, Type: "LOAD_BALANCER"},
			},
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "./data/badger",
		},
		Events: EventsConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a JSON config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("engine.base_url required")
	}
	if c.Engine.TimeoutMS <= 0 {
		return fmt.Errorf("engine.timeout_ms must be positive")
	}
	if c.Verify.TimeoutMS <= 0 {
		return fmt.Errorf("verify.timeout_ms must be positive")
	}
	if c.Verify.MaxAttempts < 1 {
		return fmt.Errorf("verify.max_attempts must be at least 1")
	}
	if c.Verify.MaxConcurrent < 1 {
		return fmt.Errorf("verify.max_concurrent must be at least 1")
	}
	switch c.Storage.Backend {
	case "badger", "memory":
	default:
		return fmt.Errorf("storage.backend must be badger or memory, got %q", c.Storage.Backend)
	}
	return nil
}
