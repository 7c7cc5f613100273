// Package config loads voteradar configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one LLM backend in failover priority order.
type ProviderConfig struct {
	Name      string `yaml:"name"`       // anthropic, openai, google
	Model     string `yaml:"model"`      // vendor model identifier
	APIKeyEnv string `yaml:"apiKeyEnv"`  // env var holding the API key
}

// EarlyStopConfig controls the rolling-accuracy variance monitor.
type EarlyStopConfig struct {
	Enabled   bool    `yaml:"enabled"`
	MinTrials int     `yaml:"minTrials"` // never stop before this many trials
	Window    int     `yaml:"window"`    // rolling accuracies considered
	Epsilon   float64 `yaml:"epsilon"`   // variance threshold
}

// LimitsConfig holds the independent hard ceilings for a batch.
type LimitsConfig struct {
	MaxCalls    int           `yaml:"maxCalls"`    // total outbound calls per batch
	MaxDuration time.Duration `yaml:"maxDuration"` // wall clock per batch
	MaxMembers  int           `yaml:"maxMembers"`  // members per batch
}

// BacktestConfig holds the evaluation-loop knobs.
type BacktestConfig struct {
	MinHistory      int             `yaml:"minHistory"`      // qualifying votes required before a cutoff
	SampleCap       int             `yaml:"sampleCap"`       // hard cap on trials per member
	RecentVotes     int             `yaml:"recentVotes"`     // last-K votes included in context
	CallInterval    time.Duration   `yaml:"callInterval"`    // politeness delay between outbound calls
	MaxConcurrent   int             `yaml:"maxConcurrent"`   // concurrent member runs
	MaxInFlight     int64           `yaml:"maxInFlight"`     // process-wide concurrent outbound calls
	EarlyStop       EarlyStopConfig `yaml:"earlyStop"`
	Limits          LimitsConfig    `yaml:"limits"`
}

// CacheConfig holds prediction cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ShortcutConfig controls the party-line heuristic that bypasses the LLM.
type ShortcutConfig struct {
	Enabled          bool    `yaml:"enabled"`
	LoyaltyThreshold float64 `yaml:"loyaltyThreshold"` // percent, e.g. 95
}

// Config is the root configuration.
type Config struct {
	DatabaseURL string           `yaml:"databaseUrl"`
	RedisURL    string           `yaml:"redisUrl"`
	Providers   []ProviderConfig `yaml:"providers"`
	Backtest    BacktestConfig   `yaml:"backtest"`
	Cache       CacheConfig      `yaml:"cache"`
	Shortcut    ShortcutConfig   `yaml:"shortcut"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Providers: []ProviderConfig{
			{Name: "anthropic", Model: "claude-sonnet-4-20250514", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "openai", Model: "gpt-4o", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "google", Model: "gemini-2.5-flash", APIKeyEnv: "GOOGLE_API_KEY"},
		},
		Backtest: BacktestConfig{
			MinHistory:    20,
			SampleCap:     200,
			RecentVotes:   10,
			CallInterval:  500 * time.Millisecond,
			MaxConcurrent: 2,
			MaxInFlight:   4,
			EarlyStop: EarlyStopConfig{
				Enabled:   true,
				MinTrials: 30,
				Window:    10,
				Epsilon:   0.0001,
			},
			Limits: LimitsConfig{
				MaxCalls:    2000,
				MaxDuration: 2 * time.Hour,
				MaxMembers:  101,
			},
		},
		Cache: CacheConfig{TTL: 24 * time.Hour},
		Shortcut: ShortcutConfig{
			Enabled:          true,
			LoyaltyThreshold: 95,
		},
	}
}

// Load reads configuration from path, falling back to defaults for zero
// fields, then applies environment overrides. An empty path returns defaults
// with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	if c.Backtest.MinHistory <= 0 {
		return fmt.Errorf("backtest.minHistory must be positive")
	}
	if c.Backtest.SampleCap <= 0 {
		return fmt.Errorf("backtest.sampleCap must be positive")
	}
	if c.Backtest.EarlyStop.Enabled {
		es := c.Backtest.EarlyStop
		if es.MinTrials <= 0 || es.Window <= 0 {
			return fmt.Errorf("earlyStop.minTrials and earlyStop.window must be positive")
		}
		if es.Window > es.MinTrials {
			return fmt.Errorf("earlyStop.window (%d) cannot exceed earlyStop.minTrials (%d)", es.Window, es.MinTrials)
		}
	}
	return nil
}
