// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Attune.
type Config struct {
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Cache        CacheConfig        `yaml:"cache"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Engine       EngineConfig       `yaml:"engine"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ClassifierConfig struct {
	// Provider selects the LLM gateway: "anthropic", "openai", or "none"
	// to run on the keyword fallback alone.
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
}

type DispatchConfig struct {
	TrivialMaxWords int      `yaml:"trivial_max_words"`
	TrivialMinChars int      `yaml:"trivial_min_chars"`
	Filler          []string `yaml:"filler"`
}

type EngineConfig struct {
	BaseScale        float64 `yaml:"base_scale"`
	NegativityWeight float64 `yaml:"negativity_weight"`
	NeutralIncrement float64 `yaml:"neutral_increment"`
	LowEffortPenalty float64 `yaml:"low_effort_penalty"`
	HighEffortBonus  float64 `yaml:"high_effort_bonus"`
	RepairBonus      float64 `yaml:"repair_bonus"`
}

type OrchestratorConfig struct {
	// MaxInFlightPerUser caps queued updates per user; excess messages
	// are dropped rather than buffered without bound.
	MaxInFlightPerUser int `yaml:"max_in_flight_per_user"`

	// DecaySchedule is a cron expression for the inactivity decay sweep.
	DecaySchedule string        `yaml:"decay_schedule"`
	DecayAfter    time.Duration `yaml:"decay_after"`
	DecayHalfLife time.Duration `yaml:"decay_half_life"`
}

type StorageConfig struct {
	// Backend selects the store implementation: "memory", "sqlite", or
	// "postgres".
	Backend string `yaml:"backend"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string.
	DSN             string        `yaml:"dsn"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied, suitable
// for embedding without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Classifier.Provider {
	case "anthropic", "openai", "none":
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.Provider != "none" && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier provider %q requires an api_key", c.Classifier.Provider)
	}
	switch c.Storage.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("sqlite backend requires a path")
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("postgres backend requires a dsn")
	}
	if c.Orchestrator.MaxInFlightPerUser < 1 {
		return fmt.Errorf("max_in_flight_per_user must be at least 1")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = "none"
	}
	if cfg.Classifier.MaxTokens == 0 {
		cfg.Classifier.MaxTokens = 1024
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 10 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 10000
	}
	if cfg.Dispatch.TrivialMaxWords == 0 {
		cfg.Dispatch.TrivialMaxWords = 2
	}
	if cfg.Dispatch.TrivialMinChars == 0 {
		cfg.Dispatch.TrivialMinChars = 10
	}
	if cfg.Engine.BaseScale == 0 {
		cfg.Engine.BaseScale = 5.0
	}
	if cfg.Engine.NegativityWeight == 0 {
		cfg.Engine.NegativityWeight = 2.5
	}
	if cfg.Engine.NeutralIncrement == 0 {
		cfg.Engine.NeutralIncrement = 0.1
	}
	if cfg.Engine.LowEffortPenalty == 0 {
		cfg.Engine.LowEffortPenalty = 0.5
	}
	if cfg.Engine.HighEffortBonus == 0 {
		cfg.Engine.HighEffortBonus = 0.5
	}
	if cfg.Engine.RepairBonus == 0 {
		cfg.Engine.RepairBonus = 2.0
	}
	if cfg.Orchestrator.MaxInFlightPerUser == 0 {
		cfg.Orchestrator.MaxInFlightPerUser = 4
	}
	if cfg.Orchestrator.DecaySchedule == "" {
		cfg.Orchestrator.DecaySchedule = "0 3 * * *"
	}
	if cfg.Orchestrator.DecayAfter == 0 {
		cfg.Orchestrator.DecayAfter = 14 * 24 * time.Hour
	}
	if cfg.Orchestrator.DecayHalfLife == 0 {
		cfg.Orchestrator.DecayHalfLife = 30 * 24 * time.Hour
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.MaxConnections == 0 {
		cfg.Storage.MaxConnections = 25
	}
	if cfg.Storage.ConnMaxLifetime == 0 {
		cfg.Storage.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
