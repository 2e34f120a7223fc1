// Package config loads the engine's start-up configuration from a YAML file
// with environment expansion, and validates it before anything starts.
// Secrets (API keys, RPC endpoints) enter here once and reach executors only
// through the run's secret store, never through node config.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ChainConfig points one chain id at its RPC endpoint.
type ChainConfig struct {
	RPCURL string `yaml:"rpc_url" validate:"required,url"`
	APIKey string `yaml:"api_key"`
}

// Defaults hold the per-run option defaults applied when a submission omits
// them.
type Defaults struct {
	MaxConcurrency int           `yaml:"max_concurrency" validate:"gte=1,lte=64"`
	NodeTimeout    time.Duration `yaml:"node_timeout" validate:"gt=0"`
	MaxAttempts    int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
	Backoff        time.Duration `yaml:"backoff" validate:"gt=0"`
	CancelGrace    time.Duration `yaml:"cancel_grace" validate:"gt=0"`
}

// Config is the engine's full start-up configuration.
type Config struct {
	Listen     string `yaml:"listen" validate:"required,hostname_port"`
	FeedListen string `yaml:"feed_listen" validate:"required,hostname_port"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	// DatabaseURL enables the Postgres run archive when set.
	DatabaseURL string `yaml:"database_url"`

	Environment string `yaml:"environment" validate:"oneof=test live"`

	Defaults Defaults               `yaml:"defaults"`
	Chains   map[string]ChainConfig `yaml:"chains" validate:"dive"`

	// Secrets are environment-scoped values for executors. Values support
	// ${VAR} expansion so the file itself never carries key material.
	Secrets map[string]string `yaml:"secrets"`
}

// New returns a config with defaults suitable for local test runs.
func New() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		FeedListen:  "127.0.0.1:8081",
		LogLevel:    "info",
		LogFormat:   "text",
		Environment: "test",
		Defaults: Defaults{
			MaxConcurrency: 4,
			NodeTimeout:    60 * time.Second,
			MaxAttempts:    3,
			Backoff:        500 * time.Millisecond,
			CancelGrace:    5 * time.Second,
		},
	}
}

// Load reads, expands and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := New()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
