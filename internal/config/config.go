// Package config provides unified configuration loading for psios.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/experiment"
	"github.com/wiltoNzews/psi-os-consciousness-sub006/internal/kuramoto"
)

// Config contains all psios configuration settings.
type Config struct {
	// Logging contains settings for operational logging and the coherence
	// trace.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store contains settings for run persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Engine holds the synchronization engine construction parameters.
	Engine kuramoto.Config `json:"engine" yaml:"engine"`

	// Experiment holds the run schedule and measurement parameters.
	Experiment experiment.Config `json:"experiment" yaml:"experiment"`
}

// LoggingConfig configures psios logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "error", "warn", "info" (default),
	// "debug", or "trace". "debug" enables the coherence trace file.
	// "trace" additionally includes every per-cycle coherence row.
	Level string `json:"level" yaml:"level"`

	// TracePath is where the coherence trace JSONL is written when the
	// level enables it.
	TracePath string `json:"trace_path" yaml:"trace_path"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			TracePath: "coherence.jsonl",
		},
		Engine:     kuramoto.DefaultConfig(),
		Experiment: experiment.DefaultConfig(),
	}
}

// Load loads configuration from path and environment variables.
// Order: defaults -> YAML file -> environment variables. An empty path
// falls back to ~/.psios/config.yaml, which is optional; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			fallback := filepath.Join(homeDir, ".psios", "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Fields absent from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid, including that every
// scheduled perturbation names a cluster the engine will actually have.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Experiment.Validate(); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}

	for i, p := range c.Experiment.Perturbations {
		for _, cluster := range p.Clusters {
			if cluster < 0 || cluster >= c.Engine.Clusters {
				return fmt.Errorf("experiment: perturbation %d names cluster %d, engine has %d", i, cluster, c.Engine.Clusters)
			}
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PSIOS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("PSIOS_TRACE_PATH"); v != "" {
		config.Logging.TracePath = v
	}

	if v := os.Getenv("PSIOS_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("PSIOS_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Engine.Seed = n
		}
	}
}
