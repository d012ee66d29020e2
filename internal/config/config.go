// Package config holds all ScholarMate configuration.
// Configuration is loaded from a YAML file with environment variable
// overrides, then passed explicitly into component constructors. There is
// no package-level mutable state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ScholarMate configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Gemini API configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Pipeline timing and fallback behavior
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Generated-code execution
	Execute ExecuteConfig `yaml:"execute"`

	// Analysis persistence
	Store StoreConfig `yaml:"store"`

	// HTTP API server
	Server ServerConfig `yaml:"server"`
}

// GeminiConfig configures the Gemini client and its retry policy.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`

	// Models is tried in order during preflight; the first model that
	// answers a trivial probe request becomes the active model.
	Models []string `yaml:"models"`

	Timeout string `yaml:"timeout"`

	// Retry policy for rate-limited calls.
	MaxAttempts  int     `yaml:"max_attempts"`
	InitialDelay string  `yaml:"initial_delay"`
	Multiplier   float64 `yaml:"multiplier"`
}

// PipelineConfig configures the analysis pipeline.
type PipelineConfig struct {
	// StageDelay is the unconditional pause between consecutive stages.
	StageDelay string `yaml:"stage_delay"`

	// MaxContextChars caps the extracted paper text stored for diagnostics.
	MaxContextChars int `yaml:"max_context_chars"`
}

// ExecuteConfig configures the sandboxed runner for generated code.
type ExecuteConfig struct {
	Interpreter string `yaml:"interpreter"`
	Timeout     string `yaml:"timeout"`

	// AllowedImports is the third-party import allow-list for generated
	// scripts. Standard-library imports are always permitted.
	AllowedImports []string `yaml:"allowed_imports"`

	// WorkDir is where generated scripts are written before execution.
	// Empty means a temporary directory per run.
	WorkDir string `yaml:"work_dir"`
}

// StoreConfig configures the SQLite analysis store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Bind string `yaml:"bind"`

	// MaxUploadBytes limits the size of an uploaded PDF.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ScholarMate",
		Version: "1.0.0",

		Gemini: GeminiConfig{
			Models: []string{
				"gemini-2.0-flash",
				"gemini-2.0-flash-exp",
				"gemini-1.5-flash",
				"gemini-1.5-flash-latest",
				"gemini-1.5-flash-002",
				"gemini-1.5-flash-001",
			},
			Timeout:      "120s",
			MaxAttempts:  4,
			InitialDelay: "5s",
			Multiplier:   2.0,
		},

		Pipeline: PipelineConfig{
			StageDelay:      "12s",
			MaxContextChars: 70000,
		},

		Execute: ExecuteConfig{
			Interpreter: "python3",
			Timeout:     "60s",
			AllowedImports: []string{
				"numpy", "pandas", "matplotlib", "sklearn", "scipy",
			},
		},

		Store: StoreConfig{
			DatabasePath: "data/scholarmate.db",
		},

		Server: ServerConfig{
			Bind:           "127.0.0.1:5000",
			MaxUploadBytes: 32 << 20,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key from environment (check in priority order)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if key := os.Getenv("API_KEY"); key != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = key
	}

	if path := os.Getenv("SCHOLARMATE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if bind := os.Getenv("SCHOLARMATE_BIND"); bind != "" {
		c.Server.Bind = bind
	}
}

// Validate checks that the configuration is usable for analysis runs.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is required (set GEMINI_API_KEY or gemini.api_key)")
	}
	if len(c.Gemini.Models) == 0 {
		return fmt.Errorf("at least one candidate model is required")
	}
	if c.Gemini.MaxAttempts < 1 {
		return fmt.Errorf("gemini.max_attempts must be at least 1")
	}
	if c.Gemini.Multiplier <= 1 {
		return fmt.Errorf("gemini.multiplier must be greater than 1")
	}
	return nil
}

// GetGeminiTimeout returns the Gemini request timeout as a duration.
func (c *Config) GetGeminiTimeout() time.Duration {
	return parseDuration(c.Gemini.Timeout, 120*time.Second)
}

// GetInitialDelay returns the first retry delay as a duration.
func (c *Config) GetInitialDelay() time.Duration {
	return parseDuration(c.Gemini.InitialDelay, 5*time.Second)
}

// GetStageDelay returns the inter-stage pause as a duration.
func (c *Config) GetStageDelay() time.Duration {
	return parseDuration(c.Pipeline.StageDelay, 12*time.Second)
}

// GetExecuteTimeout returns the generated-code execution timeout.
func (c *Config) GetExecuteTimeout() time.Duration {
	return parseDuration(c.Execute.Timeout, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
