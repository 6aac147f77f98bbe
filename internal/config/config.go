// Package config loads the application configuration from
// ~/.taulechat/config.yaml with environment variable overrides. Missing
// config files are not an error; everything has a usable default.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aaleccoder/taulechat-sub000/internal/logging"
)

// Config is the full application configuration.
type Config struct {
	// DataDir is where the database and logs live. Defaults to ~/.taulechat.
	DataDir string `yaml:"data_dir"`

	// DatabasePath overrides the default <data_dir>/taulechat.db location.
	DatabasePath string `yaml:"database_path"`

	Logging LoggingConfig `yaml:"logging"`

	Credentials CredentialsConfig `yaml:"credentials"`

	// Models adds or overrides registry entries.
	Models []ModelConfig `yaml:"models"`
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Categories map[string]bool `yaml:"categories"`
}

// CredentialsConfig holds per-provider API keys. Environment variables
// (OPENROUTER_API_KEY, GEMINI_API_KEY) take precedence over these.
type CredentialsConfig struct {
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`
}

// ModelConfig is one user-declared model entry.
type ModelConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`

	ImageInput  bool `yaml:"image_input"`
	ImageOutput bool `yaml:"image_output"`
	Thinking    bool `yaml:"thinking"`

	SupportedGenerationMethods []string `yaml:"supported_generation_methods"`

	ContextTokens   int `yaml:"context_tokens"`
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// DefaultDataDir returns ~/.taulechat, falling back to the working directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taulechat"
	}
	return filepath.Join(home, ".taulechat")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load reads the config file at path, applies defaults and environment
// overrides. A missing file yields the default config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		logging.Config("loaded config from %s", path)
	case os.IsNotExist(err):
		logging.Config("no config at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "taulechat.db")
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TAULECHAT_DATA_DIR"); v != "" {
		c.DataDir = v
		c.DatabasePath = filepath.Join(v, "taulechat.db")
	}
	if v := os.Getenv("TAULECHAT_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("TAULECHAT_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Credentials.OpenRouterAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Credentials.GeminiAPIKey = v
	}
}

// LoggingOptions converts the logging section into logging.Options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		DebugMode:  c.Logging.Debug,
		Categories: c.Logging.Categories,
	}
}
