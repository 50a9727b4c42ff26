package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/modelgate/modelgate/internal/optimization"
)

const (
	// DefaultDirName is the config directory under the user's home
	DefaultDirName = ".modelgate"
	// ConfigFileName is the config file name inside the config directory
	ConfigFileName = "config.yaml"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds rule store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RoutingConfig holds routing fallback settings. Defaults maps a provider
// to the model used when no optimization rule matches a request.
type RoutingConfig struct {
	Defaults map[string]string `yaml:"defaults"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config is the application configuration, persisted as YAML in the
// config directory.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Routing  RoutingConfig  `yaml:"routing"`
	Log      LogConfig      `yaml:"log"`

	configFile string
}

// DefaultConfigDir returns the default config directory (~/.modelgate)
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Default returns the default configuration rooted at configDir
func Default(configDir string) *Config {
	return &Config{
		Server: ServerConfig{Port: 8787},
		Database: DatabaseConfig{
			Path: filepath.Join(configDir, "db", "modelgate.db"),
		},
		Routing: RoutingConfig{
			Defaults: map[string]string{
				string(optimization.ProviderOpenAI):    "gpt-4o-mini",
				string(optimization.ProviderAnthropic): "claude-3-5-haiku-latest",
				string(optimization.ProviderGemini):    "gemini-2.0-flash",
			},
		},
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join(configDir, "logs", "modelgate.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		configFile: filepath.Join(configDir, ConfigFileName),
	}
}

// Load reads the configuration from configDir, creating the file with
// defaults on first run.
func Load(configDir string) (*Config, error) {
	cfg := Default(configDir)

	data, err := os.ReadFile(cfg.configFile)
	if os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration back to its file
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(c.configFile, data, 0600)
}

// ConfigFile returns the path of the backing config file
func (c *Config) ConfigFile() string {
	return c.configFile
}

// DefaultModel returns the fallback model for a provider, or empty if none
// is configured.
func (c *Config) DefaultModel(provider optimization.Provider) string {
	return c.Routing.Defaults[string(provider)]
}
