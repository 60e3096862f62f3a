package studybuddy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the provider configuration is read from when no path is given
const DefaultConfigPath = "config/llm.yaml"

// ProviderEnv overrides default_provider when set
const ProviderEnv = "STUDYBUDDY_PROVIDER"

// Config is the application configuration loaded from YAML
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Generation      GenerationConfig          `yaml:"generation"`
	Export          ExportConfig              `yaml:"export"`
	Log             LogConfig                 `yaml:"log"`
	Storage         StorageConfig             `yaml:"storage"`
}

// ProviderConfig describes one language model provider
type ProviderConfig struct {
	Model     ModelConfig `yaml:"model"`
	BaseURL   string      `yaml:"base_url"`
	APIKeyEnv string      `yaml:"api_key_env"`
}

// ModelConfig holds the model parameters sent with every call
type ModelConfig struct {
	Name        string  `yaml:"name" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gt=0"`
}

// GenerationConfig controls the retry loop of the question maker
type GenerationConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// ExportConfig controls where CSV results are written
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controls the application logger
type LogConfig struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	Verbose bool   `yaml:"-"`
}

// StorageConfig points at the SQLite results archive. An empty path disables it.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoadConfig reads .env (if present) and the YAML configuration at path
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("failed to read config file %s", path), Err: err}
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	if provider := os.Getenv(ProviderEnv); provider != "" {
		cfg.DefaultProvider = provider
	}

	return cfg, nil
}

// ParseConfig decodes YAML configuration and fills in defaults
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Message: "failed to parse config", Err: err}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultProvider == "" {
		c.DefaultProvider = ProviderGroq
	}
	c.DefaultProvider = strings.ToLower(c.DefaultProvider)
	if c.Generation.MaxRetries <= 0 {
		c.Generation.MaxRetries = DefaultMaxRetries
	}
	if c.Export.Dir == "" {
		c.Export.Dir = DefaultExportDir
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Provider returns the settings of the selected provider
func (c *Config) Provider() (ProviderConfig, error) {
	conf, ok := c.Providers[c.DefaultProvider]
	if !ok {
		return ProviderConfig{}, &ConfigurationError{Message: fmt.Sprintf("no settings for provider %q", c.DefaultProvider)}
	}
	if err := validate.Struct(conf.Model); err != nil {
		return ProviderConfig{}, &ConfigurationError{Message: fmt.Sprintf("invalid model settings for provider %q", c.DefaultProvider), Err: err}
	}
	return conf, nil
}
