package studybuddy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
default_provider: openai
providers:
  openai:
    model:
      name: gpt-4o-mini
      temperature: 0.2
      max_tokens: 512
  groq:
    api_key_env: MY_GROQ_KEY
    model:
      name: llama-3.1-8b-instant
      temperature: 0.7
      max_tokens: 1024
generation:
  max_retries: 5
  retry_backoff: 250ms
  attempt_timeout: 30s
export:
  dir: out
storage:
  path: archive.db
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.DefaultProvider != ProviderOpenAI {
		t.Errorf("default provider = %s", cfg.DefaultProvider)
	}
	if cfg.Generation.MaxRetries != 5 || cfg.Generation.RetryBackoff != 250*time.Millisecond || cfg.Generation.AttemptTimeout != 30*time.Second {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if cfg.Export.Dir != "out" || cfg.Storage.Path != "archive.db" {
		t.Errorf("export/storage = %+v %+v", cfg.Export, cfg.Storage)
	}
	if cfg.Providers[ProviderGroq].APIKeyEnv != "MY_GROQ_KEY" {
		t.Errorf("api_key_env not parsed: %+v", cfg.Providers[ProviderGroq])
	}

	conf, err := cfg.Provider()
	if err != nil {
		t.Fatalf("Provider failed: %v", err)
	}
	if conf.Model.Name != "gpt-4o-mini" || conf.Model.Temperature != 0.2 || conf.Model.MaxTokens != 512 {
		t.Errorf("model = %+v", conf.Model)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("providers: {}\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.DefaultProvider != ProviderGroq {
		t.Errorf("default provider = %s, want groq", cfg.DefaultProvider)
	}
	if cfg.Generation.MaxRetries != DefaultMaxRetries {
		t.Errorf("max retries = %d", cfg.Generation.MaxRetries)
	}
	if cfg.Export.Dir != DefaultExportDir || cfg.Log.Dir != "logs" || cfg.Log.Level != "info" {
		t.Errorf("defaults = %+v %+v", cfg.Export, cfg.Log)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig([]byte("default_provider: [unterminated"))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("FromFile", func(t *testing.T) {
		t.Setenv(ProviderEnv, "")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DefaultProvider != ProviderOpenAI {
			t.Errorf("default provider = %s", cfg.DefaultProvider)
		}
	})

	t.Run("EnvOverride", func(t *testing.T) {
		t.Setenv(ProviderEnv, "groq")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DefaultProvider != ProviderGroq {
			t.Errorf("default provider = %s, want groq", cfg.DefaultProvider)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got %v", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected wrapped not-exist error, got %v", err)
		}
	})
}

func TestConfigProviderErrors(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}

	cfg.DefaultProvider = ProviderGemini
	var cfgErr *ConfigurationError
	if _, err := cfg.Provider(); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError for missing provider entry, got %v", err)
	}

	cfg.DefaultProvider = ProviderOpenAI
	cfg.Providers[ProviderOpenAI] = ProviderConfig{Model: ModelConfig{Name: "gpt-4o-mini", Temperature: 3, MaxTokens: 10}}
	if _, err := cfg.Provider(); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError for out of range temperature, got %v", err)
	}

	cfg.Providers[ProviderOpenAI] = ProviderConfig{Model: ModelConfig{Temperature: 0.5, MaxTokens: 10}}
	if _, err := cfg.Provider(); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError for missing model name, got %v", err)
	}
}
