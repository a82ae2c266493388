package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal/provider"
)

// Config holds all application configuration
type Config struct {
	Env     string `envconfig:"JOURNAL_ENV" default:"development"`
	Addr    string `envconfig:"JOURNAL_ADDR" default:":8080"`
	Journal JournalConfig
	LLM     LLMConfig
}

// journal storage configuration
type JournalConfig struct {
	LogPath          string `envconfig:"JOURNAL_LOG_PATH" default:"data/journal_entries.jsonl"`
	RetrievalPath    string `envconfig:"JOURNAL_RETRIEVAL_PATH"`
	DisableRetrieval bool   `envconfig:"JOURNAL_DISABLE_RETRIEVAL" default:"false"`
}

// model endpoint configuration
type LLMConfig struct {
	Backend    string        `envconfig:"LLM_BACKEND" default:"ollama"`
	BaseURL    string        `envconfig:"LLM_BASE_URL" default:"http://localhost:11434"`
	Model      string        `envconfig:"LLM_MODEL" default:"deepseek-r1"`
	APIKey     string        `envconfig:"LLM_API_KEY"`
	Timeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"2m"`
	MaxRetries int           `envconfig:"LLM_MAX_RETRIES" default:"2"`
	PromptFile string        `envconfig:"LLM_PROMPT_FILE"`
	Structured bool          `envconfig:"LLM_STRUCTURED" default:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := Process()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Process reads the environment without validating, for callers that apply overrides
// before calling Validate.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Env] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, production, test)", c.Env)
	}
	if strings.TrimSpace(c.Journal.LogPath) == "" {
		return errors.New("JOURNAL_LOG_PATH must not be empty")
	}
	switch strings.ToLower(c.LLM.Backend) {
	case provider.BackendOllama, provider.BackendOpenAI:
	default:
		return fmt.Errorf("invalid LLM_BACKEND: %q (must be ollama or openai)", c.LLM.Backend)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("LLM_MODEL must not be empty")
	}
	if c.LLM.Timeout < 0 {
		return errors.New("LLM_TIMEOUT must be >= 0")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("LLM_MAX_RETRIES must be >= 0")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// BackendConfig maps the LLM section onto the provider's backend settings.
func (c *Config) BackendConfig() provider.BackendConfig {
	return provider.BackendConfig{
		Backend:    c.LLM.Backend,
		BaseURL:    c.LLM.BaseURL,
		Model:      c.LLM.Model,
		APIKey:     c.LLM.APIKey,
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{Env=%s, Addr=%s, Journal.LogPath=%s, Journal.DisableRetrieval=%t, "+
		"LLM.Backend=%s, LLM.BaseURL=%s, LLM.Model=%s, LLM.Timeout=%s, LLM.Structured=%t}",
		c.Env, c.Addr, c.Journal.LogPath, c.Journal.DisableRetrieval,
		c.LLM.Backend, c.LLM.BaseURL, c.LLM.Model, c.LLM.Timeout, c.LLM.Structured)
}
