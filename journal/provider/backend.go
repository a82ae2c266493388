package provider

import (
	"fmt"
	"strings"
	"time"
)

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// BackendConfig selects and configures a ChatBackend.
type BackendConfig struct {
	Backend    string
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

func NewBackend(cfg BackendConfig) (ChatBackend, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("NewBackend: model is empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendOllama:
		return NewOllamaBackend(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case BackendOpenAI:
		policy := DefaultRetryPolicy()
		policy.MaxAttempts = cfg.MaxRetries + 1
		return NewOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout, policy), nil
	default:
		return nil, fmt.Errorf("NewBackend: unknown backend %q (want %s or %s)", cfg.Backend, BackendOllama, BackendOpenAI)
	}
}
