package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one role-tagged turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is what a ChatBackend sends. A non-nil Schema asks the backend for output
// constrained to that JSON schema.
type ChatRequest struct {
	Messages []Message
	Schema   map[string]any
}

// ChatBackend sends one non-streaming chat exchange and returns the reply text. Every error
// it returns is a *TransportError.
type ChatBackend interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend talks to Ollama's native /api/chat endpoint.
type OllamaBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   map[string]any `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message *Message `json:"message"`
	Error   string   `json:"error,omitempty"`
}

func (b *OllamaBackend) Complete(ctx context.Context, req ChatRequest) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    b.model,
		Messages: req.Messages,
		Stream:   false,
		Format:   req.Schema,
	})
	if err != nil {
		return "", b.fail(0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", b.fail(0, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", b.fail(0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", b.fail(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	var out ollamaChatResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return "", b.fail(resp.StatusCode, errors.New(truncateBody(msg)))
	}
	if decodeErr != nil {
		return "", b.fail(resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}
	if out.Message == nil {
		return "", b.fail(resp.StatusCode, errors.New("response has no message"))
	}
	return out.Message.Content, nil
}

func (b *OllamaBackend) fail(status int, err error) error {
	return &TransportError{Backend: b.Name(), StatusCode: status, Err: err}
}

func truncateBody(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
