package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaBackendSendsNonStreamingChat(t *testing.T) {
	t.Parallel()

	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"hello"},"done":true}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL+"/", "deepseek-r1", time.Second)
	reply, err := b.Complete(context.Background(), ChatRequest{Messages: []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "entry"},
	}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("reply=%q", reply)
	}
	if got.Model != "deepseek-r1" || got.Stream {
		t.Fatalf("request=%+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "entry" {
		t.Fatalf("messages=%+v", got.Messages)
	}
	if got.Format != nil {
		t.Fatalf("format should be omitted without a schema")
	}
}

func TestOllamaBackendForwardsSchemaAsFormat(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "m", time.Second)
	if _, err := b.Complete(context.Background(), ChatRequest{Schema: mustAnalysisSchema(t)}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	format, ok := raw["format"].(map[string]any)
	if !ok || format["type"] != "object" {
		t.Fatalf("format=%v", raw["format"])
	}
}

func TestOllamaBackendNonSuccessStatusIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaBackend(srv.URL, "nope", time.Second).Complete(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
		t.Fatalf("transport error=%+v", te)
	}
}

func TestOllamaBackendUnreachableIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaBackend(url, "m", time.Second).Complete(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v", err)
	}
}

func TestOllamaBackendGarbageEnvelopeIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy error</html>`))
	}))
	defer srv.Close()

	_, err := NewOllamaBackend(srv.URL, "m", time.Second).Complete(context.Background(), ChatRequest{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v", err)
	}
}
