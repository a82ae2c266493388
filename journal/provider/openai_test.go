package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func chatCompletionBody(content string) string {
	c, _ := json.Marshal(content)
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, c)
}

func noWaitPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts}
}

func TestOpenAIBackendChatCompletion(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path=%s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody("<think>x</think>{\"summary\":\"s\"}")))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL+"/v1", "", "llama3", time.Second, noWaitPolicy(1))
	reply, err := b.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		Schema:   mustAnalysisSchema(t),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "<think>x</think>{\"summary\":\"s\"}" {
		t.Fatalf("reply=%q", reply)
	}
	if body["model"] != "llama3" {
		t.Fatalf("model=%v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages=%v", body["messages"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("response_format=%v", body["response_format"])
	}
}

func TestOpenAIBackendRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(chatCompletionBody("ok")))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL, "k", "m", time.Second, noWaitPolicy(3))
	reply, err := b.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "ok" || calls.Load() != 3 {
		t.Fatalf("reply=%q calls=%d", reply, calls.Load())
	}
}

func TestOpenAIBackendClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL, "k", "m", time.Second, noWaitPolicy(3))
	_, err := b.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v", err)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusBadRequest {
		t.Fatalf("transport error=%+v", te)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d", calls.Load())
	}
}

func TestRetryClassifiers(t *testing.T) {
	t.Parallel()

	if !isRateLimitError(errors.New("429 Too Many Requests")) {
		t.Fatalf("expected rate limit")
	}
	if !isServerError(errors.New("500 Internal Server Error")) {
		t.Fatalf("expected server error")
	}
	if isRateLimitError(nil) || isServerError(nil) {
		t.Fatalf("nil is not retryable")
	}
	if isServerError(errors.New("400 bad request")) {
		t.Fatalf("400 is not a server error")
	}
}

func TestWaitFor(t *testing.T) {
	t.Parallel()

	waits := []time.Duration{time.Second, 2 * time.Second}
	if waitFor(waits, 0) != time.Second || waitFor(waits, 5) != 2*time.Second || waitFor(nil, 1) != 0 {
		t.Fatalf("waitFor mismatch")
	}
}

func mustAnalysisSchema(t *testing.T) map[string]any {
	t.Helper()
	s, err := AnalysisSchema()
	if err != nil {
		t.Fatalf("AnalysisSchema: %v", err)
	}
	return s
}

func TestAnalysisSchemaIsStrict(t *testing.T) {
	t.Parallel()

	s := mustAnalysisSchema(t)
	if s["additionalProperties"] != false {
		t.Fatalf("additionalProperties=%v", s["additionalProperties"])
	}
	props, ok := s["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties=%v", s["properties"])
	}
	for _, k := range []string{"summary", "emotions", "patterns", "themes"} {
		if _, ok := props[k]; !ok {
			t.Fatalf("missing property %q", k)
		}
	}
	for _, k := range []string{"ai_thoughts", "raw_output"} {
		if _, ok := props[k]; ok {
			t.Fatalf("unexpected property %q", k)
		}
	}
	req, _ := s["required"].([]string)
	want := []string{"emotions", "patterns", "summary", "themes"}
	if strings.Join(req, ",") != strings.Join(want, ",") {
		t.Fatalf("required=%v want=%v", s["required"], want)
	}
}

type schemaNote struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

type schemaDoc struct {
	Title string       `json:"title"`
	Notes []schemaNote `json:"notes"`
	Main  schemaNote   `json:"main"`
}

func TestGenerateSchemaClosesNestedObjects(t *testing.T) {
	t.Parallel()

	for i := 0; i < 5; i++ {
		s, err := GenerateSchema[schemaDoc]()
		if err != nil {
			t.Fatalf("GenerateSchema: %v", err)
		}
		if got := strings.Join(s["required"].([]string), ","); got != "main,notes,title" {
			t.Fatalf("required=%s", got)
		}
		props := s["properties"].(map[string]any)
		main := props["main"].(map[string]any)
		if main["additionalProperties"] != false || strings.Join(main["required"].([]string), ",") != "label,score" {
			t.Fatalf("main=%v", main)
		}
		items := props["notes"].(map[string]any)["items"].(map[string]any)
		if items["additionalProperties"] != false || strings.Join(items["required"].([]string), ",") != "label,score" {
			t.Fatalf("items=%v", items)
		}
	}
}
