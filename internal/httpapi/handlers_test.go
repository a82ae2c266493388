package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/metrics"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal/provider"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAnalyzer struct {
	reply string
	err   error
}

func (s stubAnalyzer) Analyze(ctx context.Context, text string) (journal.ParseResult, error) {
	if s.err != nil {
		return journal.ParseResult{}, s.err
	}
	return journal.Parse(s.reply), nil
}

func (s stubAnalyzer) Chat(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return journal.StripThinking(s.reply), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

func newTestHandler(t *testing.T, a service.Analyzer) (http.Handler, *journal.Store) {
	t.Helper()
	store, err := journal.NewStore(filepath.Join(t.TempDir(), "journal_entries.jsonl"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := metrics.NewMetrics()
	svc := service.NewJournalService(store, a, nil, m)
	return NewServer(svc, nil, m).Routes(), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
		}
	}
	return w, env
}

const reply = `<think>gentle</think>{"summary":"A calm day","emotions":["calm"],"patterns":[],"themes":["routine"]}`

func TestCreateAndListEntries(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, stubAnalyzer{reply: reply})

	w, env := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{"text": "Feeling okay today"})
	if w.Code != http.StatusCreated || !env.Success {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var created entryResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Outcome != "parsed" || created.Entry.Analysis.Summary != "A calm day" || len(created.Warnings) != 0 {
		t.Fatalf("created=%+v", created)
	}

	w, env = do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{
		"text":          "an old one",
		"timestamp":     "2020-01-01T00:00:00Z",
		"skip_analysis": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	w, env = do(t, h, http.MethodGet, "/api/v1/entries?order=newest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var entries []journal.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Text != "Feeling okay today" {
		t.Fatalf("entries=%+v", entries)
	}

	w, env = do(t, h, http.MethodGet, "/api/v1/entries?to=2021-01-01", nil)
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || len(entries) != 1 || entries[0].Text != "an old one" {
		t.Fatalf("filtered=%+v", entries)
	}
}

func TestCreateEntrySavesTextWhenModelDown(t *testing.T) {
	t.Parallel()

	down := &provider.TransportError{Backend: "ollama", Err: errors.New("connection refused")}
	h, store := newTestHandler(t, stubAnalyzer{err: down})

	w, env := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{"text": "do not lose me"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var created entryResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Outcome != provider.OutcomeTransportError || len(created.Warnings) == 0 {
		t.Fatalf("created=%+v", created)
	}

	entries, err := store.LoadAll()
	if err != nil || len(entries) != 1 || entries[0].Text != "do not lose me" {
		t.Fatalf("entries=%+v err=%v", entries, err)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, stubAnalyzer{reply: reply})

	if w, _ := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing text status=%d", w.Code)
	}
	if w, _ := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{"text": "   "}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank text status=%d", w.Code)
	}
	w, env := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{"text": "x", "timestamp": "someday"})
	if w.Code != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("bad timestamp status=%d env=%+v", w.Code, env)
	}
}

func TestAnalyzeAndChatEndpoints(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, stubAnalyzer{reply: "not json"})
	w, env := do(t, h, http.MethodPost, "/api/v1/analyze", map[string]any{"text": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var ar analysisResponse
	if err := json.Unmarshal(env.Data, &ar); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ar.Outcome != "fallback" || ar.Analysis.Summary != journal.FallbackSummary || ar.Cause == "" {
		t.Fatalf("analysis=%+v", ar)
	}
	if entries, _ := store.LoadAll(); len(entries) != 0 {
		t.Fatalf("analyze must not save")
	}

	w, env = do(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hi"})
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), "not json") {
		t.Fatalf("chat status=%d data=%s", w.Code, env.Data)
	}

	down := &provider.TransportError{Backend: "ollama", StatusCode: 503, Err: errors.New("busy")}
	h, _ = newTestHandler(t, stubAnalyzer{err: down})
	w, env = do(t, h, http.MethodPost, "/api/v1/analyze", map[string]any{"text": "hello"})
	if w.Code != http.StatusBadGateway || env.Error.Code != "MODEL_UNAVAILABLE" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
	if w, _ := do(t, h, http.MethodPost, "/api/v1/chat", map[string]any{"message": "hi"}); w.Code != http.StatusBadGateway {
		t.Fatalf("chat status=%d", w.Code)
	}
}

func TestInsightsEndpoints(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, stubAnalyzer{reply: reply})
	for i := 0; i < 2; i++ {
		if w, _ := do(t, h, http.MethodPost, "/api/v1/entries", map[string]any{"text": "x"}); w.Code != http.StatusCreated {
			t.Fatalf("create status=%d", w.Code)
		}
	}

	w, env := do(t, h, http.MethodGet, "/api/v1/insights/themes?top=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var themes []journal.LabelCount
	if err := json.Unmarshal(env.Data, &themes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(themes) != 1 || themes[0].Label != "Routine" || themes[0].Count != 2 {
		t.Fatalf("themes=%+v", themes)
	}

	w, _ = do(t, h, http.MethodGet, "/api/v1/insights/emotions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w, _ := do(t, h, http.MethodGet, "/api/v1/insights/emotions?top=-1", nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative top status=%d", w.Code)
	}
}

func TestCorruptLogSurfacesAsError(t *testing.T) {
	t.Parallel()

	h, store := newTestHandler(t, stubAnalyzer{reply: reply})
	if err := os.WriteFile(store.Path(), []byte("{broken\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, env := do(t, h, http.MethodGet, "/api/v1/entries", nil)
	if w.Code != http.StatusInternalServerError || env.Error == nil || env.Error.Code != "CORRUPT_LOG" {
		t.Fatalf("status=%d env=%+v", w.Code, env)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, stubAnalyzer{reply: reply})
	if w, env := do(t, h, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK || !env.Success {
		t.Fatalf("healthz status=%d", w.Code)
	}
	w, _ := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "journal_http_requests_total") {
		t.Fatalf("metrics status=%d", w.Code)
	}
}
