package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
)

// Observer receives per-call outcomes. internal/metrics implements it.
type Observer interface {
	ObserveAnalysis(outcome string, d time.Duration)
	ObserveChat(status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAnalysis(string, time.Duration) {}
func (nopObserver) ObserveChat(string, time.Duration)     {}

const (
	OutcomeTransportError = "transport_error"
	StatusOK              = "ok"
	StatusError           = "error"
)

// Analyzer sends entries to a chat backend and reads the reply with an Extractor.
type Analyzer struct {
	backend      ChatBackend
	instructions string
	extractor    journal.Extractor
	structured   bool
	schema       map[string]any
	timeout      time.Duration
	logger       *zap.Logger
	observer     Observer
}

type AnalyzerOption func(*Analyzer)

func WithInstructions(s string) AnalyzerOption {
	return func(a *Analyzer) { a.instructions = s }
}

func WithExtractor(x journal.Extractor) AnalyzerOption {
	return func(a *Analyzer) { a.extractor = x }
}

// WithStructuredOutput asks the backend to constrain replies to the analysis schema and
// switches to the lenient extractor, which tolerates nested objects.
func WithStructuredOutput() AnalyzerOption {
	return func(a *Analyzer) {
		a.structured = true
		a.extractor = journal.NewLenientExtractor()
	}
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) { a.timeout = d }
}

func WithLogger(l *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

func WithObserver(o Observer) AnalyzerOption {
	return func(a *Analyzer) { a.observer = o }
}

func NewAnalyzer(backend ChatBackend, opts ...AnalyzerOption) (*Analyzer, error) {
	if backend == nil {
		return nil, errors.New("NewAnalyzer: nil backend")
	}
	a := &Analyzer{
		backend:      backend,
		instructions: ComposeAnalysisInstructions(""),
		extractor:    journal.NewThinkTagExtractor(journal.DefaultThinkOpen, journal.DefaultThinkClose),
		timeout:      2 * time.Minute,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.structured {
		schema, err := AnalysisSchema()
		if err != nil {
			return nil, fmt.Errorf("NewAnalyzer: %w", err)
		}
		a.schema = schema
	}
	return a, nil
}

// AnalysisSchema is the JSON schema of the four analysis fields.
func AnalysisSchema() (map[string]any, error) {
	return GenerateSchema[journal.Analysis]()
}

// Analyze returns the parsed reading of text. A reply that cannot be read is not an error:
// the result carries Outcome Fallback. The error is non-nil only when no reply was obtained,
// and then it matches ErrTransport.
func (a *Analyzer) Analyze(ctx context.Context, text string) (journal.ParseResult, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	reply, err := a.backend.Complete(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: a.instructions},
			{Role: "user", Content: text},
		},
		Schema: a.schema,
	})
	if err != nil {
		a.observer.ObserveAnalysis(OutcomeTransportError, time.Since(start))
		a.logger.Sugar().Errorw("analysis request failed", "backend", a.backend.Name(), "error", err)
		return journal.ParseResult{}, asTransportError(a.backend.Name(), fmt.Errorf("Analyze: %w", err))
	}

	res := a.extractor.Extract(reply)
	a.observer.ObserveAnalysis(res.Outcome.String(), time.Since(start))
	if res.IsFallback() {
		a.logger.Sugar().Warnw("analysis reply unreadable; using fallback",
			"backend", a.backend.Name(),
			"cause", res.Cause,
			"raw_len", len(reply),
		)
	}
	return res, nil
}

// Chat sends prompt as a single user turn and returns the reply without reasoning segments.
func (a *Analyzer) Chat(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("Chat: empty prompt")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	reply, err := a.backend.Complete(ctx, ChatRequest{
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		a.observer.ObserveChat(StatusError, time.Since(start))
		a.logger.Sugar().Errorw("chat request failed", "backend", a.backend.Name(), "error", err)
		return "", asTransportError(a.backend.Name(), fmt.Errorf("Chat: %w", err))
	}
	a.observer.ObserveChat(StatusOK, time.Since(start))
	return journal.StripThinking(reply), nil
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
