package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal/fileutils"
)

// Outcome tells a structured reading apart from the degraded fallback.
type Outcome int

const (
	Parsed Outcome = iota
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ParseResult is what an Extractor produces. Cause is set only for Fallback.
type ParseResult struct {
	Analysis Analysis
	Outcome  Outcome
	Cause    error
}

func (r ParseResult) IsFallback() bool {
	return r.Outcome == Fallback
}

// Extractor turns a raw model reply into an analysis. Implementations never fail; a reply
// that cannot be read yields a Fallback result.
type Extractor interface {
	Extract(raw string) ParseResult
}

var (
	ErrNoJSONObject   = errors.New("no JSON object in reply")
	ErrMissingKey     = errors.New("analysis key missing")
	ErrInvalidPayload = errors.New("analysis payload invalid")
)

var analysisKeys = []string{"summary", "emotions", "patterns", "themes"}

const (
	DefaultThinkOpen  = "<think>"
	DefaultThinkClose = "</think>"
)

// ThinkTagExtractor reads replies that carry reasoning between tag markers followed by a
// JSON object somewhere in the remaining text. Only the first, shortest brace span is tried.
type ThinkTagExtractor struct {
	think  *regexp.Regexp
	object *regexp.Regexp
}

var firstObject = regexp.MustCompile(`(?s)\{.*?\}`)

func NewThinkTagExtractor(openTag, closeTag string) *ThinkTagExtractor {
	if openTag == "" {
		openTag = DefaultThinkOpen
	}
	if closeTag == "" {
		closeTag = DefaultThinkClose
	}
	return &ThinkTagExtractor{
		think:  regexp.MustCompile(`(?s)` + regexp.QuoteMeta(openTag) + `(.*?)` + regexp.QuoteMeta(closeTag)),
		object: firstObject,
	}
}

var defaultExtractor = NewThinkTagExtractor(DefaultThinkOpen, DefaultThinkClose)

// Parse reads raw with the default think-tag strategy.
func Parse(raw string) ParseResult {
	return defaultExtractor.Extract(raw)
}

// StripThinking removes every reasoning segment and trims the rest.
func StripThinking(s string) string {
	_, cleaned := defaultExtractor.split(s)
	return cleaned
}

func (x *ThinkTagExtractor) split(raw string) (*string, string) {
	var thoughts *string
	if m := x.think.FindStringSubmatch(raw); m != nil {
		t := strings.TrimSpace(m[1])
		thoughts = &t
	}
	cleaned := strings.TrimSpace(x.think.ReplaceAllString(raw, ""))
	return thoughts, cleaned
}

func (x *ThinkTagExtractor) Extract(raw string) ParseResult {
	thoughts, cleaned := x.split(raw)

	block := x.object.FindString(cleaned)
	if block == "" {
		return fallbackResult(raw, thoughts, ErrNoJSONObject)
	}
	a, err := decodeAnalysis([]byte(block))
	if err != nil {
		return fallbackResult(raw, thoughts, err)
	}
	a.AIThoughts = thoughts
	a.RawOutput = raw
	return ParseResult{Analysis: a, Outcome: Parsed}
}

// LenientExtractor suits backends that return a structured JSON body. It drops reasoning
// segments, then takes the widest span between the first '{' and the last '}', so nested
// objects decode.
type LenientExtractor struct {
	tags *ThinkTagExtractor
}

func NewLenientExtractor() *LenientExtractor {
	return &LenientExtractor{tags: defaultExtractor}
}

func (x *LenientExtractor) Extract(raw string) ParseResult {
	thoughts, cleaned := x.tags.split(raw)

	var fields map[string]json.RawMessage
	if err := fileutils.DecodeModelJSON(cleaned, &fields); err != nil {
		return fallbackResult(raw, thoughts, fmt.Errorf("%w: %v", ErrNoJSONObject, err))
	}
	a, err := analysisFromFields(fields)
	if err != nil {
		return fallbackResult(raw, thoughts, err)
	}
	a.AIThoughts = thoughts
	a.RawOutput = raw
	return ParseResult{Analysis: a, Outcome: Parsed}
}

func decodeAnalysis(block []byte) (Analysis, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(block, &fields); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return analysisFromFields(fields)
}

// analysisFromFields requires all four keys. Null values read as empty; values of the wrong
// JSON type reject the whole payload.
func analysisFromFields(fields map[string]json.RawMessage) (Analysis, error) {
	for _, k := range analysisKeys {
		if _, ok := fields[k]; !ok {
			return Analysis{}, fmt.Errorf("%w: %q", ErrMissingKey, k)
		}
	}

	var a Analysis
	if err := json.Unmarshal(fields["summary"], &a.Summary); err != nil {
		return Analysis{}, fmt.Errorf("%w: summary: %v", ErrInvalidPayload, err)
	}
	lists := []struct {
		key string
		dst *[]string
	}{
		{"emotions", &a.Emotions},
		{"patterns", &a.Patterns},
		{"themes", &a.Themes},
	}
	for _, l := range lists {
		if err := json.Unmarshal(fields[l.key], l.dst); err != nil {
			return Analysis{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, l.key, err)
		}
	}
	return a.normalized(), nil
}

// FallbackAnalysis is the degraded reading kept when a reply, or the model call itself,
// yields nothing usable.
func FallbackAnalysis(raw string, thoughts *string) Analysis {
	return Analysis{
		Summary:    FallbackSummary,
		Emotions:   []string{},
		Patterns:   []string{},
		Themes:     []string{},
		AIThoughts: thoughts,
		RawOutput:  raw,
	}
}

func fallbackResult(raw string, thoughts *string, cause error) ParseResult {
	return ParseResult{
		Analysis: FallbackAnalysis(raw, thoughts),
		Outcome:  Fallback,
		Cause:    cause,
	}
}
