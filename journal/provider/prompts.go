package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const defaultAnalysisPromptHeader = `
You are a compassionate mental health assistant. Your job is to analyze journal entries and return:
- a gentle one-sentence summary
- primary emotions (max 3)
- cognitive distortions (max 3, e.g. catastrophizing, self-blame)
- core themes (max 3, like work stress, relationships, personal growth)
`

// The tail carries the output contract the parser depends on, so a custom header can
// change tone without breaking extraction.
const analysisPromptRequiredTail = `
Respond ONLY in raw JSON with keys: summary, emotions, patterns, themes.
"summary" is a string; "emotions", "patterns" and "themes" are arrays of at most 3 short strings.
Do NOT include explanations or markdown.
`

// LoadPromptHeaderFromFile reads a replacement prompt header.
func LoadPromptHeaderFromFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("prompt file path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("prompt file is empty after trimming whitespace")
	}
	return s, nil
}

// ComposeAnalysisInstructions joins header (or the default) with the fixed output contract.
func ComposeAnalysisInstructions(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		header = strings.TrimSpace(defaultAnalysisPromptHeader)
	}
	tail := strings.TrimSpace(analysisPromptRequiredTail)
	return header + "\n\n" + tail
}
