package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
)

// ErrEmptyText is returned when an entry has no content.
var ErrEmptyText = errors.New("entry text is empty")

// Analyzer is the model-facing half of the journal.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (journal.ParseResult, error)
	Chat(ctx context.Context, prompt string) (string, error)
}

// SaveObserver receives storage outcomes. internal/metrics implements it.
type SaveObserver interface {
	IncrementEntriesSaved()
	IncrementSaveErrors(kind string)
}

type nopSaveObserver struct{}

func (nopSaveObserver) IncrementEntriesSaved()    {}
func (nopSaveObserver) IncrementSaveErrors(string) {}

// JournalService composes analysis and storage the way every front end needs them.
type JournalService struct {
	store    journal.Recorder
	analyzer Analyzer
	logger   *zap.Logger
	observer SaveObserver
}

func NewJournalService(store journal.Recorder, analyzer Analyzer, logger *zap.Logger, observer SaveObserver) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopSaveObserver{}
	}
	return &JournalService{store: store, analyzer: analyzer, logger: logger, observer: observer}
}

type AddEntryInput struct {
	Text         string
	At           time.Time
	SkipAnalysis bool
}

// AddEntryResult describes a recorded entry. AnalysisErr is set when the model could not be
// reached and a fallback analysis was stored instead; RetrievalErr when the retrieval
// projection could not be appended. Neither means the entry was lost.
type AddEntryResult struct {
	Entry        journal.Entry
	Outcome      journal.Outcome
	Skipped      bool
	AnalysisErr  error
	RetrievalErr error
}

// Warnings returns the non-fatal problems as human-readable strings.
func (r AddEntryResult) Warnings() []string {
	var out []string
	if r.AnalysisErr != nil {
		out = append(out, fmt.Sprintf("analysis unavailable, saved without it: %v", r.AnalysisErr))
	} else if r.Outcome == journal.Fallback && !r.Skipped {
		out = append(out, "model reply could not be read; saved with a fallback analysis")
	}
	if r.RetrievalErr != nil {
		out = append(out, fmt.Sprintf("retrieval file not updated: %v", r.RetrievalErr))
	}
	return out
}

// AddEntry analyzes and records text. The text is saved even when analysis fails; only a
// failure to append to the log itself is returned as an error.
func (s *JournalService) AddEntry(ctx context.Context, in AddEntryInput) (AddEntryResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return AddEntryResult{}, ErrEmptyText
	}

	var result AddEntryResult
	analysis := journal.FallbackAnalysis("", nil)
	result.Outcome = journal.Fallback
	result.Skipped = in.SkipAnalysis || s.analyzer == nil

	if !in.SkipAnalysis && s.analyzer != nil {
		res, err := s.analyzer.Analyze(ctx, in.Text)
		if err != nil {
			result.AnalysisErr = err
			s.logger.Sugar().Warnw("saving entry without analysis", "error", err)
		} else {
			analysis = res.Analysis
			result.Outcome = res.Outcome
		}
	}

	entry, err := s.store.Save(in.Text, analysis, in.At)
	switch {
	case errors.Is(err, journal.ErrRetrievalWrite):
		s.observer.IncrementSaveErrors("retrieval")
		s.logger.Sugar().Warnw("retrieval append failed", "entry_id", entry.ID, "error", err)
		result.RetrievalErr = err
	case err != nil:
		s.observer.IncrementSaveErrors("log")
		s.logger.Sugar().Errorw("entry not saved", "error", err)
		return AddEntryResult{}, fmt.Errorf("AddEntry: %w", err)
	}

	s.observer.IncrementEntriesSaved()
	s.logger.Sugar().Infow("entry saved", "entry_id", entry.ID, "outcome", result.Outcome.String())
	result.Entry = entry
	return result, nil
}

// Analyze reads text without recording it.
func (s *JournalService) Analyze(ctx context.Context, text string) (journal.ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return journal.ParseResult{}, ErrEmptyText
	}
	if s.analyzer == nil {
		return journal.ParseResult{}, errors.New("Analyze: no analyzer configured")
	}
	return s.analyzer.Analyze(ctx, text)
}

func (s *JournalService) Chat(ctx context.Context, message string) (string, error) {
	if s.analyzer == nil {
		return "", errors.New("Chat: no analyzer configured")
	}
	return s.analyzer.Chat(ctx, message)
}

type ListQuery struct {
	From        time.Time
	To          time.Time
	NewestFirst bool
	Limit       int
}

// ListEntries filters the log by time. Limit keeps the most recent matches.
func (s *JournalService) ListEntries(q ListQuery) ([]journal.Entry, error) {
	entries, err := s.store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	entries = journal.FilterByTime(entries, q.From, q.To)
	if q.NewestFirst {
		entries = journal.SortNewestFirst(entries)
		if q.Limit > 0 && len(entries) > q.Limit {
			entries = entries[:q.Limit]
		}
		return entries, nil
	}
	return journal.Last(entries, q.Limit), nil
}

func (s *JournalService) EmotionTimeline(topN int) ([]journal.EmotionMonthCount, error) {
	entries, err := s.store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("EmotionTimeline: %w", err)
	}
	return journal.EmotionTimeline(entries, topN), nil
}

func (s *JournalService) ThemeFrequency(topN int) ([]journal.LabelCount, error) {
	entries, err := s.store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("ThemeFrequency: %w", err)
	}
	return journal.ThemeFrequency(entries, topN), nil
}
