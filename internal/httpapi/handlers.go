package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal/provider"
)

type createEntryRequest struct {
	Text         string `json:"text" binding:"required"`
	Timestamp    string `json:"timestamp"`
	SkipAnalysis bool   `json:"skip_analysis"`
}

type entryResponse struct {
	Entry    journal.Entry `json:"entry"`
	Outcome  string        `json:"outcome"`
	Warnings []string      `json:"warnings,omitempty"`
}

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

type analysisResponse struct {
	Analysis journal.Analysis `json:"analysis"`
	Outcome  string           `json:"outcome"`
	Cause    string           `json:"cause,omitempty"`
}

func (s *Server) createEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var at time.Time
	if req.Timestamp != "" {
		t, err := journal.ParseTimestamp(req.Timestamp)
		if err != nil {
			ValidationError(c, err.Error())
			return
		}
		at = t
	}

	res, err := s.svc.AddEntry(c.Request.Context(), service.AddEntryInput{
		Text:         req.Text,
		At:           at,
		SkipAnalysis: req.SkipAnalysis,
	})
	if errors.Is(err, service.ErrEmptyText) {
		ValidationError(c, err.Error())
		return
	}
	if err != nil {
		s.logger.Sugar().Errorw("create entry failed", "error", err)
		InternalError(c, "SAVE_FAILED", "entry was not saved; please retry")
		return
	}

	outcome := res.Outcome.String()
	if res.Skipped {
		outcome = "skipped"
	} else if res.AnalysisErr != nil {
		outcome = provider.OutcomeTransportError
	}
	Created(c, entryResponse{Entry: res.Entry, Outcome: outcome, Warnings: res.Warnings()})
}

func (s *Server) listEntries(c *gin.Context) {
	from, err := optionalTime(c.Query("from"))
	if err != nil {
		ValidationError(c, fmt.Sprintf("from: %v", err))
		return
	}
	to, err := optionalRangeEnd(c.Query("to"))
	if err != nil {
		ValidationError(c, fmt.Sprintf("to: %v", err))
		return
	}
	limit, err := optionalInt(c.Query("limit"), 0)
	if err != nil {
		ValidationError(c, fmt.Sprintf("limit: %v", err))
		return
	}

	entries, err := s.svc.ListEntries(service.ListQuery{
		From:        from,
		To:          to,
		NewestFirst: c.Query("order") == "newest",
		Limit:       limit,
	})
	if err != nil {
		s.storageError(c, err)
		return
	}
	OK(c, entries)
}

func (s *Server) analyze(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	res, err := s.svc.Analyze(c.Request.Context(), req.Text)
	if errors.Is(err, service.ErrEmptyText) {
		ValidationError(c, err.Error())
		return
	}
	if err != nil {
		s.modelError(c, err)
		return
	}
	out := analysisResponse{Analysis: res.Analysis, Outcome: res.Outcome.String()}
	if res.Cause != nil {
		out.Cause = res.Cause.Error()
	}
	OK(c, out)
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	reply, err := s.svc.Chat(c.Request.Context(), req.Message)
	if err != nil {
		s.modelError(c, err)
		return
	}
	OK(c, gin.H{"reply": reply})
}

func (s *Server) emotionTimeline(c *gin.Context) {
	top, err := optionalInt(c.Query("top"), 10)
	if err != nil {
		ValidationError(c, fmt.Sprintf("top: %v", err))
		return
	}
	rows, err := s.svc.EmotionTimeline(top)
	if err != nil {
		s.storageError(c, err)
		return
	}
	OK(c, rows)
}

func (s *Server) themeFrequency(c *gin.Context) {
	top, err := optionalInt(c.Query("top"), 10)
	if err != nil {
		ValidationError(c, fmt.Sprintf("top: %v", err))
		return
	}
	rows, err := s.svc.ThemeFrequency(top)
	if err != nil {
		s.storageError(c, err)
		return
	}
	OK(c, rows)
}

func (s *Server) modelError(c *gin.Context, err error) {
	if errors.Is(err, provider.ErrTransport) {
		s.logger.Sugar().Warnw("model unavailable", "error", err)
		BadGateway(c, err.Error())
		return
	}
	BadRequest(c, err.Error())
}

func (s *Server) storageError(c *gin.Context, err error) {
	s.logger.Sugar().Errorw("read journal failed", "error", err)
	if errors.Is(err, journal.ErrCorruptLog) {
		InternalError(c, "CORRUPT_LOG", err.Error())
		return
	}
	InternalError(c, "", "")
}

func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return journal.ParseTimestamp(s)
}

func optionalRangeEnd(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return journal.ParseRangeEnd(s)
}

func optionalInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must be >= 0")
	}
	return n, nil
}
