package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/config"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/logger"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/metrics"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal/provider"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *journal.Store
	svc     *service.JournalService
}

func (o *globalOptions) apply(cfg *config.Config) {
	if o.env != "" {
		cfg.Env = o.env
	}
	if o.logPath != "" {
		cfg.Journal.LogPath = o.logPath
	}
	if o.backend != "" {
		cfg.LLM.Backend = o.backend
	}
	if o.baseURL != "" {
		cfg.LLM.BaseURL = o.baseURL
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.timeoutSet {
		cfg.LLM.Timeout = o.timeout
	}
	if o.structured {
		cfg.LLM.Structured = true
	}
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Process()
	if err != nil {
		return nil, err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.NewLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Sugar().Debugw("configuration loaded", "config", cfg.String())

	m := metrics.NewMetrics()

	var storeOpts []journal.StoreOption
	switch {
	case cfg.Journal.DisableRetrieval:
		storeOpts = append(storeOpts, journal.WithoutRetrieval())
	case cfg.Journal.RetrievalPath != "":
		storeOpts = append(storeOpts, journal.WithRetrievalPath(cfg.Journal.RetrievalPath))
	}
	store, err := journal.NewStore(cfg.Journal.LogPath, storeOpts...)
	if err != nil {
		return nil, err
	}

	analyzer, err := newAnalyzer(cfg, log, m)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  log,
		metrics: m,
		store:   store,
		svc:     service.NewJournalService(store, analyzer, log, m),
	}, nil
}

func newAnalyzer(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*provider.Analyzer, error) {
	backend, err := provider.NewBackend(cfg.BackendConfig())
	if err != nil {
		return nil, err
	}

	analyzerOpts := []provider.AnalyzerOption{
		provider.WithTimeout(cfg.LLM.Timeout),
		provider.WithLogger(log),
		provider.WithObserver(m),
	}
	if cfg.LLM.PromptFile != "" {
		header, err := provider.LoadPromptHeaderFromFile(cfg.LLM.PromptFile)
		if err != nil {
			return nil, err
		}
		analyzerOpts = append(analyzerOpts, provider.WithInstructions(provider.ComposeAnalysisInstructions(header)))
	}
	if cfg.LLM.Structured {
		analyzerOpts = append(analyzerOpts, provider.WithStructuredOutput())
	}
	return provider.NewAnalyzer(backend, analyzerOpts...)
}

func (a *app) Close() {
	_ = a.logger.Sync()
}
