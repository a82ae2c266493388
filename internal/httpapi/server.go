package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/metrics"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
)

type Server struct {
	svc     *service.JournalService
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewServer(svc *service.JournalService, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Server{svc: svc, logger: logger, metrics: m}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.metrics.GinMiddleware())

	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Sugar().Infow("http", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "duration", time.Since(start))
	})

	r.GET("/healthz", func(c *gin.Context) { OK(c, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/entries", s.createEntry)
		v1.GET("/entries", s.listEntries)
		v1.POST("/analyze", s.analyze)
		v1.POST("/chat", s.chat)
		v1.GET("/insights/emotions", s.emotionTimeline)
		v1.GET("/insights/themes", s.themeFrequency)
	}

	return r
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:        addr,
		Handler:     s.Routes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// Analysis calls can take minutes on local models.
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Sugar().Infow("starting server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Sugar().Infow("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
