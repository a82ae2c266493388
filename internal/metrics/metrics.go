package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all metrics for the journal
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Analysis metrics
	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	chatRequests     *prometheus.CounterVec

	// Storage metrics
	entriesSavedTotal prometheus.Counter
	saveErrorsTotal   *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry, so independent instances never
// collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journal_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_analyses_total",
				Help: "Total number of entry analyses by outcome",
			},
			[]string{"outcome"},
		),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "journal_analysis_duration_seconds",
			Help:    "Duration of model analysis calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		chatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_chat_requests_total",
				Help: "Total number of assistant chat requests by status",
			},
			[]string{"status"},
		),

		entriesSavedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "journal_entries_saved_total",
			Help: "Total number of entries appended to the log",
		}),
		saveErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_save_errors_total",
				Help: "Total number of failed appends by target",
			},
			[]string{"kind"},
		),
	}
}

// ObserveAnalysis records one analysis call by outcome
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

// ObserveChat records one chat call by status
func (m *Metrics) ObserveChat(status string, _ time.Duration) {
	m.chatRequests.WithLabelValues(status).Inc()
}

// IncrementEntriesSaved increments the saved entries counter
func (m *Metrics) IncrementEntriesSaved() {
	m.entriesSavedTotal.Inc()
}

// IncrementSaveErrors increments the failed append counter; kind is "log" or "retrieval"
func (m *Metrics) IncrementSaveErrors(kind string) {
	m.saveErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest observes HTTP request metrics
func (m *Metrics) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GinMiddleware collects HTTP metrics keyed by the matched route pattern
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
