package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreIndependentPerInstance(t *testing.T) {
	t.Parallel()

	a := NewMetrics()
	b := NewMetrics()

	a.ObserveAnalysis("parsed", time.Second)
	a.ObserveAnalysis("fallback", time.Second)
	a.ObserveAnalysis("parsed", time.Second)
	a.IncrementEntriesSaved()
	a.IncrementSaveErrors("retrieval")
	a.ObserveChat("ok", time.Second)

	if got := testutil.ToFloat64(a.analysesTotal.WithLabelValues("parsed")); got != 2 {
		t.Fatalf("parsed=%v", got)
	}
	if got := testutil.ToFloat64(a.entriesSavedTotal); got != 1 {
		t.Fatalf("saved=%v", got)
	}
	if got := testutil.ToFloat64(a.saveErrorsTotal.WithLabelValues("retrieval")); got != 1 {
		t.Fatalf("retrieval errors=%v", got)
	}
	if got := testutil.ToFloat64(a.chatRequests.WithLabelValues("ok")); got != 1 {
		t.Fatalf("chat=%v", got)
	}
	if got := testutil.ToFloat64(b.entriesSavedTotal); got != 0 {
		t.Fatalf("second instance saw %v", got)
	}
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/items/1", "/items/2", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/items/:id", "200")); got != 2 {
		t.Fatalf("route count=%v", got)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count=%v", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "journal_http_requests_total") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}
