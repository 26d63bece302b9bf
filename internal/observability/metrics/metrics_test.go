package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func TestAnalysisMetricsShareHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	analysis := NewAnalysisMetrics(httpMetrics.Registry(), "api")

	analysis.RunFinished(domain.RunOutcomeDone, 3*time.Second)
	analysis.SectionFinished(domain.SectionRisks, "failed")
	analysis.SectionRetried(domain.SectionRisks)
	analysis.SectionRetried(domain.SectionRisks)
	analysis.CacheOperation("put_section", "ok")
	analysis.BreakerStateChanged("ollama.generate", "closed", "open")

	if got := testutil.ToFloat64(analysis.sectionRetries.WithLabelValues("api", "risks")); got != 2 {
		t.Fatalf("section retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(analysis.runsTotal.WithLabelValues("api", "done")); got != 1 {
		t.Fatalf("runs done = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"contracts_analysis_runs_total", "contracts_cache_operations_total", "contracts_provider_breaker_transitions_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics output misses %s", name)
		}
	}
}

func TestMiddlewareNormalizesContractPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/contracts/abc/analysis", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/contracts/{contract_id}/analysis", "404"))
	if got != 1 {
		t.Fatalf("requests_total = %v, want 1", got)
	}
}

func TestWorkerMetricsOutcome(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartRequest()
	m.FinishRequest("worker", time.Second, domain.RunOutcomeCancelled)
	m.ObserveQueueLag("worker", -time.Second)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "cancelled")); got != 1 {
		t.Fatalf("processed cancelled = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
}
