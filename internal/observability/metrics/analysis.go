package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// AnalysisMetrics records run, section, cache and breaker outcomes.
type AnalysisMetrics struct {
	service string

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	sectionsTotal   *prometheus.CounterVec
	sectionRetries  *prometheus.CounterVec
	cacheOperations *prometheus.CounterVec
	breakerTransits *prometheus.CounterVec
}

func NewAnalysisMetrics(registerer prometheus.Registerer, service string) *AnalysisMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contracts",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total analysis runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contracts",
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Analysis run duration in seconds by outcome.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	sectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contracts",
			Subsystem: "analysis",
			Name:      "sections_total",
			Help:      "Total section results by outcome.",
		},
		[]string{"service", "section", "outcome"},
	)
	sectionRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contracts",
			Subsystem: "analysis",
			Name:      "section_retries_total",
			Help:      "Total section retry attempts.",
		},
		[]string{"service", "section"},
	)
	cacheOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contracts",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Interim cache operations by result.",
		},
		[]string{"service", "op", "result"},
	)
	breakerTransits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contracts",
			Subsystem: "provider",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions per provider operation.",
		},
		[]string{"service", "operation", "to"},
	)

	registerer.MustRegister(runsTotal, runDuration, sectionsTotal, sectionRetries, cacheOperations, breakerTransits)

	return &AnalysisMetrics{
		service:         service,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		sectionsTotal:   sectionsTotal,
		sectionRetries:  sectionRetries,
		cacheOperations: cacheOperations,
		breakerTransits: breakerTransits,
	}
}

func (m *AnalysisMetrics) RunFinished(outcome domain.RunOutcome, duration time.Duration) {
	m.runsTotal.WithLabelValues(m.service, string(outcome)).Inc()
	m.runDuration.WithLabelValues(m.service, string(outcome)).Observe(duration.Seconds())
}

func (m *AnalysisMetrics) SectionFinished(section domain.SectionName, outcome string) {
	m.sectionsTotal.WithLabelValues(m.service, string(section), outcome).Inc()
}

func (m *AnalysisMetrics) SectionRetried(section domain.SectionName) {
	m.sectionRetries.WithLabelValues(m.service, string(section)).Inc()
}

func (m *AnalysisMetrics) CacheOperation(op, result string) {
	m.cacheOperations.WithLabelValues(m.service, op, result).Inc()
}

// BreakerStateChanged matches resilience.Config.OnStateChange.
func (m *AnalysisMetrics) BreakerStateChanged(operation, _, to string) {
	m.breakerTransits.WithLabelValues(m.service, operation, to).Inc()
}
