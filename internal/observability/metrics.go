// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collection metrics
	RawItemsCollected *prometheus.CounterVec
	CollectorErrors   *prometheus.CounterVec

	// Dedup metrics
	ItemsDeduplicated *prometheus.CounterVec
	ItemsKept         prometheus.Counter

	// Analysis metrics
	AnalysesTotal   *prometheus.CounterVec
	AnalysisLatency prometheus.Histogram
	TokensUsed      prometheus.Counter
	AnalysisCostUSD prometheus.Counter

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
// Must be called at most once per process; metric names are global.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_news_lab"
	}

	return &Metrics{
		RawItemsCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "raw_items_total",
			Help:      "Total number of raw items collected by source",
		}, []string{"source"}),
		CollectorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collect",
			Name:      "errors_total",
			Help:      "Total number of collector failures by source",
		}, []string{"source"}),

		ItemsDeduplicated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "items_removed_total",
			Help:      "Total number of items removed by dedup method",
		}, []string{"method"}),
		ItemsKept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "items_kept_total",
			Help:      "Total number of items surviving deduplication",
		}),

		AnalysesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "results_total",
			Help:      "Total number of analyses by provider and outcome",
		}, []string{"provider", "outcome"}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "Per-item analysis latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TokensUsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "tokens_used_total",
			Help:      "Total LLM tokens consumed",
		}),
		AnalysisCostUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "cost_usd_total",
			Help:      "Total LLM spend in USD",
		}),

		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "deliveries_total",
			Help:      "Total number of digest deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by terminal status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCollected records one collector's batch outcome.
func (m *Metrics) RecordCollected(source string, items int) {
	if m == nil {
		return
	}
	m.RawItemsCollected.WithLabelValues(source).Add(float64(items))
}

// RecordCollectorError records one collector failure.
func (m *Metrics) RecordCollectorError(source string) {
	if m == nil {
		return
	}
	m.CollectorErrors.WithLabelValues(source).Inc()
}

// RecordDedup records the outcome of one deduplication pass.
func (m *Metrics) RecordDedup(kept int, removedByMethod map[string]int) {
	if m == nil {
		return
	}
	m.ItemsKept.Add(float64(kept))
	for method, n := range removedByMethod {
		m.ItemsDeduplicated.WithLabelValues(method).Add(float64(n))
	}
}

// RecordAnalysis records one per-item analysis outcome.
func (m *Metrics) RecordAnalysis(provider, outcome string, seconds float64, tokens int, costUSD float64) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(provider, outcome).Inc()
	m.AnalysisLatency.Observe(seconds)
	m.TokensUsed.Add(float64(tokens))
	m.AnalysisCostUSD.Add(costUSD)
}

// RecordDelivery records one channel delivery outcome.
func (m *Metrics) RecordDelivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordRun records one finished pipeline run.
func (m *Metrics) RecordRun(status string, durationSeconds float64, success bool, finishedUnix float64) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(durationSeconds)
	if success {
		m.LastSuccessfulRun.Set(finishedUnix)
	}
}
