// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ifrs9-risk-lab/internal/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ifrs9_risk_lab"

// Metrics holds all Prometheus metrics for the application.
// Methods on a nil *Metrics are no-ops.
type Metrics struct {
	// Engine metrics
	LoansProcessed prometheus.Counter
	LoansRejected  prometheus.Counter
	LoansFlagged   *prometheus.CounterVec
	EnrichDuration prometheus.Histogram

	// Portfolio metrics (last completed run)
	StageLoans    *prometheus.GaugeVec
	ExposureTotal prometheus.Gauge
	ECLTotal      prometheus.Gauge
	CoverageRatio prometheus.Gauge

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Dashboard metrics
	DashboardClients    prometheus.Gauge
	DashboardBroadcasts prometheus.Counter

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Engine metrics
		LoansProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "loans_processed_total",
			Help:      "Total number of loan records enriched",
		}),
		LoansRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "loans_rejected_total",
			Help:      "Total number of loan records rejected by validation",
		}),
		LoansFlagged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "loans_flagged_total",
			Help:      "Total number of loan records enriched through a fallback path",
		}, []string{"flag"}),
		EnrichDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "batch_duration_seconds",
			Help:      "Batch enrichment duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Portfolio metrics
		StageLoans: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "loans",
			Help:      "Number of loans per IFRS 9 stage in the last run",
		}, []string{"stage"}),
		ExposureTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "exposure_total",
			Help:      "Total outstanding balance in the last run",
		}),
		ECLTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "ecl_total",
			Help:      "Total expected credit loss in the last run",
		}),
		CoverageRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "coverage_ratio_percent",
			Help:      "Total ECL over total exposure in the last run, percent",
		}),

		// Pipeline metrics
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"source", "status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"source"}),
		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Dashboard metrics
		DashboardClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "clients",
			Help:      "Number of connected dashboard clients",
		}),
		DashboardBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "broadcasts_total",
			Help:      "Total number of run summaries broadcast",
		}),

		// Health metrics
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordBatch records one engine batch: enriched loans with their flags,
// the number of rejected records and the batch duration.
func (m *Metrics) RecordBatch(enriched []*domain.Loan, rejected int, d time.Duration) {
	if m == nil {
		return
	}
	m.LoansProcessed.Add(float64(len(enriched)))
	m.LoansRejected.Add(float64(rejected))
	for _, l := range enriched {
		if l.Risk == nil {
			continue
		}
		for _, name := range l.Risk.Flags.Names() {
			m.LoansFlagged.WithLabelValues(name).Inc()
		}
	}
	m.EnrichDuration.Observe(d.Seconds())
}

// RecordPortfolio sets the portfolio gauges from a run summary.
func (m *Metrics) RecordPortfolio(s *domain.RunSummary) {
	if m == nil || s == nil {
		return
	}
	for _, stage := range domain.AllStages() {
		m.StageLoans.WithLabelValues(strconv.Itoa(int(stage))).Set(float64(s.StageCount(stage)))
	}
	m.ExposureTotal.Set(s.TotalExposure)
	m.ECLTotal.Set(s.TotalECL)
	m.CoverageRatio.Set(s.CoverageRatio)
}

// RecordPipelineRun records a pipeline run. status is "success" or "failure".
func (m *Metrics) RecordPipelineRun(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(source, status).Inc()
	m.PipelineDuration.WithLabelValues(source).Observe(d.Seconds())
	if status == StatusSuccess {
		m.LastSuccessfulPipeline.SetToCurrentTime()
	}
}

// RecordReport increments the reports generated counter.
func (m *Metrics) RecordReport() {
	if m == nil {
		return
	}
	m.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetDashboardClients sets the connected clients gauge.
func (m *Metrics) SetDashboardClients(n int) {
	if m == nil {
		return
	}
	m.DashboardClients.Set(float64(n))
}

// RecordBroadcast increments the dashboard broadcast counter.
func (m *Metrics) RecordBroadcast() {
	if m == nil {
		return
	}
	m.DashboardBroadcasts.Inc()
}

// Pipeline run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)
