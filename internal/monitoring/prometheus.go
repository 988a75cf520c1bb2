package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/meridian/internal/resilience"
)

// Collectors holds the Prometheus metrics for the pipeline and valuation
// engine. It satisfies the ingest and valuation observer interfaces.
type Collectors struct {
	documentsProcessed *prometheus.CounterVec
	processingSeconds  prometheus.Histogram
	extractions        *prometheus.CounterVec
	degraded           *prometheus.CounterVec
	valuationRuns      *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
	pendingBacklog     prometheus.Gauge
	failureRate        prometheus.Gauge
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		documentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_documents_processed_total",
				Help: "Documents that finished processing, by final status",
			},
			[]string{"status"},
		),
		processingSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meridian_document_processing_seconds",
				Help:    "Wall time of a document pipeline run",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_extractions_total",
				Help: "Extraction runs by method",
			},
			[]string{"method"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_extractions_degraded_total",
				Help: "Extraction runs that fell back to regex, by reason",
			},
			[]string{"reason"},
		),
		valuationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_valuation_runs_total",
				Help: "Valuation runs by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meridian_circuit_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"name"},
		),
		pendingBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_documents_pending",
				Help: "Documents awaiting extraction at the last health check",
			},
		),
		failureRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_document_failure_rate",
				Help: "Share of finished documents that failed within the health check window",
			},
		),
	}
	reg.MustRegister(
		c.documentsProcessed,
		c.processingSeconds,
		c.extractions,
		c.degraded,
		c.valuationRuns,
		c.circuitState,
		c.pendingBacklog,
		c.failureRate,
	)
	return c
}

// DocumentProcessed records a finished pipeline run.
func (c *Collectors) DocumentProcessed(status string, elapsed time.Duration) {
	c.documentsProcessed.WithLabelValues(status).Inc()
	c.processingSeconds.Observe(elapsed.Seconds())
}

// ExtractionCompleted records the method used by an extraction run.
func (c *Collectors) ExtractionCompleted(method string, degraded bool, reason string) {
	c.extractions.WithLabelValues(method).Inc()
	if degraded {
		c.degraded.WithLabelValues(reason).Inc()
	}
}

// ValuationRun records a valuation attempt.
func (c *Collectors) ValuationRun(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.valuationRuns.WithLabelValues(method, outcome).Inc()
}

// CircuitStateChanged tracks breaker transitions. It matches the breaker's
// state change hook.
func (c *Collectors) CircuitStateChanged(name string, _, to resilience.CircuitState) {
	c.circuitState.WithLabelValues(name).Set(float64(to))
}

// SnapshotCollected publishes the health checker's latest snapshot.
func (c *Collectors) SnapshotCollected(snap *PipelineSnapshot) {
	c.pendingBacklog.Set(float64(snap.PendingBacklog))
	c.failureRate.Set(snap.FailureRate)
}
