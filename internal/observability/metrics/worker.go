package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// WorkerMetrics instruments the document pipeline. It satisfies the
// usecase stage observer, so the lifecycle stays free of prometheus types.
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	stageDuration   *prometheus.HistogramVec
	outcomeTotal    *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	outcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "document_outcome_total",
			Help:      "Terminal document states reached by the pipeline.",
		},
		[]string{"service", "state"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "digidoc",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, stageDuration, outcomeTotal, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		stageDuration:   stageDuration,
		outcomeTotal:    outcomeTotal,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// StageObserver carries a fixed service label: one worker process, one
// label value.
type StageObserver struct {
	metrics *WorkerMetrics
	service string
}

func (m *WorkerMetrics) Observer(service string) *StageObserver {
	return &StageObserver{metrics: m, service: service}
}

func (o *StageObserver) ObserveStage(stage string, d time.Duration) {
	o.metrics.stageDuration.WithLabelValues(o.service, stage).Observe(d.Seconds())
}

func (o *StageObserver) ObserveOutcome(state domain.DocumentState) {
	o.metrics.outcomeTotal.WithLabelValues(o.service, string(state)).Inc()
}
