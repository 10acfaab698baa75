package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	backfillTotal    *prometheus.CounterVec
	backfillDuration *prometheus.HistogramVec
	backfillInFlight prometheus.Gauge
	sweepItems       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	backfillTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menusearch",
			Subsystem: "worker",
			Name:      "embedding_backfill_total",
			Help:      "Total embedding backfill attempts by status.",
		},
		[]string{"service", "status"},
	)
	backfillDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "worker",
			Name:      "embedding_backfill_duration_seconds",
			Help:      "Embedding backfill duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	backfillInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "menusearch",
			Subsystem: "worker",
			Name:      "embedding_backfill_in_flight",
			Help:      "Number of in-flight embedding backfill tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sweepItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "worker",
			Name:      "sweep_items",
			Help:      "Items embedded per periodic backfill sweep.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)

	registry.MustRegister(backfillTotal, backfillDuration, backfillInFlight, sweepItems)

	return &WorkerMetrics{
		registry:         registry,
		backfillTotal:    backfillTotal,
		backfillDuration: backfillDuration,
		backfillInFlight: backfillInFlight,
		sweepItems:       sweepItems,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBackfill() {
	m.backfillInFlight.Inc()
}

func (m *WorkerMetrics) FinishBackfill(service string, duration time.Duration, err error) {
	m.backfillInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.backfillTotal.WithLabelValues(service, status).Inc()
	m.backfillDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveSweep(service string, embedded int) {
	if embedded < 0 {
		return
	}
	m.sweepItems.WithLabelValues(service).Observe(float64(embedded))
}
