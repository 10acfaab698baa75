package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchPathTotal      *prometheus.CounterVec
	searchPathResults    *prometheus.HistogramVec
	searchFallbackTotal  *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	queryRejectedTotal   *prometheus.CounterVec
	answerStreamDuration *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menusearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "menusearch",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchPathTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menusearch",
			Subsystem: "search",
			Name:      "path_requests_total",
			Help:      "Retrieval path executions by outcome.",
		},
		[]string{"service", "path", "status"},
	)
	searchPathResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "search",
			Name:      "path_results",
			Help:      "Distribution of items returned per retrieval path execution.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "path"},
	)
	searchFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menusearch",
			Subsystem: "search",
			Name:      "fallback_total",
			Help:      "Total searches served by the structured fallback path.",
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	queryRejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menusearch",
			Subsystem: "search",
			Name:      "generated_query_rejected_total",
			Help:      "Total generated SQL statements refused by the sanitizer.",
		},
		[]string{"service"},
	)
	answerStreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "menusearch",
			Subsystem: "chat",
			Name:      "answer_stream_duration_seconds",
			Help:      "Answer streaming duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchPathTotal,
		searchPathResults,
		searchFallbackTotal,
		searchDuration,
		queryRejectedTotal,
		answerStreamDuration,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchPathTotal:      searchPathTotal,
		searchPathResults:    searchPathResults,
		searchFallbackTotal:  searchFallbackTotal,
		searchDuration:       searchDuration,
		queryRejectedTotal:   queryRejectedTotal,
		answerStreamDuration: answerStreamDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/users/"):
		return "/v1/users/{user_id}"
	default:
		return path
	}
}

// SearchRecorder binds path observations to one service label so the fusion
// engine never sees prometheus types.
type SearchRecorder struct {
	metrics *HTTPServerMetrics
	service string
}

func (m *HTTPServerMetrics) SearchRecorder(service string) *SearchRecorder {
	return &SearchRecorder{metrics: m, service: service}
}

func (r *SearchRecorder) ObservePath(path string, resultCount int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.searchPathTotal.WithLabelValues(r.service, path, status).Inc()
	if err == nil {
		r.metrics.searchPathResults.WithLabelValues(r.service, path).Observe(float64(resultCount))
	}
}

func (r *SearchRecorder) ObserveFallback() {
	r.metrics.searchFallbackTotal.WithLabelValues(r.service).Inc()
}

func (m *HTTPServerMetrics) RecordSearchDuration(service, endpoint string, duration time.Duration) {
	m.searchDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordQueryRejected(service string) {
	m.queryRejectedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordAnswerStream(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.answerStreamDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
