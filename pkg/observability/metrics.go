package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline and collector
type Metrics struct {
	// Pipeline metrics
	EventsTracked    *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	ErrorsCaptured   prometheus.Counter
	EnrollmentsTotal *prometheus.CounterVec
	MetricSamples    *prometheus.CounterVec

	// Collector HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Collector ingest and store metrics
	IngestTotal            *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreErrorsTotal       *prometheus.CounterVec
	ArchiveRunsTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EventsTracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_events_tracked_total",
				Help: "Total number of telemetry events tracked",
			},
			[]string{"name"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_deliveries_total",
				Help: "Total number of event delivery attempts",
			},
			[]string{"status"},
		),
		DeliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beacon_delivery_duration_seconds",
				Help:    "Event delivery duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ErrorsCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_errors_captured_total",
				Help: "Total number of application errors captured",
			},
		),
		EnrollmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_enrollments_total",
				Help: "Total number of experiment enrollments",
			},
			[]string{"test", "variant"},
		),
		MetricSamples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_metric_samples_total",
				Help: "Total number of samples recorded into rolling windows",
			},
			[]string{"metric"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		IngestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_ingest_total",
				Help: "Total number of events received by the collector",
			},
			[]string{"status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_store_operation_duration_seconds",
				Help:    "Event store operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "backend"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_store_errors_total",
				Help: "Total number of event store errors",
			},
			[]string{"operation", "backend"},
		),
		ArchiveRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_archive_runs_total",
				Help: "Total number of archive runs",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.EventsTracked,
		m.DeliveriesTotal,
		m.DeliveryDuration,
		m.ErrorsCaptured,
		m.EnrollmentsTotal,
		m.MetricSamples,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IngestTotal,
		m.StoreOperationDuration,
		m.StoreErrorsTotal,
		m.ArchiveRunsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
