package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"sms-transactions/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Store
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeSize    prometheus.Gauge

	// HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	authFailures *prometheus.CounterVec

	// Loader
	loads         *prometheus.CounterVec
	loadedRecords prometheus.Gauge
	loadLatency   prometheus.Histogram

	// Bloom filter
	bloomRejected *prometheus.CounterVec

	// Change feed
	circuitOpens   *prometheus.CounterVec
	circuitState   *prometheus.GaugeVec
	queueDepth     prometheus.Gauge
	droppedEvents  prometheus.Counter
	publishedTotal *prometheus.CounterVec
	publishLatency prometheus.Histogram
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	pc := &PrometheusCollector{
		namespace: namespace,
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of store operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~0.26s
			},
			[]string{"operation"},
		),
		storeSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_transactions",
				Help:      "Number of live transactions held in memory",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of rejected credentials by reason",
			},
			[]string{"reason"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_loads_total",
				Help:      "Total number of document loads by result",
			},
			[]string{"result"},
		),
		loadedRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "document_loaded_records",
				Help:      "Number of records ingested by the last document load",
			},
		),
		loadLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_load_duration_seconds",
				Help:      "Document load latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		bloomRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bloom_rejections_total",
				Help:      "Lookups answered as not found by the bloom filter",
			},
			[]string{"operation"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"name"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_depth",
				Help:      "Current change event queue depth",
			},
		),
		droppedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Total number of change events dropped due to backpressure",
			},
		),
		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of change events published by status",
			},
			[]string{"status"},
		),
		publishLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_publish_duration_seconds",
				Help:      "Change event publish latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
		),
	}

	return pc
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.storeOps,
		pc.storeLatency,
		pc.storeSize,
		pc.httpRequests,
		pc.httpLatency,
		pc.authFailures,
		pc.loads,
		pc.loadedRecords,
		pc.loadLatency,
		pc.bloomRejected,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedEvents,
		pc.publishedTotal,
		pc.publishLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// Handler returns an HTTP handler exposing the metrics gathered by registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// RecordStoreOperation records a store operation.
func (pc *PrometheusCollector) RecordStoreOperation(op string, outcome string, duration time.Duration) {
	pc.storeOps.WithLabelValues(op, outcome).Inc()
	pc.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordStoreSize records the number of live transactions.
func (pc *PrometheusCollector) RecordStoreSize(size int) {
	pc.storeSize.Set(float64(size))
}

// RecordRequest records a completed HTTP request.
func (pc *PrometheusCollector) RecordRequest(method, route string, status int, duration time.Duration) {
	pc.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pc.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthFailure records a rejected credential.
func (pc *PrometheusCollector) RecordAuthFailure(reason string) {
	pc.authFailures.WithLabelValues(reason).Inc()
}

// RecordLoad records a document load.
func (pc *PrometheusCollector) RecordLoad(records int, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	pc.loads.WithLabelValues(result).Inc()
	pc.loadedRecords.Set(float64(records))
	pc.loadLatency.Observe(duration.Seconds())
}

// RecordBloomRejection records a lookup rejected by the bloom filter.
func (pc *PrometheusCollector) RecordBloomRejection(op string) {
	pc.bloomRejected.WithLabelValues(op).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(name string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(name).Inc()
	}
}

// RecordQueueDepth records the current change event queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(depth int) {
	pc.queueDepth.Set(float64(depth))
}

// RecordEventDropped records a dropped change event.
func (pc *PrometheusCollector) RecordEventDropped() {
	pc.droppedEvents.Inc()
}

// RecordEventPublish records a change event publish attempt.
func (pc *PrometheusCollector) RecordEventPublish(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.publishedTotal.WithLabelValues(status).Inc()
	pc.publishLatency.Observe(duration.Seconds())
}
