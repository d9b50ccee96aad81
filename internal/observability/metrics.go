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
	// Scan metrics
	ScansStarted    *prometheus.CounterVec
	ScansCompleted  *prometheus.CounterVec
	ScanDuration    *prometheus.HistogramVec
	ActiveScans     prometheus.Gauge
	ResultsEmitted  prometheus.Counter
	TickersScanned  prometheus.Counter
	TickersFiltered *prometheus.CounterVec

	// Provider metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderCallErrors  *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Stream metrics
	StreamClients       *prometheus.GaugeVec
	StreamDisconnects   *prometheus.CounterVec
	EventsSent          *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "options_scanner"
	}

	return &Metrics{
		// Scan metrics
		ScansStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "started_total",
			Help:      "Total number of scans started by universe",
		}, []string{"universe"}),
		ScansCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "completed_total",
			Help:      "Total number of scans completed by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"universe"}),
		ActiveScans: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "active",
			Help:      "Number of scans currently running",
		}),
		ResultsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "results_emitted_total",
			Help:      "Total number of option results emitted",
		}),
		TickersScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "tickers_scanned_total",
			Help:      "Total number of tickers whose option chains were scanned",
		}),
		TickersFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "tickers_filtered_total",
			Help:      "Total number of tickers rejected by stage",
		}, []string{"stage"}),

		// Provider metrics
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Market data provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ProviderCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_errors_total",
			Help:      "Total number of failed provider calls",
		}, []string{"method"}),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		}, []string{"cache"}),

		// Stream metrics
		StreamClients: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected event stream clients by transport",
		}, []string{"transport"}),
		StreamDisconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "disconnects_total",
			Help:      "Total number of client disconnects by transport",
		}, []string{"transport"}),
		EventsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_sent_total",
			Help:      "Total number of events sent by type",
		}, []string{"event_type"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last successfully completed scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScanStarted increments the scans started counter.
func RecordScanStarted(universe string) {
	DefaultMetrics.ScansStarted.WithLabelValues(universe).Inc()
	DefaultMetrics.ActiveScans.Inc()
}

// RecordScanFinished records a scan outcome and its duration.
func RecordScanFinished(universe, status string, durationSeconds float64) {
	DefaultMetrics.ScansCompleted.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.WithLabelValues(universe).Observe(durationSeconds)
	DefaultMetrics.ActiveScans.Dec()
}

// RecordResultEmitted increments the results emitted counter.
func RecordResultEmitted() {
	DefaultMetrics.ResultsEmitted.Inc()
}

// RecordTickerScanned increments the tickers scanned counter.
func RecordTickerScanned() {
	DefaultMetrics.TickersScanned.Inc()
}

// RecordTickerFiltered records a ticker rejected by a filter stage.
func RecordTickerFiltered(stage string) {
	DefaultMetrics.TickersFiltered.WithLabelValues(stage).Inc()
}

// RecordProviderCall records provider call latency and errors.
func RecordProviderCall(method string, seconds float64, err error) {
	DefaultMetrics.ProviderCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ProviderCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordCacheHit increments the hit counter for a named cache.
func RecordCacheHit(cache string) {
	DefaultMetrics.CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss increments the miss counter for a named cache.
func RecordCacheMiss(cache string) {
	DefaultMetrics.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordEventSent increments the events sent counter.
func RecordEventSent(eventType string) {
	DefaultMetrics.EventsSent.WithLabelValues(eventType).Inc()
}
