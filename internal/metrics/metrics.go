// Package metrics exposes Prometheus collectors for the harvester
// service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestRunsTotal           *prometheus.CounterVec
	harvestRecordsTotal        prometheus.Counter
	harvestRowsRejectedTotal   *prometheus.CounterVec
	harvestIterations          prometheus.Histogram
	harvestConvergenceTotal    *prometheus.CounterVec
	harvestActiveRuns          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total number of harvest runs, labeled by final status.",
			},
			[]string{"status"},
		)

		harvestRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Total number of distinct records harvested.",
			},
		)

		harvestRowsRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_rows_rejected_total",
				Help: "Total number of rendered rows rejected, labeled by reason.",
			},
			[]string{"reason"},
		)

		harvestIterations = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_iterations",
				Help:    "Histogram of scroll iterations per harvest run.",
				Buckets: []float64{1, 2, 5, 10, 20, 35, 50},
			},
		)

		harvestConvergenceTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_convergence_total",
				Help: "Total harvest terminations, labeled by convergence outcome.",
			},
			[]string{"outcome"},
		)

		harvestActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_runs",
				Help: "Number of harvest runs currently executing.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run with its final status.
func ObserveRun(status string) {
	harvestRunsTotal.WithLabelValues(status).Inc()
}

// ObserveHarvest records the outcome of one harvest loop execution.
func ObserveHarvest(records, rejected, iterations int, outcome string) {
	if records > 0 {
		harvestRecordsTotal.Add(float64(records))
	}
	if rejected > 0 {
		harvestRowsRejectedTotal.WithLabelValues("malformed").Add(float64(rejected))
	}
	harvestIterations.Observe(float64(iterations))
	harvestConvergenceTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	harvestActiveRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	harvestActiveRuns.Dec()
}
