package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)

	Iterations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tsp_iterations_total", Help: "Optimizer iterations across all runs."},
	)
	Improvements = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tsp_improvements_total", Help: "Best-known distance improvements across all runs."},
	)
	// BestDistance is the best-known distance of each executing run. A
	// series is dropped when its run ends.
	BestDistance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tsp_best_distance", Help: "Best-known tour distance by run."},
		[]string{"run"},
	)
	OperatorWins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tsp_operator_wins_total", Help: "Population replacements by the operator that produced the candidate."},
		[]string{"operator"},
	)
	ActiveRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tsp_active_runs", Help: "Runs currently executing."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(Iterations, Improvements, BestDistance, OperatorWins, ActiveRuns)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
