// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "growthwatch"

var (
	registry = prometheus.NewRegistry()

	measurementsRecorded = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "measurements_recorded_total",
		Help:      "Measurements recorded, by resolved nutrition status.",
	}, []string{"status"})

	accessDenied = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "access",
		Name:      "denied_total",
		Help:      "Operations rejected by the access policy.",
	}, []string{"action", "reason"})

	publicReads = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "public",
		Name:      "report_reads_total",
		Help:      "Public report lookups, by outcome.",
	}, []string{"outcome"})

	alertsRaised = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "raised_total",
		Help:      "Danger alerts stored by the alert worker, by status.",
	}, []string{"status"})

	httpRequests = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func Init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func ObserveMeasurement(status string) {
	measurementsRecorded.WithLabelValues(status).Inc()
}

func ObserveAccessDenied(action, reason string) {
	accessDenied.WithLabelValues(action, reason).Inc()
}

// ObservePublicRead records a public lookup; outcome is "hit", "miss" or "not_found".
func ObservePublicRead(outcome string) {
	publicReads.WithLabelValues(outcome).Inc()
}

func ObserveAlert(status string) {
	alertsRaised.WithLabelValues(status).Inc()
}

func ObserveRequest(method string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(seconds)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
