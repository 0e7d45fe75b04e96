package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	authRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extauthd",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Total dispatched auth requests by command and status.",
		},
		[]string{"command", "status"},
	)
	authDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extauthd",
			Subsystem: "auth",
			Name:      "request_duration_seconds",
			Help:      "Provider dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	engineFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extauthd",
			Subsystem: "engine",
			Name:      "faults_total",
			Help:      "Messages dropped without a response, by fault kind.",
		},
		[]string{"kind"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extauthd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the metrics listener.",
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(authRequests, authDuration, engineFaults, httpRequests)
	})
}

// RecordRequest counts one answered request. status is "1" or "0".
func RecordRequest(command string, ok bool, duration time.Duration) {
	RegisterMetrics()
	status := "0"
	if ok {
		status = "1"
	}
	authRequests.WithLabelValues(command, status).Inc()
	authDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordFault counts one dropped message.
func RecordFault(kind string) {
	RegisterMetrics()
	engineFaults.WithLabelValues(kind).Inc()
}

func recordHTTPRequest(method, path, status string) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, status).Inc()
}
