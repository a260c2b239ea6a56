// Package metrics provides Prometheus metrics for spawned subprocesses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spawn",
		Subsystem: "process",
		Name:      "started_total",
		Help:      "Subprocesses launched, by command and stream profile",
	}, []string{"command", "profile"})

	processFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spawn",
		Subsystem: "process",
		Name:      "failures_total",
		Help:      "Subprocesses that failed, by command and failure kind",
	}, []string{"command", "kind"})

	processDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spawn",
		Subsystem: "process",
		Name:      "duration_seconds",
		Help:      "Wall time between launch and exit of a subprocess",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
	}, []string{"command"})

	bytesTransported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spawn",
		Subsystem: "payload",
		Name:      "bytes_total",
		Help:      "Payload bytes written to or read from subprocesses",
	}, []string{"command", "direction"})
)

// ProcessStarted counts a launched subprocess.
func ProcessStarted(command, profile string) {
	processesStarted.WithLabelValues(command, profile).Inc()
}

// ProcessFailed counts a failed subprocess. kind is one of spawn, stderr, exit or template.
func ProcessFailed(command, kind string) {
	processFailures.WithLabelValues(command, kind).Inc()
}

// ProcessExited records how long a subprocess ran.
func ProcessExited(command string, elapsed time.Duration) {
	processDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// BytesIn counts payload bytes written to a subprocess stdin.
func BytesIn(command string, n int64) {
	bytesTransported.WithLabelValues(command, "in").Add(float64(n))
}

// BytesOut counts payload bytes read from a subprocess stdout.
func BytesOut(command string, n int64) {
	bytesTransported.WithLabelValues(command, "out").Add(float64(n))
}
