package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the mock API.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Mock API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	checkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "harness",
			Name:      "checks_total",
			Help:      "Verification checks by outcome.",
		},
		[]string{"check", "outcome", "status"},
	)
	checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labctl",
			Subsystem: "harness",
			Name:      "check_duration_seconds",
			Help:      "Verification check round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"check", "outcome"},
	)
	toolProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "bootstrap",
			Name:      "probes_total",
			Help:      "Tool presence probes by result.",
		},
		[]string{"tool", "installed"},
	)
	installSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labctl",
			Subsystem: "bootstrap",
			Name:      "install_steps_total",
			Help:      "Installer invocations by tool and result.",
		},
		[]string{"tool", "command", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			checkOutcomes, checkDuration,
			toolProbes, installSteps,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCheck counts one harness outcome. status is 0 when no response arrived.
func RecordCheck(check, outcome string, status int, duration time.Duration) {
	RegisterMetrics()
	checkOutcomes.WithLabelValues(check, outcome, strconv.Itoa(status)).Inc()
	checkDuration.WithLabelValues(check, outcome).Observe(duration.Seconds())
}

func RecordProbe(tool string, installed bool) {
	RegisterMetrics()
	toolProbes.WithLabelValues(tool, strconv.FormatBool(installed)).Inc()
}

func RecordInstallStep(tool, command string, success bool) {
	RegisterMetrics()
	installSteps.WithLabelValues(tool, command, strconv.FormatBool(success)).Inc()
}

// WriteTextfile dumps the default registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
