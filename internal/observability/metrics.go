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
			Namespace: "drivectl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drivectl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	driveCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivectl",
			Subsystem: "drive",
			Name:      "commands_total",
			Help:      "Drive command exchanges by mnemonic and result.",
		},
		[]string{"mnemonic", "result"},
	)
	driveCommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drivectl",
			Subsystem: "drive",
			Name:      "command_duration_seconds",
			Help:      "Drive command round trip in seconds, lock wait excluded.",
			Buckets:   []float64{.005, .01, .02, .05, .1, .25, .5, 1, 2},
		},
		[]string{"mnemonic"},
	)
	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivectl",
			Name:      "poll_cycles_total",
			Help:      "Status poll cycles by cadence mode.",
		},
		[]string{"mode"},
	)
	faults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivectl",
			Name:      "faults_total",
			Help:      "Fault notifications by alarm code.",
		},
		[]string{"code"},
	)
	relayLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivectl",
			Subsystem: "relay",
			Name:      "lines_total",
			Help:      "Relay lines by direction and parse outcome.",
		},
		[]string{"device", "direction", "parsed"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			driveCommands, driveCommandDuration,
			pollCycles, faults, relayLines,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Command results.
const (
	ResultOK        = "ok"
	ResultNoReply   = "no_reply"
	ResultLinkError = "link_error"
	ResultOffline   = "offline"
)

func RecordDriveCommand(mnemonic, result string, duration time.Duration) {
	RegisterMetrics()
	driveCommands.WithLabelValues(mnemonic, result).Inc()
	if result != ResultOffline {
		driveCommandDuration.WithLabelValues(mnemonic).Observe(duration.Seconds())
	}
}

func RecordPollCycle(mode string) {
	RegisterMetrics()
	pollCycles.WithLabelValues(mode).Inc()
}

func RecordFault(code string) {
	RegisterMetrics()
	faults.WithLabelValues(code).Inc()
}

func RecordRelayLine(device, direction string, parsed bool) {
	RegisterMetrics()
	relayLines.WithLabelValues(device, direction, strconv.FormatBool(parsed)).Inc()
}
