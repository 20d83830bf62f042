// Package metrics exposes the controller's Prometheus metrics:
//   - axia_commands_total{action,outcome}        – commands by final outcome
//   - axia_venue_calls_total{op,result}          – venue open/close calls
//   - axia_store_conflicts_total                 – optimistic-lock rejections
//   - axia_critical_inconsistencies_total        – venue-succeeded/store-failed events
//   - axia_gate_blocks_total                     – commands blocked by the safety gate
//   - axia_gate_active                           – current gate flag (gauge)
//   - axia_command_duration_seconds{action}      – end-to-end handle latency
//
// All collectors are registered in init() and served by the /metrics listener
// started in run mode.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axia_commands_total",
			Help: "Commands processed, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	venueCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axia_venue_calls_total",
			Help: "Venue execution calls, by operation and result",
		},
		[]string{"op", "result"},
	)

	storeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axia_store_conflicts_total",
			Help: "Conditional writes rejected due to a stale version",
		},
	)

	criticalInconsistenciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axia_critical_inconsistencies_total",
			Help: "Venue side effect confirmed but state persistence exhausted its retries",
		},
	)

	gateBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axia_gate_blocks_total",
			Help: "Commands blocked by an active safety gate",
		},
	)

	gateActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "axia_gate_active",
			Help: "Safety gate flag: 1 when trading is halted",
		},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axia_command_duration_seconds",
			Help:    "End-to-end command handling latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		commandsTotal,
		venueCallsTotal,
		storeConflictsTotal,
		criticalInconsistenciesTotal,
		gateBlocksTotal,
		gateActive,
		commandDuration,
	)
}

// CommandHandled records a command reaching a final consumer outcome.
func CommandHandled(action, outcome string) {
	commandsTotal.WithLabelValues(action, outcome).Inc()
}

// VenueCall records one venue invocation.
func VenueCall(op string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	venueCallsTotal.WithLabelValues(op, result).Inc()
}

// StoreConflict records an optimistic-lock rejection.
func StoreConflict() {
	storeConflictsTotal.Inc()
}

// CriticalInconsistency records a venue-succeeded/store-failed event.
func CriticalInconsistency() {
	criticalInconsistenciesTotal.Inc()
}

// GateBlocked records a command cancelled by the safety gate.
func GateBlocked() {
	gateBlocksTotal.Inc()
}

// SetGateActive reflects the polled gate flag.
func SetGateActive(active bool) {
	if active {
		gateActive.Set(1)
	} else {
		gateActive.Set(0)
	}
}

// ObserveCommand records handle latency for one command.
func ObserveCommand(action string, d time.Duration) {
	commandDuration.WithLabelValues(action).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the Prometheus text exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}
