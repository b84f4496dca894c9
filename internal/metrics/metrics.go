// Package metrics collects prometheus metrics for plugin operations.
//
// The CLI runs one operation (or one workflow) per process, so metrics are
// not served over HTTP; they are written to a node-exporter textfile on exit
// when a path is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK             = "ok"
	OutcomeRecoverable    = "recoverable"
	OutcomeNonRecoverable = "nonrecoverable"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec   // operations by kind, operation and outcome
	operationDuration *prometheus.HistogramVec // wall time of operations
	retriesTotal      *prometheus.CounterVec   // sleeps spent in convergence loops
	hypervisorOpens   *prometheus.CounterVec   // connection attempts by result
	processStartTime  prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrow_operations_total",
			Help: "Number of lifecycle operations that have run.",
		},
		// kind: domain, network, pool, volume, iso
		// operation: create, start, snapshot_create, ...
		// outcome: ok, recoverable or nonrecoverable
		[]string{"kind", "operation", "outcome"},
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harrow_operation_duration_seconds",
			Help:    "Duration of lifecycle operations.",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
		[]string{"kind", "operation"},
	)
	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrow_retries_total",
			Help: "Number of retry sleeps taken while waiting for a state or lease.",
		},
		[]string{"kind", "operation"},
	)
	m.hypervisorOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrow_hypervisor_connections_total",
			Help: "Number of hypervisor connection attempts.",
		},
		[]string{"result"},
	)
	m.processStartTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harrow_process_start_time_seconds",
			Help: "Start time of the process since unix epoch in seconds.",
		},
	)

	m.registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.retriesTotal,
		m.hypervisorOpens,
		m.processStartTime,
	)
	m.processStartTime.SetToCurrentTime()

	return m
}

// ObserveOperation records a finished operation.
func (m *Metrics) ObserveOperation(kind, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(kind, operation, outcome).Inc()
	m.operationDuration.WithLabelValues(kind, operation).Observe(elapsed.Seconds())
}

// Retry records one sleep of a convergence loop.
func (m *Metrics) Retry(kind, operation string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind, operation).Inc()
}

// Connection records a hypervisor connection attempt.
func (m *Metrics) Connection(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.hypervisorOpens.WithLabelValues(result).Inc()
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format. The file
// is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
