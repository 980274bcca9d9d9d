// Package metrics defines the Prometheus metrics exported by the claims service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for workflow operations
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics groups every collector the service registers. A nil *Metrics is a no-op.
type Metrics struct {
	// Workflow operations by operation name and outcome
	Operations *prometheus.CounterVec

	// Status changes by target status
	Transitions *prometheus.CounterVec

	// Engine operation latency including storage
	OperationLatency *prometheus.HistogramVec

	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_workflow_operations_total",
			Help: "Workflow operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_status_transitions_total",
			Help: "Committed claim status changes by target status",
		}, []string{"to"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claims_workflow_operation_duration_seconds",
			Help:    "Duration of workflow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claims_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// ObserveOperation records the outcome and latency of one engine call
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// IncTransition counts a committed status change
func (m *Metrics) IncTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
}
