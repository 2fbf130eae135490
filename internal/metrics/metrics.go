// Package metrics provides Prometheus metrics for the signing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// SignatureRequestsTotal counts signing requests by flow
	// (individual, corporate, employee) and outcome (ok, error).
	SignatureRequestsTotal *prometheus.CounterVec

	// CallbacksTotal counts provider callbacks by result
	// (completed, duplicate, ignored, error).
	CallbacksTotal *prometheus.CounterVec

	// ApprovalChecksTotal counts approval-matcher evaluations by result
	// (approved, rejected).
	ApprovalChecksTotal *prometheus.CounterVec

	// HTTPRequestDuration observes handler latency by route and status.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		SignatureRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clahub_signature_requests_total",
				Help: "Signing requests by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		CallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clahub_callbacks_total",
				Help: "Provider callbacks by result",
			},
			[]string{"result"},
		),
		ApprovalChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clahub_approval_checks_total",
				Help: "Approval matcher evaluations by result",
			},
			[]string{"result"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clahub_http_request_duration_seconds",
				Help:    "HTTP handler latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}
}
