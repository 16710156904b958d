// Package metrics provides Prometheus metrics for the visit-to-billing pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	PharmacyAdmissions prometheus.Counter
	BillingAdmissions  prometheus.Counter
	SweepRuns          prometheus.Counter
	FeeResyncs         prometheus.Counter
	ReceiptsIssued     prometheus.Counter
	PharmacyQueueDepth prometheus.Gauge
	BillingQueueDepth  prometheus.Gauge
	SweepDuration      prometheus.Histogram
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg)
}

// NewWithRegistry creates all metrics and registers them on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PharmacyAdmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_admissions_total",
			Help: "Visits admitted to the pharmacy queue",
		}),
		BillingAdmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_admissions_total",
			Help: "Prepared pharmacy items admitted to the billing queue",
		}),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_sweep_runs_total",
			Help: "Billing admission sweep executions",
		}),
		FeeResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_fee_resyncs_total",
			Help: "Pending billing items corrected from late fee edits",
		}),
		ReceiptsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_receipts_issued_total",
			Help: "Receipts generated",
		}),
		PharmacyQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmacy_queue_depth",
			Help: "Pharmacy queue items in pending or preparing",
		}),
		BillingQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "billing_queue_depth",
			Help: "Billing queue items in pending",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_sweep_duration_seconds",
			Help:    "Billing admission sweep duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	reg.MustRegister(
		m.PharmacyAdmissions,
		m.BillingAdmissions,
		m.SweepRuns,
		m.FeeResyncs,
		m.ReceiptsIssued,
		m.PharmacyQueueDepth,
		m.BillingQueueDepth,
		m.SweepDuration,
	)

	return m
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
