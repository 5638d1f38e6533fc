// Package metrics exposes Prometheus instrumentation for attribute fetching
// and the SQL stores.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Patch outcomes recorded by ObserveOutcome.
const (
	OutcomePatch        = "patch"
	OutcomeEmpty        = "empty"
	OutcomeNotFound     = "not_found"
	OutcomeUnknownField = "unknown_field"
	OutcomeError        = "error"
)

// Metrics provides observability for the attribute fetcher.
type Metrics struct {
	// Fetch-and-diff latency by proofing context
	FetchDuration *prometheus.HistogramVec

	// Fetch results by context and outcome
	PatchOutcomes *prometheus.CounterVec

	// Attributes emitted by context and operation (set, unset)
	PatchAttributes *prometheus.CounterVec

	// SQL statement latency by success
	QueryDuration *prometheus.HistogramVec
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amp_fetch_duration_seconds",
			Help:    "Duration of attribute fetches by proofing context",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"context"}),

		PatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amp_patch_outcomes_total",
			Help: "Attribute fetch results by proofing context and outcome",
		}, []string{"context", "outcome"}), // outcome: patch, empty, not_found, unknown_field, error

		PatchAttributes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amp_patch_attributes_total",
			Help: "Attributes placed in patches by proofing context and operation",
		}, []string{"context", "op"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amp_store_query_duration_seconds",
			Help:    "Duration of SQL store statements",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"success"}),
	}
}

// ObserveFetch records the duration of one fetch.
func (m *Metrics) ObserveFetch(context string, d time.Duration) {
	if m != nil {
		m.FetchDuration.WithLabelValues(context).Observe(d.Seconds())
	}
}

// ObserveOutcome records how a fetch ended.
func (m *Metrics) ObserveOutcome(context, outcome string) {
	if m != nil {
		m.PatchOutcomes.WithLabelValues(context, outcome).Inc()
	}
}

// ObserveAttributes records the size of a patch.
func (m *Metrics) ObserveAttributes(context string, set, unset int) {
	if m == nil {
		return
	}
	if set > 0 {
		m.PatchAttributes.WithLabelValues(context, "set").Add(float64(set))
	}
	if unset > 0 {
		m.PatchAttributes.WithLabelValues(context, "unset").Add(float64(unset))
	}
}

// RecordQuery implements db.MetricsCollector. The statement text is not used
// as a label.
func (m *Metrics) RecordQuery(_ string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.QueryDuration.WithLabelValues(label).Observe(d.Seconds())
}
