// Package metrics provides Prometheus metrics for issuance, verification and
// status-list lookups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the trust engine metrics. A nil *Metrics records nothing.
type Metrics struct {
	CredentialsIssuedTotal  *prometheus.CounterVec // Issuance attempts by outcome (success, failure)
	VerificationsTotal      *prometheus.CounterVec // Verifications by kind (credential, presentation) and verdict
	VerificationErrorsTotal *prometheus.CounterVec // Verification errors by error kind
	StatusFetchesTotal      *prometheus.CounterVec // Status list fetches by outcome
	StatusCacheHitsTotal    prometheus.Counter
	StatusCacheMissesTotal  prometheus.Counter
	RevocationsTotal        *prometheus.CounterVec // Status changes by purpose

	OperationDurationSeconds *prometheus.HistogramVec // Latency by operation
}

// New creates a Metrics instance registered with reg. A nil reg registers
// with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CredentialsIssuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_trust_credentials_issued_total",
			Help: "Total number of credential issuance attempts by outcome",
		}, []string{"outcome"}),

		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_trust_verifications_total",
			Help: "Total number of verifications by document kind and verdict",
		}, []string{"kind", "verdict"}),

		VerificationErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_trust_verification_errors_total",
			Help: "Total number of verification errors by error kind",
		}, []string{"kind"}),

		StatusFetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_trust_status_list_fetches_total",
			Help: "Total number of status list fetches by outcome",
		}, []string{"outcome"}),

		StatusCacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_status_list_cache_hits_total",
			Help: "Total number of status list cache hits",
		}),

		StatusCacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "credential_trust_status_list_cache_misses_total",
			Help: "Total number of status list cache misses",
		}),

		RevocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_trust_status_changes_total",
			Help: "Total number of credential status changes by purpose and value",
		}, []string{"purpose", "set"}),

		OperationDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credential_trust_operation_duration_seconds",
			Help:    "Duration of trust engine operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// RecordIssuance records an issuance attempt.
func (m *Metrics) RecordIssuance(success bool) {
	if m == nil {
		return
	}
	m.CredentialsIssuedTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordVerification records a verification verdict and its error kinds.
func (m *Metrics) RecordVerification(kind string, valid bool, errorKinds []string) {
	if m == nil {
		return
	}
	verdict := "invalid"
	if valid {
		verdict = "valid"
	}
	m.VerificationsTotal.WithLabelValues(kind, verdict).Inc()
	for _, k := range errorKinds {
		m.VerificationErrorsTotal.WithLabelValues(k).Inc()
	}
}

// RecordStatusFetch records a status list fetch.
func (m *Metrics) RecordStatusFetch(success bool) {
	if m == nil {
		return
	}
	m.StatusFetchesTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordStatusCache records a status list cache lookup.
func (m *Metrics) RecordStatusCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.StatusCacheHitsTotal.Inc()
		return
	}
	m.StatusCacheMissesTotal.Inc()
}

// RecordStatusChange records a status bit change.
func (m *Metrics) RecordStatusChange(purpose string, set bool) {
	if m == nil {
		return
	}
	value := "false"
	if set {
		value = "true"
	}
	m.RevocationsTotal.WithLabelValues(purpose, value).Inc()
}

// ObserveDuration records the duration of operation since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
