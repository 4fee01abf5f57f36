package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIssuance(true)
	m.RecordIssuance(false)
	m.RecordIssuance(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CredentialsIssuedTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CredentialsIssuedTotal.WithLabelValues("failure")))

	m.RecordVerification("credential", false, []string{"Expired", "Revoked"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("credential", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationErrorsTotal.WithLabelValues("Revoked")))

	m.RecordStatusCache(true)
	m.RecordStatusCache(false)
	m.RecordStatusCache(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusCacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatusCacheMissesTotal))

	m.RecordStatusChange("revocation", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RevocationsTotal.WithLabelValues("revocation", "true")))

	m.ObserveDuration("issue", time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDurationSeconds))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIssuance(true)
		m.RecordVerification("credential", true, nil)
		m.RecordStatusFetch(false)
		m.RecordStatusCache(true)
		m.RecordStatusChange("suspension", false)
		m.ObserveDuration("verify", time.Now())
	})
}
