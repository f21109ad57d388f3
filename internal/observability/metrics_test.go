package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ConflictDetected("HIGH")
	m.ConflictDetected("HIGH")
	m.ConflictResolution(true, false)
	m.ConflictResolution(false, true)
	m.CascadeCases("unassigned", 3)
	m.CascadeCases("unassigned", 0)
	m.RecordRequest("/health/live", "GET", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.conflictsDetected.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("resolved", "automatic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("failed", "manual")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cascadeCases.WithLabelValues("unassigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/health/live", "GET", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConflictDetected("LOW")
		m.ConflictResolution(true, true)
		m.RoleTransition("hire")
		m.CascadeCases("lead_cleared", 1)
		m.BatchUnit("scan")
		m.UnitError("scan")
		m.RecordError("/", "GET", "X")
		m.RecordRequest("/", "GET", 200, time.Second)
	})
}
