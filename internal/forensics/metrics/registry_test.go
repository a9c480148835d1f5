package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)
	require.NotNil(t, m)

	m.PhaseOutcomes.WithLabelValues("weak-supervision-fusion", "success").Inc()
	m.PhaseOutcomes.WithLabelValues("weak-supervision-fusion", "success").Inc()
	m.PhaseOutcomes.WithLabelValues("conformal-anomaly", "failed").Inc()

	assert.Equal(t, 2.0, m.PhaseOutcomeCount("weak-supervision-fusion", "success"))
	assert.Equal(t, 1.0, m.PhaseOutcomeCount("conformal-anomaly", "failed"))
	assert.Equal(t, 0.0, m.PhaseOutcomeCount("persist-results", "success"))
}

func TestNewRegistryNilRegistererSkipsRegistration(t *testing.T) {
	m := NewRegistry(nil)
	require.NotNil(t, m)
	m.WorkerFallbacks.Inc()
}
