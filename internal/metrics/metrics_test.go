package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollectorsRegisterWithoutDuplicateNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors()
	assert.NotPanics(t, func() { c.MustRegister(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}

func TestCollectorsIncrementIndependently(t *testing.T) {
	c := NewCollectors()
	c.GapCount.Inc()
	c.GapCount.Inc()
	c.LostPackets.Add(3)

	assert.Equal(t, float64(2), counterValue(t, c.GapCount))
	assert.Equal(t, float64(3), counterValue(t, c.LostPackets))
	assert.Equal(t, float64(0), counterValue(t, c.ParseErrors))
}
