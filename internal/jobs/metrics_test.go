package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("notify:email").End(nil))
	boom := errors.New("smtp down")
	require.ErrorIs(t, m.Track("notify:email").End(boom), boom)

	require.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("notify:email", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("notify:email", "failure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("notify:email")), 0)
}

func TestPurgedIgnoresNonPositive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddPurged(0)
	m.AddPurged(-2)
	m.AddPurged(5)
	require.InDelta(t, 5, testutil.ToFloat64(m.purged), 0)

	var nilMetrics *Metrics
	nilMetrics.AddPurged(3)
	require.NoError(t, nilMetrics.Track("noop").End(nil))
}
