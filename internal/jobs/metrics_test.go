package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("stock:reconcile").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("stock:reconcile").End(err), err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:reconcile", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("stock:reconcile")))
}

func TestRowCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddRows(OutcomeUpserted, 12)
	m.AddRows(OutcomeInapplicable, 3)
	m.AddRows(OutcomeFailed, 0)
	m.AddProductsCreated(2)
	m.IncLockContention()

	require.Equal(t, 12.0, testutil.ToFloat64(m.rows.WithLabelValues(OutcomeUpserted)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues(OutcomeInapplicable)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.productsCreated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lockContention))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.AddRows(OutcomeUpserted, 1)
	m.AddProductsCreated(1)
	m.IncLockContention()
	err := errors.New("x")
	require.ErrorIs(t, m.Track("job").End(err), err)
}
