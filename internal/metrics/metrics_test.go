package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered without conflicts
	// This test ensures no duplicate metric names

	metrics := []prometheus.Collector{
		HTTPErrorsTotal,

		ConnectedObservers,
		WatchedPolls,
		BroadcastsTotal,
		DeliveriesTotal,
		EvictedObservers,

		VotesTotal,
		SnapshotBuildDuration,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		close(desc)

		require.NotNil(t, <-desc, "metric should have a valid descriptor")
	}
}

func TestVoteOutcomeCounter(t *testing.T) {
	before := testutil.ToFloat64(VotesTotal.WithLabelValues(OutcomeRecorded))
	VotesTotal.WithLabelValues(OutcomeRecorded).Inc()
	after := testutil.ToFloat64(VotesTotal.WithLabelValues(OutcomeRecorded))

	assert.Equal(t, before+1, after)
}

func TestDeliveryCounterLabels(t *testing.T) {
	DeliveriesTotal.WithLabelValues("delivered").Add(2)
	DeliveriesTotal.WithLabelValues("failed").Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(DeliveriesTotal.WithLabelValues("delivered")), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(DeliveriesTotal.WithLabelValues("failed")), 1.0)
}
