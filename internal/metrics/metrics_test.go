package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// Verify all metrics are non-nil (registered via promauto on package init).
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, HealthzUp)
	assert.NotNil(t, ReadyzUp)
	assert.NotNil(t, CyclesTotal)
	assert.NotNil(t, CycleFailuresTotal)
	assert.NotNil(t, CycleDuration)
	assert.NotNil(t, ResilienceScore)
	assert.NotNil(t, LastCycleTimestamp)
	assert.NotNil(t, FetchErrorsTotal)
	assert.NotNil(t, FetchDuration)
	assert.NotNil(t, ListingsFetchedTotal)
	assert.NotNil(t, ListingsNewTotal)
	assert.NotNil(t, NotificationsSentTotal)
	assert.NotNil(t, NotificationFailuresTotal)
	assert.NotNil(t, NotificationDuration)
	assert.NotNil(t, AlertsSentTotal)
	assert.NotNil(t, SeenListings)
	assert.NotNil(t, SnapshotSaveErrorsTotal)
}

func TestMetricsGathered(t *testing.T) {
	t.Parallel()

	SeenListings.WithLabelValues("metrics-test").Set(3)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == namespace+"_seen_listings" {
			found = mf
		}
	}
	require.NotNil(t, found)

	var value float64
	for _, m := range found.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "query" && lp.GetValue() == "metrics-test" {
				value = m.GetGauge().GetValue()
			}
		}
	}
	assert.InDelta(t, 3.0, value, 0.001)
}
