package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderCreated()
	m.OrderTransitioned("Shipped")
	m.OrderTransitioned("Shipped")
	m.StockAdjustmentFailed(3)
	m.AuthAttempt("login", false)
	m.CacheLookup("hit")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.orderTransitions.WithLabelValues("Shipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderTransitioned("Delivered")
		m.StockAdjustmentFailed(1)
		m.ReviewMutated("submit")
		m.VersionConflict("order.transition")
		m.AuthAttempt("login", true)
		m.CacheLookup("miss")
		m.CatalogQuery(4)
	})
}
