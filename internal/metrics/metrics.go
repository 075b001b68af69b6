// Package metrics holds storefront business counters. A nil *Metrics is
// valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the domain collectors.
type Metrics struct {
	ordersCreated      prometheus.Counter
	orderTransitions   *prometheus.CounterVec
	stockFailures      prometheus.Counter
	reviewMutations    *prometheus.CounterVec
	versionConflicts   *prometheus.CounterVec
	authAttempts       *prometheus.CounterVec
	cacheRequests      *prometheus.CounterVec
	catalogQueryResult prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders placed",
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order status transitions by target status",
		}, []string{"status"}),
		stockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_stock_adjustment_failures_total",
			Help: "Line items whose stock could not be decremented on shipment",
		}),
		reviewMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_review_mutations_total",
			Help: "Review submissions and removals",
		}, []string{"action"}),
		versionConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_version_conflicts_total",
			Help: "Optimistic lock conflicts by operation",
		}, []string{"operation"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auth_attempts_total",
			Help: "Credential checks by kind and result",
		}, []string{"kind", "result"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_product_cache_requests_total",
			Help: "Product cache lookups by result",
		}, []string{"result"}),
		catalogQueryResult: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_catalog_filtered_count",
			Help:    "Number of products matching a catalog query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderTransitions, m.stockFailures, m.reviewMutations,
		m.versionConflicts, m.authAttempts, m.cacheRequests, m.catalogQueryResult)
	return m
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) OrderTransitioned(status string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) StockAdjustmentFailed(n int) {
	if m == nil {
		return
	}
	m.stockFailures.Add(float64(n))
}

// ReviewMutated counts a review action, "submit" or "remove".
func (m *Metrics) ReviewMutated(action string) {
	if m == nil {
		return
	}
	m.reviewMutations.WithLabelValues(action).Inc()
}

func (m *Metrics) VersionConflict(operation string) {
	if m == nil {
		return
	}
	m.versionConflicts.WithLabelValues(operation).Inc()
}

// AuthAttempt counts a credential check such as kind "login", result "failure".
func (m *Metrics) AuthAttempt(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.authAttempts.WithLabelValues(kind, result).Inc()
}

// CacheLookup counts a cache lookup as "hit", "miss" or "error".
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) CatalogQuery(filtered int64) {
	if m == nil {
		return
	}
	m.catalogQueryResult.Observe(float64(filtered))
}
