package kafka

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds producer and consumer collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	published       *prometheus.CounterVec
	publishErrors   *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	processed       *prometheus.CounterVec
	failed          *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	deadLettered    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published",
		}, []string{"topic"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		}, []string{"topic"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Total number of successfully processed Kafka messages",
		}, []string{"topic", "consumer_group"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Total number of Kafka messages that exhausted handler retries",
		}, []string{"topic", "consumer_group"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_duplicate_total",
			Help: "Total number of duplicate Kafka messages skipped",
		}, []string{"topic", "consumer_group"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Total number of messages published to a dead-letter topic",
		}, []string{"topic", "consumer_group"}),
	}
	reg.MustRegister(m.published, m.publishErrors, m.publishDuration,
		m.processed, m.failed, m.duplicates, m.deadLettered)
	return m
}

func (m *Metrics) observePublish(topic string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.publishDuration.WithLabelValues(topic).Observe(seconds)
	if err != nil {
		m.publishErrors.WithLabelValues(topic).Inc()
		return
	}
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) incProcessed(topic, group string) {
	if m != nil {
		m.processed.WithLabelValues(topic, group).Inc()
	}
}

func (m *Metrics) incFailed(topic, group string) {
	if m != nil {
		m.failed.WithLabelValues(topic, group).Inc()
	}
}

func (m *Metrics) incDuplicate(topic, group string) {
	if m != nil {
		m.duplicates.WithLabelValues(topic, group).Inc()
	}
}

func (m *Metrics) incDeadLettered(topic, group string) {
	if m != nil {
		m.deadLettered.WithLabelValues(topic, group).Inc()
	}
}
