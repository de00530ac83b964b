// Package metrics exposes Prometheus instrumentation for collection,
// alert evaluation and notification delivery. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hostpulse"

// Collection outcomes.
const (
	CollectionOK      = "ok"
	CollectionError   = "error"
	CollectionSkipped = "skipped"
)

// Evaluation outcomes.
const (
	EvaluationFired      = "fired"
	EvaluationSuppressed = "suppressed"
	EvaluationLostClaim  = "lost_claim"
	EvaluationFailed     = "failed"
)

// Metrics holds the registered collectors.
type Metrics struct {
	collections        *prometheus.CounterVec
	collectionDuration *prometheus.HistogramVec
	evaluations        *prometheus.CounterVec
	deliveries         *prometheus.CounterVec
	lastSampleTime     *prometheus.GaugeVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		collections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Resource sample collections by host and outcome.",
		}, []string{"host", "status"}),
		collectionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_duration_seconds",
			Help:      "Time spent probing a host.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 5, 10, 30},
		}, []string{"host"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_evaluations_total",
			Help:      "Alert threshold crossings by outcome.",
		}, []string{"outcome"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Notification sends by channel and result.",
		}, []string{"channel", "status"}),
		lastSampleTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix time of the last stored sample per host.",
		}, []string{"host"}),
	}
}

// ObserveCollection records one collection attempt.
func (m *Metrics) ObserveCollection(host, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.collections.WithLabelValues(host, status).Inc()
	if status != CollectionSkipped {
		m.collectionDuration.WithLabelValues(host).Observe(elapsed.Seconds())
	}
}

// SetLastSample records the timestamp of a stored sample.
func (m *Metrics) SetLastSample(host string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSampleTime.WithLabelValues(host).Set(float64(at.Unix()))
}

// ObserveEvaluation records the outcome of a threshold crossing.
func (m *Metrics) ObserveEvaluation(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// ObserveDelivery records one channel send.
func (m *Metrics) ObserveDelivery(channel string, delivered bool) {
	if m == nil {
		return
	}
	status := "failed"
	if delivered {
		status = "delivered"
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}
