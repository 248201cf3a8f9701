package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics to track
var (
	RelationshipOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_relationship_operations_total",
			Help: "Relationship engine operations by outcome",
		},
		[]string{"op", "outcome"}, // outcome: ok, validation, not_found, conflict, transient, error
	)
	RelationshipLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_relationship_operation_seconds",
			Help:    "Relationship engine operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_events_delivered_total",
			Help: "Domain events handed to sinks by outcome",
		},
		[]string{"sink", "outcome"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_events_dropped_total",
			Help: "Domain events dropped because the dispatcher was stopped",
		},
	)
	EventsOverflowed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_events_overflowed_total",
			Help: "Domain events delivered inline because the dispatcher queue stayed full",
		},
	)
	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_event_queue_depth",
			Help: "Events waiting in the dispatcher queue",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers the collectors with the default registry.
// Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(RelationshipOps, RelationshipLatency, EventsDelivered, EventsDropped, EventsOverflowed, EventQueueDepth)
	})
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOperation records one relationship operation.
func ObserveOperation(op, outcome string, elapsed time.Duration) {
	RelationshipOps.WithLabelValues(op, outcome).Inc()
	RelationshipLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}
