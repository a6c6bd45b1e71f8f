// Package metrics registers the Prometheus collectors for the data layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	namespace = "hms"

	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend requests issued by the gateway, by outcome",
		},
		[]string{"collection", "op", "outcome"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection", "op"},
	)

	operationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_transitions_total",
			Help:      "Request lifecycle transitions, by container, operation and status entered",
		},
		[]string{"container", "op", "status"},
	)

	collectionSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "collection_size",
			Help:      "Number of entities currently held by a container",
		},
		[]string{"container"},
	)
)

// ObserveGatewayCall records one backend request.
func ObserveGatewayCall(collection, op, outcome string, d time.Duration) {
	gatewayRequestsTotal.WithLabelValues(collection, op, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(collection, op).Observe(d.Seconds())
}

// ObserveTransition records a tracker entering status.
func ObserveTransition(container, op, status string) {
	operationTransitionsTotal.WithLabelValues(container, op, status).Inc()
}

// SetCollectionSize records the size of a container's collection.
func SetCollectionSize(container string, n int) {
	collectionSize.WithLabelValues(container).Set(float64(n))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
