package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles prometheus metrics collection and reporting
type MetricsCollector struct {
	registry *prometheus.Registry

	mutations         *prometheus.CounterVec
	conflicts         prometheus.Counter
	eventsPublished   *prometheus.CounterVec
	connectedSessions prometheus.Gauge
}

// NewMetricsCollector creates a new metrics collector with its own registry
func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	mutations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_mutations_total",
			Help: "Item mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_update_conflicts_total",
			Help: "Updates rejected because the presented version token was stale",
		},
	)

	eventsPublished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_events_published_total",
			Help: "Change events published to the fan-out hub",
		},
		[]string{"type"},
	)

	connectedSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanout_connected_sessions",
			Help: "Currently connected WebSocket sessions",
		},
	)

	// Register metrics
	for _, metric := range []prometheus.Collector{mutations, conflicts, eventsPublished, connectedSessions} {
		registry.MustRegister(metric)
	}

	return &MetricsCollector{
		registry:          registry,
		mutations:         mutations,
		conflicts:         conflicts,
		eventsPublished:   eventsPublished,
		connectedSessions: connectedSessions,
	}
}

// RecordMutation records one mutation attempt
func (mc *MetricsCollector) RecordMutation(operation, outcome string) {
	mc.mutations.WithLabelValues(operation, outcome).Inc()
}

// RecordConflict records one stale-token rejection
func (mc *MetricsCollector) RecordConflict() {
	mc.conflicts.Inc()
}

// RecordEventPublished records one fan-out event
func (mc *MetricsCollector) RecordEventPublished(eventType string) {
	mc.eventsPublished.WithLabelValues(eventType).Inc()
}

// SetConnectedSessions updates the live session gauge
func (mc *MetricsCollector) SetConnectedSessions(n int) {
	mc.connectedSessions.Set(float64(n))
}

// Handler exposes the collector's registry for the metrics server
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
