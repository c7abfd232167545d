package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Event bus metrics
	EventsPublished    *prometheus.CounterVec
	SubscriberFailures *prometheus.CounterVec

	// Pipeline metrics
	ModuleInvocations *prometheus.CounterVec
	InvocationLatency *prometheus.HistogramVec
	PipelineRuns      prometheus.Counter
	SynthesisLatency  prometheus.Histogram

	// Event stream metrics
	StreamConnections prometheus.Gauge
	StreamFrameDrops  prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics. Bus, registry and store are
// sampled through gauge functions so every scrape reflects live state.
func InitMetrics(bus *EventBus, registry *ModuleRegistry, store *ContextStore) *Metrics {
	metrics := &Metrics{
		// Published events by kind (counter - only goes up)
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_events_published_total",
			Help: "Total number of events published by kind",
		}, []string{"kind"}),

		// Handler failures by kind, errors and recovered panics alike
		SubscriberFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_subscriber_failures_total",
			Help: "Total number of subscriber handler failures by event kind",
		}, []string{"kind"}),

		// Module invocations by module and outcome
		ModuleInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_module_invocations_total",
			Help: "Total number of module invocations by module and outcome",
		}, []string{"module", "outcome"}), // outcome: "success", "error", "timeout", "panic"

		// Single module invocation latency
		InvocationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synapse_module_invocation_seconds",
			Help:    "Module invocation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5}, // invocations are capped by the module timeout
		}, []string{"module"}),

		// Full intelligence pipeline runs
		PipelineRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synapse_pipeline_runs_total",
			Help: "Total number of intelligence pipeline runs",
		}),

		// End-to-end synthesis latency, context update through republish
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synapse_synthesis_seconds",
			Help:    "Intelligence synthesis latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),

		// Event stream websocket connections (gauge - can go up and down)
		StreamConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synapse_stream_connections_active",
			Help: "Number of active event stream WebSocket connections",
		}),

		// Frames dropped because a stream client could not keep up
		StreamFrameDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synapse_stream_frames_dropped_total",
			Help: "Total number of event stream frames dropped on slow clients",
		}),
	}

	// Register collectors that report live state at scrape time
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "synapse_event_history_size",
			Help: "Current number of events retained in the bus history",
		},
		func() float64 {
			if bus != nil {
				return float64(bus.HistorySize())
			}
			return 0
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "synapse_registered_modules",
			Help: "Current number of registered modules",
		},
		func() float64 {
			if registry != nil {
				return float64(registry.Count())
			}
			return 0
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "synapse_active_tasks",
			Help: "Current number of pending or in-progress tasks in the shared context",
		},
		func() float64 {
			if store != nil {
				return float64(store.Stats().ActiveTasks)
			}
			return 0
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "synapse_cached_insights",
			Help: "Current number of unexpired insights in the shared context",
		},
		func() float64 {
			if store != nil {
				return float64(store.Stats().CachedInsights)
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordEventPublished records a published event
func (m *Metrics) RecordEventPublished(kind string) {
	m.EventsPublished.WithLabelValues(kind).Inc()
}

// RecordSubscriberFailure records a failed subscriber handler
func (m *Metrics) RecordSubscriberFailure(kind string) {
	m.SubscriberFailures.WithLabelValues(kind).Inc()
}

// RecordModuleInvocation records a module invocation outcome
func (m *Metrics) RecordModuleInvocation(module, outcome string) {
	m.ModuleInvocations.WithLabelValues(module, outcome).Inc()
}

// RecordInvocationLatency records a single module invocation latency
func (m *Metrics) RecordInvocationLatency(module string, seconds float64) {
	m.InvocationLatency.WithLabelValues(module).Observe(seconds)
}

// RecordPipelineRun records a completed intelligence pipeline run
func (m *Metrics) RecordPipelineRun(seconds float64) {
	m.PipelineRuns.Inc()
	m.SynthesisLatency.Observe(seconds)
}

// RecordStreamConnect records a new event stream connection
func (m *Metrics) RecordStreamConnect() {
	m.StreamConnections.Inc()
}

// RecordStreamDisconnect records an event stream disconnection
func (m *Metrics) RecordStreamDisconnect() {
	m.StreamConnections.Dec()
}

// RecordStreamFrameDrop records a dropped event stream frame
func (m *Metrics) RecordStreamFrameDrop() {
	m.StreamFrameDrops.Inc()
}
