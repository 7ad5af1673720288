package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the command router's Prometheus metrics: message flow
// per channel, resolution outcomes, pattern cache effectiveness,
// parameter conversion failures, and command execution latency.
type Metrics struct {
	// MessageCounter tracks messages by channel and direction.
	// Labels: channel (telegram|discord|slack|cli), direction (inbound|outbound)
	MessageCounter *prometheus.CounterVec

	// ResolutionCounter counts pipeline outcomes.
	// Labels: channel, outcome (executed|not_found|ignored|denied)
	ResolutionCounter *prometheus.CounterVec

	// EmptyPrefixMisses counts messages tested against an empty prefix
	// that resolved to no command. An empty prefix forces every message
	// through the full pipeline; this counter makes that cost visible.
	EmptyPrefixMisses prometheus.Counter

	// PatternCacheCounter tracks compiled-pattern cache lookups.
	// Labels: result (hit|miss)
	PatternCacheCounter *prometheus.CounterVec

	// ConversionErrorCounter counts parameter conversion failures.
	// Labels: type (declared parameter type)
	ConversionErrorCounter *prometheus.CounterVec

	// ExecuteDuration measures command handler latency in seconds.
	// Labels: command, async (true|false)
	// Buckets: 1ms to 30s
	ExecuteDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with a registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry
// so parallel tests do not collide on metric names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_total",
				Help: "Messages processed by channel and direction.",
			},
			[]string{"channel", "direction"},
		),
		ResolutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_resolutions_total",
				Help: "Command resolution outcomes by channel.",
			},
			[]string{"channel", "outcome"},
		),
		EmptyPrefixMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_empty_prefix_misses_total",
				Help: "Messages run through the pipeline under an empty prefix without matching a command.",
			},
		),
		PatternCacheCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_pattern_cache_lookups_total",
				Help: "Compiled usage pattern cache lookups by result.",
			},
			[]string{"result"},
		),
		ConversionErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_conversion_errors_total",
				Help: "Parameter conversion failures by declared type.",
			},
			[]string{"type"},
		),
		ExecuteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_execute_duration_seconds",
				Help:    "Command handler execution latency.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"command", "async"},
		),
	}
}

// MessageReceived records an inbound message.
func (m *Metrics) MessageReceived(channel string) {
	m.MessageCounter.WithLabelValues(channel, "inbound").Inc()
}

// MessageSent records an outbound message.
func (m *Metrics) MessageSent(channel string) {
	m.MessageCounter.WithLabelValues(channel, "outbound").Inc()
}

// ResolutionFinished records the terminal state of one resolution.
func (m *Metrics) ResolutionFinished(channel, outcome string) {
	m.ResolutionCounter.WithLabelValues(channel, outcome).Inc()
}

// PatternCacheLookup records a compiled-pattern cache hit or miss. The
// signature matches the pattern.Cache observer hook.
func (m *Metrics) PatternCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PatternCacheCounter.WithLabelValues(result).Inc()
}

// ConversionError records a parameter conversion failure.
func (m *Metrics) ConversionError(typeName string) {
	m.ConversionErrorCounter.WithLabelValues(typeName).Inc()
}

// ObserveExecution records a command handler's execution latency.
func (m *Metrics) ObserveExecution(command string, async bool, d time.Duration) {
	asyncLabel := "false"
	if async {
		asyncLabel = "true"
	}
	m.ExecuteDuration.WithLabelValues(command, asyncLabel).Observe(d.Seconds())
}
