// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Flow metrics
	FlowsProcessed    prometheus.Counter
	FlowsSkipped      *prometheus.CounterVec
	HighestSlotSeen   prometheus.Gauge
	LastFlowTimestamp prometheus.Gauge

	// Detection metrics
	WhaleEvents      *prometheus.CounterVec
	SilenceEvents    *prometheus.CounterVec
	WalletSignals    *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	TokenState       *prometheus.GaugeVec
	SilentWallets    *prometheus.GaugeVec
	TrackedWallets   *prometheus.GaugeVec

	// Latency metrics
	FlowProcessingLatency prometheus.Histogram
	RPCCallLatency        *prometheus.HistogramVec

	// Sink metrics
	SinkErrors *prometheus.CounterVec

	// Verification metrics
	ReconcileDivergences prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_signal_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		FlowsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "flows_processed_total",
			Help:      "Total number of flows processed",
		}),
		FlowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "flows_skipped_total",
			Help:      "Total number of flows skipped by reason",
		}, []string{"reason"}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),
		LastFlowTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_flow_timestamp",
			Help:      "Block time of the newest processed flow",
		}),

		WhaleEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "whale",
			Name:      "events_total",
			Help:      "Total number of whale events by type",
		}, []string{"event_type"}),
		SilenceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "silence",
			Name:      "events_total",
			Help:      "Total number of silence events by pattern",
		}, []string{"pattern"}),
		WalletSignals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "signals_total",
			Help:      "Total number of wallet signals by kind",
		}, []string{"signal"}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of token state transitions by target state",
		}, []string{"to", "severity"}),
		TokenState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "token_state",
			Help:      "Current token state, 1 for the active state",
		}, []string{"mint", "state"}),
		SilentWallets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "silence",
			Name:      "silent_wallets",
			Help:      "Number of tracked wallets currently silent",
		}, []string{"mint"}),
		TrackedWallets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "silence",
			Name:      "tracked_wallets",
			Help:      "Number of wallets tracked for silence",
		}, []string{"mint"}),

		FlowProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "flow_processing_latency_seconds",
			Help:      "Flow processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "sink_errors_total",
			Help:      "Total number of event sink failures by sink",
		}, []string{"sink"}),

		ReconcileDivergences: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "reconcile_divergences",
			Help:      "Differences found by the last streaming vs batch reconcile",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordFlow records a processed flow.
func (m *Metrics) RecordFlow(slot, timestamp int64, seconds float64) {
	m.FlowsProcessed.Inc()
	m.FlowProcessingLatency.Observe(seconds)
	m.LastFlowTimestamp.Set(float64(timestamp))
	if slot > 0 {
		m.HighestSlotSeen.Set(float64(slot))
	}
}

// RecordSkip records a skipped flow.
func (m *Metrics) RecordSkip(reason string) {
	m.FlowsSkipped.WithLabelValues(reason).Inc()
}

// RecordWhaleEvent increments the whale event counter.
func (m *Metrics) RecordWhaleEvent(eventType string) {
	m.WhaleEvents.WithLabelValues(eventType).Inc()
}

// RecordSilenceEvent increments the silence event counter.
func (m *Metrics) RecordSilenceEvent(pattern string) {
	m.SilenceEvents.WithLabelValues(pattern).Inc()
}

// RecordWalletSignal counts every signal kind carried by one signal event.
func (m *Metrics) RecordWalletSignal(kinds []string) {
	for _, k := range kinds {
		m.WalletSignals.WithLabelValues(k).Inc()
	}
}

// RecordTransition counts a transition and moves the state gauge.
func (m *Metrics) RecordTransition(mint, to, severity string) {
	m.StateTransitions.WithLabelValues(to, severity).Inc()
	m.SetTokenState(mint, to)
}

// SetTokenState marks state as the only active state for mint.
func (m *Metrics) SetTokenState(mint, state string) {
	m.TokenState.DeletePartialMatch(prometheus.Labels{"mint": mint})
	m.TokenState.WithLabelValues(mint, state).Set(1)
}

// SetWalletCounts updates the silence wallet gauges.
func (m *Metrics) SetWalletCounts(mint string, tracked, silent int) {
	m.TrackedWallets.WithLabelValues(mint).Set(float64(tracked))
	m.SilentWallets.WithLabelValues(mint).Set(float64(silent))
}

// RecordSinkError records an event sink failure.
func (m *Metrics) RecordSinkError(sink string) {
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
