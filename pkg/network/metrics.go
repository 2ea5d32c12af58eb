package network

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsOption configures NewMetrics.
type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	namespace  string
	labels     prometheus.Labels
	registerer prometheus.Registerer
}

// WithNamespace prefixes every metric name. The default is "zerocom".
func WithNamespace(namespace string) MetricsOption {
	return func(o *metricsOptions) { o.namespace = namespace }
}

// WithNodeLabels attaches fixed labels, such as a node name, to every series.
func WithNodeLabels(labels prometheus.Labels) MetricsOption {
	return func(o *metricsOptions) { o.labels = labels }
}

// WithRegisterer registers the collectors on r instead of prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) MetricsOption {
	return func(o *metricsOptions) { o.registerer = r }
}

// Metrics holds the Prometheus collectors updated by servers, peers and clients.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	activeConnections   prometheus.Gauge
	packetsReceived     *prometheus.CounterVec
	packetsSent         *prometheus.CounterVec
	disconnects         *prometheus.CounterVec
	pingDuration        prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
// It panics if they are already registered on the chosen registerer.
func NewMetrics(opts ...MetricsOption) *Metrics {
	o := metricsOptions{namespace: "zerocom", registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	factory := promauto.With(o.registerer)
	desc := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: o.namespace, Name: name, Help: help, ConstLabels: o.labels}
	}

	return &Metrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts(
			desc("connections_accepted_total", "Connections admitted by the server"))),
		connectionsRejected: factory.NewCounter(prometheus.CounterOpts(
			desc("connections_rejected_total", "Connections closed on accept because the server was full"))),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts(
			desc("active_connections", "Connections currently being served"))),
		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts(
			desc("packets_received_total", "Packets decoded, by packet name")), []string{"packet"}),
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts(
			desc("packets_sent_total", "Packets written, by packet name")), []string{"packet"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts(
			desc("disconnects_total", "Ended sessions, by disconnect kind")), []string{"kind"}),
		pingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "ping_duration_seconds",
			Help:        "Ping round trip time seen by clients",
			ConstLabels: o.labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

func (m *Metrics) connectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
	m.activeConnections.Inc()
}

func (m *Metrics) connectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

func (m *Metrics) connectionClosed(reason *DisconnectError) {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
	m.disconnects.WithLabelValues(disconnectKind(reason)).Inc()
}

func (m *Metrics) packetReceived(name string) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(name).Inc()
}

func (m *Metrics) packetSent(name string) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(name).Inc()
}

func (m *Metrics) pingObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.pingDuration.Observe(d.Seconds())
}
