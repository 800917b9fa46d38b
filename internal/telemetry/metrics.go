package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics tracks the observable gauges and counters spec §6 calls for
// ("structured logging/metrics", left to the teacher's own conventions).
type Metrics struct {
	// Record Store / Pacemaker.
	CurrentRound        prometheus.Gauge
	CurrentEpoch        prometheus.Gauge
	HighestCommittedRound prometheus.Gauge
	CommitInterval      prometheus.Histogram
	VotesReceived       prometheus.Counter
	TimeoutsTriggered   prometheus.Counter
	QuorumCertificates  prometheus.Counter

	// P2P.
	PeerCount        prometheus.Gauge
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter

	// Mempool.
	MempoolSize      prometheus.Gauge
	CommandsAccepted prometheus.Counter
	CommandsRejected prometheus.Counter

	// Application.
	ComputeLatency prometheus.Histogram

	// Data-sync.
	SyncStatus prometheus.Gauge // 0=synced, 1=syncing

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,

		CurrentRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "current_round",
			Help:      "The local replica's current round.",
		}),
		CurrentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "current_epoch",
			Help:      "The local replica's current epoch id.",
		}),
		HighestCommittedRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "highest_committed_round",
			Help:      "The highest round committed by the local replica.",
		}),
		CommitInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "commit_interval_seconds",
			Help:      "Time between consecutive commits.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		VotesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "votes_received_total",
			Help:      "Total number of votes received.",
		}),
		TimeoutsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pacemaker",
			Name:      "timeouts_triggered_total",
			Help:      "Total number of timeouts triggered locally.",
		}),
		QuorumCertificates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recordstore",
			Name:      "quorum_certificates_formed_total",
			Help:      "Total number of quorum certificates formed locally.",
		}),

		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "p2p",
			Name:      "peers_connected",
			Help:      "Number of connected peers.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "p2p",
			Name:      "messages_sent_total",
			Help:      "Total number of P2P messages sent.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "p2p",
			Name:      "messages_received_total",
			Help:      "Total number of P2P messages received.",
		}),

		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Current number of commands in the mempool.",
		}),
		CommandsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "commands_accepted_total",
			Help:      "Total commands accepted into the mempool.",
		}),
		CommandsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "commands_rejected_total",
			Help:      "Total commands rejected from the mempool.",
		}),

		ComputeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "application",
			Name:      "compute_latency_seconds",
			Help:      "Application compute() latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		SyncStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasync",
			Name:      "status",
			Help:      "Sync status: 0=synced, 1=syncing.",
		}),
	}

	reg.MustRegister(
		m.CurrentRound, m.CurrentEpoch, m.HighestCommittedRound, m.CommitInterval,
		m.VotesReceived, m.TimeoutsTriggered, m.QuorumCertificates,
		m.PeerCount, m.MessagesSent, m.MessagesReceived,
		m.MempoolSize, m.CommandsAccepted, m.CommandsRejected,
		m.ComputeLatency,
		m.SyncStatus,
	)

	return m
}

// NopMetrics returns a Metrics instance that discards all observations.
func NopMetrics() *Metrics {
	return &Metrics{
		CurrentRound:          prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_cr"}),
		CurrentEpoch:          prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_ce"}),
		HighestCommittedRound: prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_hcr"}),
		CommitInterval:        prometheus.NewHistogram(prometheus.HistogramOpts{Name: "nop_ci"}),
		VotesReceived:         prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_vr"}),
		TimeoutsTriggered:     prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_tt"}),
		QuorumCertificates:    prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_qc"}),
		PeerCount:             prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_pc"}),
		MessagesSent:          prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_ms"}),
		MessagesReceived:      prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_mr"}),
		MempoolSize:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_mps"}),
		CommandsAccepted:      prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_ca"}),
		CommandsRejected:      prometheus.NewCounter(prometheus.CounterOpts{Name: "nop_cj"}),
		ComputeLatency:        prometheus.NewHistogram(prometheus.HistogramOpts{Name: "nop_cl"}),
		SyncStatus:            prometheus.NewGauge(prometheus.GaugeOpts{Name: "nop_ss"}),
		registry:              prometheus.NewRegistry(),
	}
}

// Registry returns the Prometheus registry for this metrics instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsServer serves Prometheus metrics via HTTP.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a metrics HTTP server.
func NewMetricsServer(addr string, metrics *Metrics, logger *zap.Logger) *MetricsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

// Start begins serving metrics.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("metrics server starting", zap.String("addr", ms.server.Addr))
	if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the metrics server.
func (ms *MetricsServer) Stop() error {
	return ms.server.Close()
}
