package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StokensIssued counts stokens minted by the ledger, by record kind.
	StokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffer_stokens_issued_total",
		Help: "Total number of sync tokens issued, by record kind",
	}, []string{"kind"})

	// SyncPageLatency records sync cursor page scan latency by record kind.
	SyncPageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coffer_sync_page_latency_seconds",
		Help:    "Sync page scan latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// MembershipMutations counts membership changes by operation.
	MembershipMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffer_membership_mutations_total",
		Help: "Total membership changes, by operation",
	}, []string{"operation"})

	// SyncNudgesPublished counts collection change notifications published to Redis.
	SyncNudgesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coffer_sync_nudges_published_total",
		Help: "Total collection change notifications published",
	})

	// WebSocketConnections is the gauge of active sync WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coffer_websocket_connections",
		Help: "Number of active sync WebSocket connections",
	})
)
