package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts transfer intents by path and final status
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvm_bridge_transfers_total",
			Help: "Total number of transfer intents by path and status",
		},
		[]string{"path", "status"},
	)

	// DispatchDuration tracks how long a contract write takes to be accepted
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mvm_bridge_dispatch_duration_seconds",
			Help:    "Contract write dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// DepositPolls counts deposit polls by mode and result
	DepositPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvm_bridge_deposit_polls_total",
			Help: "Total number of deposit history polls",
		},
		[]string{"mode", "result"},
	)

	// ActiveSubscriptions tracks the number of live deposit polling subscriptions
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mvm_bridge_deposit_subscriptions",
			Help: "Number of active deposit polling subscriptions",
		},
	)

	// FeedSize tracks the length of the aggregated deposit feed
	FeedSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mvm_bridge_deposit_feed_size",
			Help: "Number of records in the aggregated deposit feed",
		},
	)

	// IndexedAssets tracks the number of asset descriptors in the shared index
	IndexedAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mvm_bridge_indexed_assets",
			Help: "Number of asset descriptors known to the deposit engine",
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvm_bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// CacheEntries tracks the number of entries held by the query cache
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mvm_bridge_cache_entries",
			Help: "Number of entries in the query cache",
		},
	)
)
