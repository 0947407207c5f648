package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the rewards ledger.
type Metrics struct {
	// --- Engine Processing ---
	EngineOpsApplied  *prometheus.CounterVec
	EngineOpsRejected *prometheus.CounterVec
	EngineOpDuration  *prometheus.HistogramVec
	EngineJournals    *prometheus.CounterVec
	EngineSequence    prometheus.Gauge

	// --- Fee & Pools ---
	FeesWithheld          prometheus.Counter
	FeePoolBalance        prometheus.Gauge
	RewardsPendingBalance prometheus.Gauge
	ReserveBalance        prometheus.Gauge

	// --- Conversion ---
	ConversionsStarted  prometheus.Counter
	ConversionsSettled  prometheus.Counter
	ConversionsReverted prometheus.Counter
	ConversionRejected  *prometheus.CounterVec
	ConversionDuration  prometheus.Histogram

	// --- Distribution ---
	DistributionsFired   prometheus.Counter
	DistributionsSkipped *prometheus.CounterVec
	DistributionPayouts  prometheus.Counter
	DistributionHolders  prometheus.Histogram
	DistributionResidual prometheus.Gauge
	DistributionDuration prometheus.Histogram

	// --- Liquidity ---
	LiquidityAdded    prometheus.Counter
	LiquiditySkipped  *prometheus.CounterVec
	LiquidityFailures prometheus.Counter

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Duration    prometheus.Histogram

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot & Replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	externalBuckets := []float64{
		0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
	}

	return &Metrics{
		// Engine Processing
		EngineOpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op_type"}),

		EngineOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_engine_ops_rejected_total",
			Help: "Operations rejected (dedup, validation, busy)",
		}, []string{"op_type", "reason"}),

		EngineOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwl_engine_op_apply_duration_seconds",
			Help:    "Time to apply a single operation in the engine",
			Buckets: latencyBuckets,
		}, []string{"op_type"}),

		EngineJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_engine_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_engine_sequence",
			Help: "Current global sequence number",
		}),

		// Fee & Pools
		FeesWithheld: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_fees_withheld_total",
			Help: "Total fee-asset units withheld from transfers",
		}),

		FeePoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_fee_pool_balance",
			Help: "Current fee pool balance (token units)",
		}),

		RewardsPendingBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_rewards_pending_balance",
			Help: "Current rewards pending balance (settlement units)",
		}),

		ReserveBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_reserve_balance",
			Help: "Current reserve balance (settlement units)",
		}),

		// Conversion
		ConversionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_conversions_started_total",
			Help: "Fee pool drains handed to the conversion gateway",
		}),

		ConversionsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_conversions_settled_total",
			Help: "Conversions confirmed by the gateway",
		}),

		ConversionsReverted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_conversions_reverted_total",
			Help: "Conversions reverted after gateway failure",
		}),

		ConversionRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_conversion_rejected_total",
			Help: "Conversion attempts rejected before the gateway call",
		}, []string{"reason"}),

		ConversionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_conversion_duration_seconds",
			Help:    "Gateway round-trip time",
			Buckets: externalBuckets,
		}),

		// Distribution
		DistributionsFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_distributions_fired_total",
			Help: "Distribution epochs fired",
		}),

		DistributionsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_distributions_skipped_total",
			Help: "Distribution ticks that did not fire",
		}, []string{"reason"}),

		DistributionPayouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_distribution_payouts_total",
			Help: "Individual holder payouts credited",
		}),

		DistributionHolders: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_distribution_holders",
			Help:    "Holders in the snapshot per firing",
			Buckets: []float64{1, 10, 100, 1_000, 10_000, 100_000},
		}),

		DistributionResidual: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_distribution_residual",
			Help: "Flooring residual carried forward at last firing",
		}),

		DistributionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_distribution_duration_seconds",
			Help:    "Time to compute and apply one distribution",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		// Liquidity
		LiquidityAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_liquidity_added_total",
			Help: "Reserve deployments confirmed by the venue",
		}),

		LiquiditySkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_liquidity_skipped_total",
			Help: "Liquidity ticks that did not deploy",
		}, []string{"reason"}),

		LiquidityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_liquidity_failures_total",
			Help: "Venue calls that failed",
		}),

		// Channel & Backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rwl_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rwl_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rwl_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Idempotency
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"op_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: latencyBuckets,
		}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot & Replay
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwl_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rwl_replay_events_total",
			Help: "Journal entries replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rwl_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwl_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rwl_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
