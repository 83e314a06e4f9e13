package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanTicks counts scanner runs by outcome.
	ScanTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_scan_ticks_total",
		Help: "Scanner runs by outcome (completed, rate_limited, error)",
	}, []string{"outcome"})

	// CandidatesDiscovered counts cross-link candidates by producing source.
	CandidatesDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_candidates_discovered_total",
		Help: "Cross-link candidates discovered, labeled by source strategy",
	}, []string{"source"})

	// Classifications counts tone classifications by result and origin.
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_classifications_total",
		Help: "Tone classifications by result (origin: cache, provider, default)",
	}, []string{"tone", "origin"})

	// Notifications counts brigade notifications actually delivered.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_notifications_total",
		Help: "Brigade notifications delivered, labeled by classification",
	}, []string{"classification"})

	// RateLimitRejections counts short-circuits caused by exhausted buckets.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_rate_limit_rejections_total",
		Help: "Operations short-circuited by an exhausted rate-limit bucket",
	}, []string{"bucket"})

	// SpikeAlerts counts traffic-spike alerts fired.
	SpikeAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubbot_spike_alerts_total",
		Help: "Traffic-spike alerts fired",
	})

	// AchievementsUnlocked counts achievement unlocks by tier.
	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_achievements_unlocked_total",
		Help: "Achievement unlocks recorded, labeled by tier",
	}, []string{"tier"})

	// FeedSize tracks the current length of the events-feed ring.
	FeedSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubbot_feed_size",
		Help: "Current number of events in the hub events feed",
	})

	// SchedulerQueueDepth tracks pending delayed jobs.
	SchedulerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubbot_scheduler_queue_depth",
		Help: "Current number of pending delayed jobs",
	})

	// JobRuns counts scheduled job deliveries by job name and outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_job_runs_total",
		Help: "Scheduled job deliveries by name and outcome (ok, error, panic)",
	}, []string{"job", "outcome"})

	// SourceFailures counts discovery strategy failures by source and kind.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_source_failures_total",
		Help: "Discovery strategy failures by source and error kind",
	}, []string{"source", "kind"})

	// ThreadsAnalyzed counts thread analyses by outcome.
	ThreadsAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_threads_analyzed_total",
		Help: "Linked-thread analyses by outcome (ok, fetch_error, bad_url)",
	}, []string{"outcome"})

	// GeminiCalls counts outbound AI provider calls by call site.
	GeminiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubbot_gemini_calls_total",
		Help: "Outbound generateContent calls by call site",
	}, []string{"site"})

	// RedisLatency tracks KV operation roundtrip latency.
	RedisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hubbot_redis_roundtrip_latency_seconds",
		Help:    "Redis operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
	})

	// EnrichedUsers counts leaderboard entries enriched by the daily job.
	EnrichedUsers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubbot_enriched_users_total",
		Help: "Leaderboard users enriched with behavioral profiles",
	})

	// ConnectedFeedClients tracks websocket clients on the live feed.
	ConnectedFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubbot_connected_feed_clients",
		Help: "Current number of connected live-feed websocket clients",
	})
)
