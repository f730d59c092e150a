package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BatchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_batch_runs_total",
		Help: "Total batch executions by terminal status",
	}, []string{"status"})
	TweetsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_tweets_processed_total",
		Help: "Total tweets processed across batches",
	})
	PointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_points_awarded_total",
		Help: "Total points awarded by interaction type",
	}, []string{"interaction"})
	EngagementsFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_interactions_total",
		Help: "Total interactions awarded by type",
	}, []string{"interaction"})
	RateLimitPauses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_rate_limit_pauses_total",
		Help: "Total batch pauses caused by API rate limits",
	})
	FetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engagement_fetch_errors_total",
		Help: "Total tweet fetch failures",
	})
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engagement_batch_duration_seconds",
		Help:    "Wall-clock duration of batch segments",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(BatchRuns, TweetsProcessed, PointsAwarded,
		EngagementsFound, RateLimitPauses, FetchErrors, BatchDuration)
}

// ObserveBatchDuration records the elapsed time of one batch segment.
func ObserveBatchDuration(start time.Time) {
	BatchDuration.Observe(time.Since(start).Seconds())
}
