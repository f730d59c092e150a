package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/metrics"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
	"github.com/alisharafiiii/kol-discord-sub002/internal/store"
	"github.com/alisharafiiii/kol-discord-sub002/internal/twitter"
)

const (
	// processedMarkerTTL covers the longest plausible pause chain for one
	// batch; after that the batch is long finished either way.
	processedMarkerTTL = 48 * time.Hour

	leaderboardCacheKey = "engagement:leaderboard"
)

// Options tune one pipeline instance.
type Options struct {
	Window      time.Duration // trailing submission window
	MaxTweets   int           // per-batch tweet cap
	MetricsOnly bool          // persist counts without awarding points
}

// Pipeline executes one batch: read the tweet queue, fetch engagement,
// resolve identities, award points, synchronize tiers. A rate limit pauses
// the batch with its partial progress saved; the same job resumes later.
type Pipeline struct {
	tweets   TweetRepo
	accounts AccountRepo
	batches  BatchRepo
	fetcher  Fetcher
	engine   *AwardEngine
	cache    *RuleCache
	tiers    *TierSync
	kv       KV
	logger   *slog.Logger
	opts     Options
}

func NewPipeline(tweets TweetRepo, accounts AccountRepo, batches BatchRepo, fetcher Fetcher,
	engine *AwardEngine, cache *RuleCache, tiers *TierSync, kv KV, logger *slog.Logger, opts Options) *Pipeline {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.MaxTweets <= 0 {
		opts.MaxTweets = 60
	}
	return &Pipeline{
		tweets:   tweets,
		accounts: accounts,
		batches:  batches,
		fetcher:  fetcher,
		engine:   engine,
		cache:    cache,
		tiers:    tiers,
		kv:       kv,
		logger:   logger,
		opts:     opts,
	}
}

// segment accumulates this run's deltas. The ledger row carries the
// cumulative totals across pause/resume cycles.
type segment struct {
	tweets      int
	engagements int
	points      int64
	errs        int
	notLinked   int
	selfSkips   int
	touched     map[string]bool
}

// Run executes one batch segment. An existing non-terminal job is resumed
// instead of starting a second one. On a rate limit the returned error is a
// *twitter.RateLimitError and the summary reflects the paused state.
func (p *Pipeline) Run(ctx context.Context) (*models.BatchSummary, error) {
	start := time.Now()

	if err := p.cache.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reload rules: %w", err)
	}

	job, err := p.batches.FindNonTerminal(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan for resumable batch: %w", err)
	}
	if job == nil {
		job, err = p.batches.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create batch: %w", err)
		}
		p.logger.Info("batch_started", "batch_id", job.ID, "metrics_only", p.opts.MetricsOnly)
	} else {
		p.logger.Info("batch_resumed", "batch_id", job.ID, "previous_status", string(job.Status))
	}
	if err := p.batches.MarkRunning(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("mark batch running: %w", err)
	}

	queue, err := p.tweets.RecentTweets(ctx, p.opts.Window, p.opts.MaxTweets)
	if err != nil {
		return p.fail(ctx, job.ID, start, fmt.Errorf("read tweet queue: %w", err))
	}

	seg := &segment{touched: make(map[string]bool)}

	for _, tweet := range queue {
		if ctx.Err() != nil {
			return p.fail(ctx, job.ID, start, ctx.Err())
		}
		done, err := p.alreadyProcessed(ctx, job.ID, tweet.TweetID)
		if err == nil && done {
			continue
		}

		if err := p.processTweet(ctx, job.ID, tweet, seg); err != nil {
			var rl *twitter.RateLimitError
			if errors.As(err, &rl) {
				return p.pause(ctx, job.ID, start, seg, rl)
			}
			seg.errs++
			metrics.FetchErrors.Inc()
			p.logger.Error("tweet_processing_failed",
				"batch_id", job.ID, "tweet_id", tweet.TweetID, "error", err.Error())
			continue
		}

		seg.tweets++
		metrics.TweetsProcessed.Inc()
		p.markProcessed(ctx, job.ID, tweet.TweetID)
	}

	return p.complete(ctx, job.ID, start, seg)
}

// processTweet fetches one tweet's state and awards points to linked
// engagers. Metrics are persisted even in metrics-only mode.
func (p *Pipeline) processTweet(ctx context.Context, batchID string, tweet models.SubmittedTweet, seg *segment) error {
	tweetMetrics, author, err := p.fetcher.GetTweetMetrics(ctx, tweet.TweetID)
	if err != nil {
		return err
	}
	if err := p.tweets.UpdateMetrics(ctx, tweet.ID, tweetMetrics); err != nil {
		return fmt.Errorf("persist metrics: %w", err)
	}
	if p.opts.MetricsOnly {
		return nil
	}

	authorHandle := tweet.AuthorHandle
	if authorHandle == "" {
		authorHandle = store.NormalizeHandle(author)
	}

	retweeters, err := p.fetcher.GetRetweeters(ctx, tweet.TweetID)
	if err != nil {
		return err
	}
	p.awardAll(ctx, batchID, tweet.TweetID, authorHandle, retweeters, models.InteractionRetweet, seg)

	repliers, err := p.fetcher.GetRepliers(ctx, tweet.TweetID)
	if err != nil {
		return err
	}
	p.awardAll(ctx, batchID, tweet.TweetID, authorHandle, repliers, models.InteractionComment, seg)

	return nil
}

// awardAll resolves each engager handle and grants the interaction plus the
// implicit like. Unlinked handles and self-engagement are skipped and
// counted; award errors count against the batch but do not stop it.
func (p *Pipeline) awardAll(ctx context.Context, batchID, tweetID, authorHandle string, handles []string, interaction models.Interaction, seg *segment) {
	for _, handle := range handles {
		normalized := store.NormalizeHandle(handle)
		if normalized == "" {
			continue
		}
		if normalized == authorHandle {
			seg.selfSkips++
			p.logger.Debug("self_engagement_skipped", "tweet_id", tweetID, "handle", normalized)
			continue
		}

		acct, err := p.accounts.ByHandle(ctx, normalized)
		if err != nil {
			seg.errs++
			p.logger.Error("identity_lookup_failed", "handle", normalized, "error", err.Error())
			continue
		}
		if acct == nil {
			seg.notLinked++
			continue
		}

		points, granted, err := p.engine.AwardWithImplicitLike(ctx, batchID, tweetID, acct, interaction)
		if err != nil {
			seg.errs++
			p.logger.Error("award_failed",
				"tweet_id", tweetID, "discord_id", acct.DiscordID, "error", err.Error())
			continue
		}
		seg.points += int64(points)
		seg.engagements += granted
		if granted > 0 {
			seg.touched[acct.DiscordID] = true
		}
	}
}

// pause saves partial progress and records the resume instant from the rate
// limit reset. The scheduler owns the actual resume timer.
func (p *Pipeline) pause(ctx context.Context, batchID string, start time.Time, seg *segment, rl *twitter.RateLimitError) (*models.BatchSummary, error) {
	now := time.Now().UTC()
	if err := p.flushProgress(ctx, batchID, seg); err != nil {
		return nil, err
	}
	if err := p.batches.Pause(ctx, batchID, now, rl.ResetAt); err != nil {
		return nil, fmt.Errorf("pause batch: %w", err)
	}
	metrics.RateLimitPauses.Inc()
	metrics.ObserveBatchDuration(start)
	p.logger.Warn("rate_limit_hit",
		"batch_id", batchID,
		"paused_at", now.Format(time.RFC3339),
		"will_resume_at", rl.ResetAt.Format(time.RFC3339),
	)

	summary, err := p.summarize(ctx, batchID, seg, start)
	if err != nil {
		return nil, err
	}
	return summary, rl
}

func (p *Pipeline) complete(ctx context.Context, batchID string, start time.Time, seg *segment) (*models.BatchSummary, error) {
	if err := p.flushProgress(ctx, batchID, seg); err != nil {
		return nil, err
	}
	if err := p.batches.Finalize(ctx, batchID, models.BatchCompleted, nil); err != nil {
		return nil, fmt.Errorf("finalize batch: %w", err)
	}

	var tierChanges []models.TierChange
	if len(seg.touched) > 0 {
		ids := make([]string, 0, len(seg.touched))
		for id := range seg.touched {
			ids = append(ids, id)
		}
		changes, err := p.tiers.Synchronize(ctx, ids)
		if err != nil {
			p.logger.Error("tier_sync_failed", "batch_id", batchID, "error", err.Error())
		}
		tierChanges = changes
	}

	p.invalidateLeaderboard(ctx)
	metrics.BatchRuns.WithLabelValues(string(models.BatchCompleted)).Inc()
	metrics.ObserveBatchDuration(start)

	summary, err := p.summarize(ctx, batchID, seg, start)
	if err != nil {
		return nil, err
	}
	summary.TierChanges = tierChanges
	p.logger.Info("batch_completed",
		"batch_id", batchID,
		"tweets_processed", summary.TweetsProcessed,
		"engagements_found", summary.EngagementsFound,
		"total_points_awarded", summary.TotalPointsAwarded,
		"tier_changes", len(tierChanges),
		"duration", summary.Duration,
	)
	return summary, nil
}

func (p *Pipeline) fail(ctx context.Context, batchID string, start time.Time, cause error) (*models.BatchSummary, error) {
	msg := cause.Error()
	if err := p.batches.Finalize(ctx, batchID, models.BatchFailed, &msg); err != nil {
		p.logger.Error("batch_finalize_failed", "batch_id", batchID, "error", err.Error())
	}
	metrics.BatchRuns.WithLabelValues(string(models.BatchFailed)).Inc()
	metrics.ObserveBatchDuration(start)
	p.logger.Error("batch_failed", "batch_id", batchID, "error", msg)
	return nil, cause
}

func (p *Pipeline) flushProgress(ctx context.Context, batchID string, seg *segment) error {
	if err := p.batches.AddProgress(ctx, batchID, seg.tweets, seg.engagements, seg.points, seg.errs); err != nil {
		return fmt.Errorf("save batch progress: %w", err)
	}
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, batchID string, seg *segment, start time.Time) (*models.BatchSummary, error) {
	job, err := p.batches.Get(ctx, batchID)
	if err != nil || job == nil {
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	return &models.BatchSummary{
		BatchID:            job.ID,
		Status:             job.Status,
		TweetsProcessed:    job.TweetsProcessed,
		EngagementsFound:   job.EngagementsFound,
		TotalPointsAwarded: job.TotalPointsAwarded,
		RateLimitPauses:    job.RateLimitPauses,
		Errors:             job.ErrorCount,
		NotLinkedSkipped:   seg.notLinked,
		SelfEngagements:    seg.selfSkips,
		Duration:           time.Since(start).Round(time.Millisecond).String(),
	}, nil
}

// alreadyProcessed reports whether this batch already finished the tweet in
// an earlier segment, so resumed batches skip completed work.
func (p *Pipeline) alreadyProcessed(ctx context.Context, batchID, tweetID string) (bool, error) {
	if p.kv == nil {
		return false, nil
	}
	_, err := p.kv.Get(ctx, fmt.Sprintf("engagement:batch:%s:tweet:%s", batchID, tweetID))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) markProcessed(ctx context.Context, batchID, tweetID string) {
	if p.kv == nil {
		return
	}
	key := fmt.Sprintf("engagement:batch:%s:tweet:%s", batchID, tweetID)
	if err := p.kv.Set(ctx, key, "1", processedMarkerTTL); err != nil {
		p.logger.Debug("processed_marker_write_failed", "key", key, "error", err.Error())
	}
}

func (p *Pipeline) invalidateLeaderboard(ctx context.Context) {
	if p.kv == nil {
		return
	}
	if err := p.kv.Del(ctx, leaderboardCacheKey); err != nil {
		p.logger.Warn("leaderboard_invalidate_failed", "error", err.Error())
	}
}
