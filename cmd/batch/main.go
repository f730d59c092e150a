// Command batch runs a single engagement batch to completion and exits.
// Useful for operational one-off runs without the HTTP surface.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/config"
	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/engagement"
	"github.com/alisharafiiii/kol-discord-sub002/internal/logging"
	"github.com/alisharafiiii/kol-discord-sub002/internal/redis"
	"github.com/alisharafiiii/kol-discord-sub002/internal/store"
	"github.com/alisharafiiii/kol-discord-sub002/internal/twitter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_batch_run")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err.Error())
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := store.Migrate(ctx, dbConn); err != nil {
		logger.Error("migrate_failed", "error", err.Error())
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	tweets := store.NewTweetStore(dbConn)
	accounts := store.NewAccountStore(dbConn)
	logs := store.NewLogStore(dbConn)
	batches := store.NewBatchStore(dbConn)
	rules := store.NewRuleStore(dbConn)

	if err := store.SeedDefaults(ctx, dbConn); err != nil {
		logger.Warn("rule_seed_failed", "error", err.Error())
	}

	twc := twitter.NewClient(cfg.TwitterAPIBaseURL, cfg.TwitterBearerToken, logger)
	ruleCache := engagement.NewRuleCache(rules)
	engine := engagement.NewAwardEngine(logs, ruleCache, redisClient, logger)
	tiers := engagement.NewTierSync(accounts, ruleCache, redisClient, logger)
	pipeline := engagement.NewPipeline(tweets, accounts, batches, twc, engine, ruleCache, tiers,
		redisClient, logger, engagement.Options{
			Window:    cfg.BatchWindow,
			MaxTweets: cfg.BatchMaxTweets,
		})

	// A rate-limited run sleeps through the reset and resumes until the
	// batch reaches a terminal state.
	for {
		summary, err := pipeline.Run(ctx)
		if err == nil {
			logger.Info("batch_run_finished",
				"batch_id", summary.BatchID,
				"tweets_processed", summary.TweetsProcessed,
				"total_points_awarded", summary.TotalPointsAwarded,
			)
			return
		}

		var rl *twitter.RateLimitError
		if !errors.As(err, &rl) {
			logger.Error("batch_run_failed", "error", err.Error())
			os.Exit(1)
		}

		wait := time.Until(rl.ResetAt)
		if wait < 0 {
			wait = 0
		}
		logger.Warn("waiting_for_rate_limit_reset", "resume_at", rl.ResetAt.Format(time.RFC3339))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			logger.Error("batch_run_timed_out")
			os.Exit(1)
		}
	}
}
