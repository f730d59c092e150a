package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/api"
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
	logger.Info("starting_service", "service", "engagement-pipeline", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
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
	if cfg.TwitterBearerToken == "" {
		logger.Warn("twitter_token_not_configured", "msg", "batches will fail until TWITTER_BEARER_TOKEN is set")
	} else {
		logger.Info("twitter_client_configured", "token", logging.MaskToken(cfg.TwitterBearerToken))
	}

	ruleCache := engagement.NewRuleCache(rules)
	engine := engagement.NewAwardEngine(logs, ruleCache, redisClient, logger)
	tiers := engagement.NewTierSync(accounts, ruleCache, redisClient, logger)
	pipeline := engagement.NewPipeline(tweets, accounts, batches, twc, engine, ruleCache, tiers,
		redisClient, logger, engagement.Options{
			Window:    cfg.BatchWindow,
			MaxTweets: cfg.BatchMaxTweets,
		})

	scheduler := engagement.NewScheduler(pipeline, batches, cfg.BatchInterval, logger)
	scheduler.Start(ctx)

	bridge := engagement.NewBridge(accounts, engine, ruleCache, redisClient, logger)

	srv := api.NewServer(logger, redisClient, cfg, tweets, accounts, batches, rules,
		ruleCache, scheduler, bridge, twc)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	scheduler.Stop()
	cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("service_stopped")
}
