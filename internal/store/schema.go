package store

import (
	"context"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
)

// schema is applied on startup. Statements are idempotent so the service can
// start against a fresh or an existing database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS submitted_tweets (
		id TEXT PRIMARY KEY,
		tweet_id TEXT NOT NULL UNIQUE,
		submitter_discord_id TEXT NOT NULL,
		author_handle TEXT NOT NULL,
		url TEXT NOT NULL,
		category TEXT,
		tier TEXT NOT NULL DEFAULT 'micro',
		bonus_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		like_count INT,
		retweet_count INT,
		reply_count INT,
		metrics_updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_submitted_tweets_submitted_at
		ON submitted_tweets (submitted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_submitted_tweets_submitter
		ON submitted_tweets (submitter_discord_id, submitted_at)`,

	`CREATE TABLE IF NOT EXISTS linked_accounts (
		discord_id TEXT PRIMARY KEY,
		twitter_handle TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL DEFAULT 'micro',
		total_points BIGINT NOT NULL DEFAULT 0,
		connected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS engagement_logs (
		id TEXT PRIMARY KEY,
		tweet_id TEXT NOT NULL,
		discord_id TEXT NOT NULL,
		interaction_type TEXT NOT NULL,
		points INT NOT NULL,
		bonus_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		batch_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// the idempotency marker: at most one log per (tweet, user, interaction)
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_engagement_logs_once
		ON engagement_logs (tweet_id, discord_id, interaction_type)`,
	`CREATE INDEX IF NOT EXISTS idx_engagement_logs_user
		ON engagement_logs (discord_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_engagement_logs_tweet
		ON engagement_logs (tweet_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS batch_jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		paused_at TIMESTAMPTZ,
		will_resume_at TIMESTAMPTZ,
		tweets_processed INT NOT NULL DEFAULT 0,
		engagements_found INT NOT NULL DEFAULT 0,
		total_points_awarded BIGINT NOT NULL DEFAULT 0,
		rate_limit_pauses INT NOT NULL DEFAULT 0,
		error_count INT NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_jobs_started_at
		ON batch_jobs (started_at)`,

	`CREATE TABLE IF NOT EXISTS tier_rules (
		tier TEXT NOT NULL,
		interaction_type TEXT NOT NULL,
		points INT NOT NULL,
		PRIMARY KEY (tier, interaction_type)
	)`,

	`CREATE TABLE IF NOT EXISTS tier_configs (
		tier TEXT PRIMARY KEY,
		bonus_multiplier DOUBLE PRECISION NOT NULL,
		min_points BIGINT NOT NULL,
		daily_limit INT NOT NULL
	)`,
}

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, dbConn *db.DB) error {
	for _, stmt := range schema {
		if _, err := dbConn.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
