package engagement

import (
	"context"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// TweetRepo is the queue of tweets nominated for processing.
type TweetRepo interface {
	RecentTweets(ctx context.Context, window time.Duration, limit int) ([]models.SubmittedTweet, error)
	UpdateMetrics(ctx context.Context, id string, m models.TweetMetrics) error
}

// AccountRepo resolves identities and maintains tier state.
type AccountRepo interface {
	ByHandle(ctx context.Context, handle string) (*models.LinkedAccount, error)
	ByDiscordID(ctx context.Context, discordID string) (*models.LinkedAccount, error)
	SetTier(ctx context.Context, discordID string, tier models.Tier) error
}

// AwardRepo persists engagement awards. Award returns false when the
// (tweet, user, interaction) triple was already granted.
type AwardRepo interface {
	Award(ctx context.Context, log models.EngagementLog) (bool, error)
}

// BatchRepo is the durable batch job ledger.
type BatchRepo interface {
	Create(ctx context.Context) (*models.BatchJob, error)
	Get(ctx context.Context, id string) (*models.BatchJob, error)
	FindNonTerminal(ctx context.Context) (*models.BatchJob, error)
	MarkRunning(ctx context.Context, id string) error
	Pause(ctx context.Context, id string, pausedAt, willResumeAt time.Time) error
	AddProgress(ctx context.Context, id string, tweets, engagements int, points int64, errs int) error
	Finalize(ctx context.Context, id string, status models.BatchStatus, errMsg *string) error
}

// RuleRepo supplies point rules and tier configuration.
type RuleRepo interface {
	BasePoints(ctx context.Context, tier models.Tier, interaction models.Interaction) (int, error)
	Config(ctx context.Context, tier models.Tier) (models.TierConfig, error)
	Configs(ctx context.Context) ([]models.TierConfig, error)
}

// Fetcher retrieves tweet state from the external API. A rate-limited call
// returns *twitter.RateLimitError.
type Fetcher interface {
	GetTweetMetrics(ctx context.Context, tweetID string) (models.TweetMetrics, string, error)
	GetRetweeters(ctx context.Context, tweetID string) ([]string, error)
	GetRepliers(ctx context.Context, tweetID string) ([]string, error)
}

// KV is the narrow Redis surface the pipeline needs: idempotency markers,
// daily caps and denormalized profile copies.
type KV interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string, expiration time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HSet(ctx context.Context, key string, values ...interface{}) error
}
