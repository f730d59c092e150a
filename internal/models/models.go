package models

import "time"

// Tier is an ordinal reward rank. Higher tiers earn larger multipliers and
// daily submission limits.
type Tier string

const (
	TierMicro  Tier = "micro"
	TierRising Tier = "rising"
	TierStar   Tier = "star"
	TierLegend Tier = "legend"
	TierHero   Tier = "hero"
)

// Ordinal returns the rank of the tier, lowest first. Unknown tiers map to
// micro.
func (t Tier) Ordinal() int {
	switch t {
	case TierRising:
		return 1
	case TierStar:
		return 2
	case TierLegend:
		return 3
	case TierHero:
		return 4
	default:
		return 0
	}
}

// Interaction is one kind of engagement on a tracked tweet.
type Interaction string

const (
	InteractionLike    Interaction = "like"
	InteractionRetweet Interaction = "retweet"
	InteractionComment Interaction = "comment"
)

// TweetMetrics are the last observed public counts for a tweet. Nil on a
// SubmittedTweet until the first fetch.
type TweetMetrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
}

// SubmittedTweet is a tweet nominated for engagement tracking.
type SubmittedTweet struct {
	ID                 string        `json:"id"`
	TweetID            string        `json:"tweet_id"` // external id, globally unique
	SubmitterDiscordID string        `json:"submitter_discord_id"`
	AuthorHandle       string        `json:"author_handle"` // lowercased, no @
	URL                string        `json:"url"`
	Category           *string       `json:"category,omitempty"`
	Tier               Tier          `json:"tier"`             // submitter tier at submission time
	BonusMultiplier    float64       `json:"bonus_multiplier"` // multiplier at submission time
	SubmittedAt        time.Time     `json:"submitted_at"`
	Metrics            *TweetMetrics `json:"metrics,omitempty"`
}

// LinkedAccount associates a Twitter handle with a Discord user.
type LinkedAccount struct {
	DiscordID     string    `json:"discord_id"`
	TwitterHandle string    `json:"twitter_handle"` // lowercased, canonical
	Tier          Tier      `json:"tier"`
	TotalPoints   int64     `json:"total_points"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// EngagementLog is an immutable audit record of one awarded interaction.
// At most one log exists per (tweet, user, interaction) triple.
type EngagementLog struct {
	ID          string      `json:"id"`
	TweetID     string      `json:"tweet_id"`
	DiscordID   string      `json:"discord_id"`
	Interaction Interaction `json:"interaction_type"`
	Points      int         `json:"points"`
	Multiplier  float64     `json:"bonus_multiplier"`
	BatchID     string      `json:"batch_id"`
	CreatedAt   time.Time   `json:"timestamp"`
}

// BatchStatus is the lifecycle state of one pipeline execution.
//
//	pending → running → {completed, failed, paused_rate_limit}
//	paused_rate_limit → running (repeatable)
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchPaused    BatchStatus = "paused_rate_limit"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// BatchJob is the durable ledger record of one pipeline execution. Counters
// are cumulative across pause/resume cycles.
type BatchJob struct {
	ID                 string      `json:"id"`
	Status             BatchStatus `json:"status"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	PausedAt           *time.Time  `json:"paused_at,omitempty"`
	WillResumeAt       *time.Time  `json:"will_resume_at,omitempty"`
	TweetsProcessed    int         `json:"tweets_processed"`
	EngagementsFound   int         `json:"engagements_found"`
	TotalPointsAwarded int64       `json:"total_points_awarded"`
	RateLimitPauses    int         `json:"rate_limit_pauses"`
	ErrorCount         int         `json:"error_count"`
	LastError          *string     `json:"error,omitempty"`
}

// TierRule maps (tier, interaction) to a base point value.
type TierRule struct {
	Tier        Tier        `json:"tier"`
	Interaction Interaction `json:"interaction_type"`
	Points      int         `json:"points"`
}

// TierConfig holds per-tier settings: the bonus multiplier applied to base
// points, the totalPoints threshold at which the tier is reached, and the
// daily tweet submission limit it unlocks.
type TierConfig struct {
	Tier       Tier    `json:"tier"`
	Multiplier float64 `json:"bonus_multiplier"`
	MinPoints  int64   `json:"min_points"`
	DailyLimit int     `json:"daily_limit"`
}

// TierChange reports a tier recomputation side effect for observability.
type TierChange struct {
	DiscordID     string `json:"discord_id"`
	TwitterHandle string `json:"twitter_handle"`
	OldTier       Tier   `json:"old_tier"`
	NewTier       Tier   `json:"new_tier"`
	TotalPoints   int64  `json:"total_points"`
}

// LeaderboardEntry is a read-model row for the points leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	DiscordID     string `json:"discord_id"`
	TwitterHandle string `json:"twitter_handle"`
	Tier          Tier   `json:"tier"`
	TotalPoints   int64  `json:"total_points"`
}

// BatchSummary is the completion report emitted after a batch finishes.
type BatchSummary struct {
	BatchID            string       `json:"batch_id"`
	Status             BatchStatus  `json:"status"`
	TweetsProcessed    int          `json:"tweets_processed"`
	EngagementsFound   int          `json:"engagements_found"`
	TotalPointsAwarded int64        `json:"total_points_awarded"`
	RateLimitPauses    int          `json:"rate_limit_pauses"`
	Errors             int          `json:"errors"`
	NotLinkedSkipped   int          `json:"not_linked_skipped"`
	SelfEngagements    int          `json:"self_engagements_skipped"`
	TierChanges        []TierChange `json:"tier_changes,omitempty"`
	Duration           string       `json:"duration"`
}
