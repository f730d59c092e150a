package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/metrics"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// interactionMarkerTTL bounds the Redis fast-path markers. The database
// unique index stays authoritative after expiry.
const interactionMarkerTTL = 30 * 24 * time.Hour

// AwardEngine grants points for interactions. Awards are at-most-once per
// (tweet, user, interaction): the storage layer's unique index is the
// source of truth and a Redis marker short-circuits repeat batches.
type AwardEngine struct {
	awards AwardRepo
	cache  *RuleCache
	kv     KV
	logger *slog.Logger
}

func NewAwardEngine(awards AwardRepo, cache *RuleCache, kv KV, logger *slog.Logger) *AwardEngine {
	return &AwardEngine{awards: awards, cache: cache, kv: kv, logger: logger}
}

func markerKey(tweetID, discordID string, interaction models.Interaction) string {
	return fmt.Sprintf("engagement:interaction:%s:%s:%s", tweetID, discordID, interaction)
}

// Points computes the award for (tier, interaction) as the tier-multiplied
// base value, rounded half away from zero.
func (e *AwardEngine) Points(tier models.Tier, interaction models.Interaction) (int, float64) {
	base := e.cache.BasePoints(tier, interaction)
	multiplier := e.cache.Config(tier).Multiplier
	return int(math.Round(float64(base) * multiplier)), multiplier
}

// Award grants points for one interaction. Returns the points granted, or
// zero when the triple was already awarded.
func (e *AwardEngine) Award(ctx context.Context, batchID, tweetID string, acct *models.LinkedAccount, interaction models.Interaction) (int, error) {
	key := markerKey(tweetID, acct.DiscordID, interaction)

	if e.kv != nil {
		if _, err := e.kv.Get(ctx, key); err == nil {
			return 0, nil
		}
	}

	points, multiplier := e.Points(acct.Tier, interaction)
	applied, err := e.awards.Award(ctx, models.EngagementLog{
		TweetID:     tweetID,
		DiscordID:   acct.DiscordID,
		Interaction: interaction,
		Points:      points,
		Multiplier:  multiplier,
		BatchID:     batchID,
	})
	if err != nil {
		return 0, fmt.Errorf("award %s for tweet %s: %w", interaction, tweetID, err)
	}
	if !applied {
		return 0, nil
	}

	if e.kv != nil {
		if _, err := e.kv.SetNX(ctx, key, "1", interactionMarkerTTL); err != nil {
			e.logger.Debug("interaction_marker_write_failed", "key", key, "error", err.Error())
		}
	}

	metrics.EngagementsFound.WithLabelValues(string(interaction)).Inc()
	metrics.PointsAwarded.WithLabelValues(string(interaction)).Add(float64(points))
	e.logger.Info("points_awarded",
		"discord_id", acct.DiscordID,
		"tweet_id", tweetID,
		"interaction", string(interaction),
		"points", points,
		"tier", string(acct.Tier),
	)
	return points, nil
}

// AwardWithImplicitLike grants a retweet or comment plus the implicit like
// bonus. The like lands at most once per (tweet, user) no matter how many
// qualifying actions follow, enforced by the same idempotency marker.
// Returns total points and the number of interactions granted.
func (e *AwardEngine) AwardWithImplicitLike(ctx context.Context, batchID, tweetID string, acct *models.LinkedAccount, interaction models.Interaction) (int, int, error) {
	points, err := e.Award(ctx, batchID, tweetID, acct, interaction)
	if err != nil {
		return 0, 0, err
	}
	total := points
	granted := 0
	if points > 0 {
		granted = 1
	}

	likePoints, err := e.Award(ctx, batchID, tweetID, acct, models.InteractionLike)
	if err != nil {
		return total, granted, err
	}
	if likePoints > 0 {
		total += likePoints
		granted++
	}
	return total, granted, nil
}
