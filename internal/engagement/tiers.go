package engagement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// TierSync recomputes tiers from total points after a batch completes.
// Tiers only move up: a threshold once crossed is kept even if rules later
// change.
type TierSync struct {
	accounts AccountRepo
	cache    *RuleCache
	kv       KV
	logger   *slog.Logger
}

func NewTierSync(accounts AccountRepo, cache *RuleCache, kv KV, logger *slog.Logger) *TierSync {
	return &TierSync{accounts: accounts, cache: cache, kv: kv, logger: logger}
}

// TierFor maps a points total onto the threshold table: the highest tier
// whose MinPoints the total reaches. The table is sorted ascending.
func TierFor(totalPoints int64, configs []models.TierConfig) models.Tier {
	tier := models.TierMicro
	for _, cfg := range configs {
		if totalPoints >= cfg.MinPoints {
			tier = cfg.Tier
		}
	}
	return tier
}

// Synchronize recomputes the tier for each touched account, persisting
// promotions and refreshing the denormalized Redis profile copy. Returns
// the changes applied.
func (s *TierSync) Synchronize(ctx context.Context, discordIDs []string) ([]models.TierChange, error) {
	configs := s.cache.Configs()
	var changes []models.TierChange

	for _, discordID := range discordIDs {
		acct, err := s.accounts.ByDiscordID(ctx, discordID)
		if err != nil {
			return changes, fmt.Errorf("load account %s: %w", discordID, err)
		}
		if acct == nil {
			continue
		}

		next := TierFor(acct.TotalPoints, configs)
		if next.Ordinal() <= acct.Tier.Ordinal() {
			continue
		}

		if err := s.accounts.SetTier(ctx, discordID, next); err != nil {
			return changes, fmt.Errorf("promote account %s: %w", discordID, err)
		}
		s.refreshProfile(ctx, acct, next)

		changes = append(changes, models.TierChange{
			DiscordID:     acct.DiscordID,
			TwitterHandle: acct.TwitterHandle,
			OldTier:       acct.Tier,
			NewTier:       next,
			TotalPoints:   acct.TotalPoints,
		})
		s.logger.Info("tier_promoted",
			"discord_id", acct.DiscordID,
			"old_tier", string(acct.Tier),
			"new_tier", string(next),
			"total_points", acct.TotalPoints,
		)
	}
	return changes, nil
}

// refreshProfile updates the Redis profile hash read by other services.
// Best effort; the database row is authoritative.
func (s *TierSync) refreshProfile(ctx context.Context, acct *models.LinkedAccount, tier models.Tier) {
	if s.kv == nil {
		return
	}
	key := "engagement:profile:" + acct.DiscordID
	err := s.kv.HSet(ctx, key,
		"twitter_handle", acct.TwitterHandle,
		"tier", string(tier),
		"total_points", acct.TotalPoints,
	)
	if err != nil {
		s.logger.Warn("profile_refresh_failed", "discord_id", acct.DiscordID, "error", err.Error())
	}
}
