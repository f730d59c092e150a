package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

const (
	// bridgeDailyCap limits awards granted outside batch processing so a
	// chat flood cannot drain the points economy.
	bridgeDailyCap = 50
	bridgeCapTTL   = 24 * time.Hour
)

// Bridge grants points for a single interaction outside the batch pipeline,
// with a per-user daily cap. Awards flow through the same idempotent engine
// as batches, so the two paths can never double-grant.
type Bridge struct {
	accounts AccountRepo
	engine   *AwardEngine
	cache    *RuleCache
	kv       KV
	logger   *slog.Logger
}

func NewBridge(accounts AccountRepo, engine *AwardEngine, cache *RuleCache, kv KV, logger *slog.Logger) *Bridge {
	return &Bridge{accounts: accounts, engine: engine, cache: cache, kv: kv, logger: logger}
}

// BridgeResult reports the outcome of a single-interaction award. Points is
// zero when nothing was granted; Reason says why.
type BridgeResult struct {
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"` // not_linked | daily_cap | duplicate
}

// AwardOne grants one interaction to the Discord user for the given tweet.
func (b *Bridge) AwardOne(ctx context.Context, discordID, tweetID string, interaction models.Interaction) (BridgeResult, error) {
	if err := b.cache.Ensure(ctx); err != nil {
		return BridgeResult{}, err
	}

	acct, err := b.accounts.ByDiscordID(ctx, discordID)
	if err != nil {
		return BridgeResult{}, fmt.Errorf("resolve account %s: %w", discordID, err)
	}
	if acct == nil {
		return BridgeResult{Reason: "not_linked"}, nil
	}

	capKey := fmt.Sprintf("engagement:bridge:daily:%s:%s", discordID, time.Now().UTC().Format("2006-01-02"))
	count, err := b.kv.Increment(ctx, capKey, bridgeCapTTL)
	if err != nil {
		return BridgeResult{}, fmt.Errorf("daily cap check: %w", err)
	}
	if count > bridgeDailyCap {
		b.logger.Info("bridge_daily_cap_hit", "discord_id", discordID, "count", count)
		return BridgeResult{Reason: "daily_cap"}, nil
	}

	points, err := b.engine.Award(ctx, "", tweetID, acct, interaction)
	if err != nil {
		return BridgeResult{}, err
	}
	if points == 0 {
		return BridgeResult{Reason: "duplicate"}, nil
	}
	return BridgeResult{Points: points}, nil
}
