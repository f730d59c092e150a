package engagement

import (
	"context"
	"sync"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

var interactions = []models.Interaction{
	models.InteractionLike,
	models.InteractionRetweet,
	models.InteractionComment,
}

// RuleCache holds the tier rules and configs for the duration of a batch so
// per-award lookups stay in memory. Reloaded at batch start; invalidated
// when an admin changes a rule.
type RuleCache struct {
	rules RuleRepo

	mu      sync.RWMutex
	loaded  bool
	base    map[models.Tier]map[models.Interaction]int
	configs map[models.Tier]models.TierConfig
	ordered []models.TierConfig
}

func NewRuleCache(rules RuleRepo) *RuleCache {
	return &RuleCache{rules: rules}
}

// Reload pulls the full rule set from storage, replacing the cached copy.
func (c *RuleCache) Reload(ctx context.Context) error {
	ordered, err := c.rules.Configs(ctx)
	if err != nil {
		return err
	}

	base := make(map[models.Tier]map[models.Interaction]int, len(ordered))
	configs := make(map[models.Tier]models.TierConfig, len(ordered))
	for _, cfg := range ordered {
		configs[cfg.Tier] = cfg
		base[cfg.Tier] = make(map[models.Interaction]int, len(interactions))
		for _, interaction := range interactions {
			points, err := c.rules.BasePoints(ctx, cfg.Tier, interaction)
			if err != nil {
				return err
			}
			base[cfg.Tier][interaction] = points
		}
	}

	c.mu.Lock()
	c.base = base
	c.configs = configs
	c.ordered = ordered
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Invalidate drops the cached copy so the next Ensure reloads.
func (c *RuleCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// Ensure reloads when the cache is empty or was invalidated.
func (c *RuleCache) Ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

func (c *RuleCache) BasePoints(tier models.Tier, interaction models.Interaction) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if byInteraction, ok := c.base[tier]; ok {
		return byInteraction[interaction]
	}
	return 0
}

func (c *RuleCache) Config(tier models.Tier) models.TierConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cfg, ok := c.configs[tier]; ok {
		return cfg
	}
	return models.TierConfig{Tier: models.TierMicro, Multiplier: 1.0, DailyLimit: 5}
}

// Configs returns the threshold table sorted by MinPoints ascending.
func (c *RuleCache) Configs() []models.TierConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.TierConfig, len(c.ordered))
	copy(out, c.ordered)
	return out
}
