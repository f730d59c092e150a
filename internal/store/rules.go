package store

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// Defaults applied when a tier has no configured rule. Administrators can
// override any of them through the rules endpoint.
var (
	defaultBasePoints = map[models.Interaction]int{
		models.InteractionLike:    10,
		models.InteractionRetweet: 35,
		models.InteractionComment: 50,
	}

	defaultTierConfigs = []models.TierConfig{
		{Tier: models.TierMicro, Multiplier: 1.0, MinPoints: 0, DailyLimit: 5},
		{Tier: models.TierRising, Multiplier: 1.2, MinPoints: 1000, DailyLimit: 10},
		{Tier: models.TierStar, Multiplier: 1.5, MinPoints: 2500, DailyLimit: 20},
		{Tier: models.TierLegend, Multiplier: 1.8, MinPoints: 5000, DailyLimit: 50},
		{Tier: models.TierHero, Multiplier: 2.0, MinPoints: 10000, DailyLimit: 100},
	}
)

type RuleStore struct {
	db *db.DB
}

func NewRuleStore(dbConn *db.DB) *RuleStore {
	return &RuleStore{db: dbConn}
}

// BasePoints resolves the configured base point value for (tier,
// interaction), falling back to the built-in defaults.
func (s *RuleStore) BasePoints(ctx context.Context, tier models.Tier, interaction models.Interaction) (int, error) {
	var points int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT points FROM tier_rules WHERE tier = $1 AND interaction_type = $2`,
		string(tier), string(interaction),
	).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultBasePoints[interaction], nil
		}
		return 0, err
	}
	return points, nil
}

// Config returns the per-tier settings, falling back to defaults.
func (s *RuleStore) Config(ctx context.Context, tier models.Tier) (models.TierConfig, error) {
	var cfg models.TierConfig
	var t string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT tier, bonus_multiplier, min_points, daily_limit FROM tier_configs WHERE tier = $1`,
		string(tier),
	).Scan(&t, &cfg.Multiplier, &cfg.MinPoints, &cfg.DailyLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return defaultConfig(tier), nil
		}
		return models.TierConfig{}, err
	}
	cfg.Tier = models.Tier(t)
	return cfg, nil
}

// Configs returns all tier configs sorted by MinPoints ascending, merging
// database overrides onto the defaults. Used for the points-to-tier
// threshold table, which must stay monotonic.
func (s *RuleStore) Configs(ctx context.Context) ([]models.TierConfig, error) {
	merged := make(map[models.Tier]models.TierConfig, len(defaultTierConfigs))
	for _, c := range defaultTierConfigs {
		merged[c.Tier] = c
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT tier, bonus_multiplier, min_points, daily_limit FROM tier_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cfg models.TierConfig
		var t string
		if err := rows.Scan(&t, &cfg.Multiplier, &cfg.MinPoints, &cfg.DailyLimit); err != nil {
			return nil, err
		}
		cfg.Tier = models.Tier(t)
		merged[cfg.Tier] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.TierConfig, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinPoints < out[j].MinPoints })
	return out, nil
}

// Rules returns every configured (tier, interaction) rule.
func (s *RuleStore) Rules(ctx context.Context) ([]models.TierRule, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT tier, interaction_type, points FROM tier_rules ORDER BY tier, interaction_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TierRule
	for rows.Next() {
		var r models.TierRule
		var tier, interaction string
		if err := rows.Scan(&tier, &interaction, &r.Points); err != nil {
			return nil, err
		}
		r.Tier = models.Tier(tier)
		r.Interaction = models.Interaction(interaction)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertRule sets the base point value for (tier, interaction).
func (s *RuleStore) UpsertRule(ctx context.Context, rule models.TierRule) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO tier_rules (tier, interaction_type, points)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tier, interaction_type) DO UPDATE SET points = EXCLUDED.points`,
		string(rule.Tier), string(rule.Interaction), rule.Points,
	)
	return err
}

// UpsertConfig sets the per-tier settings.
func (s *RuleStore) UpsertConfig(ctx context.Context, cfg models.TierConfig) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO tier_configs (tier, bonus_multiplier, min_points, daily_limit)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tier) DO UPDATE SET
			bonus_multiplier = EXCLUDED.bonus_multiplier,
			min_points = EXCLUDED.min_points,
			daily_limit = EXCLUDED.daily_limit`,
		string(cfg.Tier), cfg.Multiplier, cfg.MinPoints, cfg.DailyLimit,
	)
	return err
}

// SeedDefaults inserts the built-in rules and configs, keeping any rows an
// administrator already changed.
func SeedDefaults(ctx context.Context, dbConn *db.DB) error {
	for _, cfg := range defaultTierConfigs {
		_, err := dbConn.Pool.Exec(ctx,
			`INSERT INTO tier_configs (tier, bonus_multiplier, min_points, daily_limit)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (tier) DO NOTHING`,
			string(cfg.Tier), cfg.Multiplier, cfg.MinPoints, cfg.DailyLimit,
		)
		if err != nil {
			return err
		}
		for interaction, points := range defaultBasePoints {
			_, err := dbConn.Pool.Exec(ctx,
				`INSERT INTO tier_rules (tier, interaction_type, points)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (tier, interaction_type) DO NOTHING`,
				string(cfg.Tier), string(interaction), points,
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func defaultConfig(tier models.Tier) models.TierConfig {
	for _, c := range defaultTierConfigs {
		if c.Tier == tier {
			return c
		}
	}
	return defaultTierConfigs[0]
}
