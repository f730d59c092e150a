package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

type LogStore struct {
	db *db.DB
}

func NewLogStore(dbConn *db.DB) *LogStore {
	return &LogStore{db: dbConn}
}

// Award writes the audit log and increments the account's total points in a
// single transaction. The unique index on (tweet, user, interaction) acts as
// the idempotency marker: when it already holds a row the insert is a no-op
// and no points are granted. Returns true when the award was applied.
//
// The increment only happens after the log insert lands, so a failed log
// write can never leave an orphaned point grant.
func (s *LogStore) Award(ctx context.Context, log models.EngagementLog) (bool, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO engagement_logs
			(id, tweet_id, discord_id, interaction_type, points, bonus_multiplier, batch_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tweet_id, discord_id, interaction_type) DO NOTHING`,
		log.ID, log.TweetID, log.DiscordID, string(log.Interaction),
		log.Points, log.Multiplier, log.BatchID, log.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// already awarded
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE linked_accounts SET total_points = total_points + $2 WHERE discord_id = $1`,
		log.DiscordID, log.Points,
	)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Exists reports whether an award was already recorded for the triple.
func (s *LogStore) Exists(ctx context.Context, tweetID, discordID string, interaction models.Interaction) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM engagement_logs
			WHERE tweet_id = $1 AND discord_id = $2 AND interaction_type = $3
		 )`,
		tweetID, discordID, string(interaction),
	).Scan(&exists)
	return exists, err
}

func (s *LogStore) ListByUser(ctx context.Context, discordID string, limit int) ([]models.EngagementLog, error) {
	return s.list(ctx,
		`SELECT id, tweet_id, discord_id, interaction_type, points, bonus_multiplier, batch_id, created_at
		 FROM engagement_logs WHERE discord_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		discordID, limit)
}

func (s *LogStore) ListByTweet(ctx context.Context, tweetID string, limit int) ([]models.EngagementLog, error) {
	return s.list(ctx,
		`SELECT id, tweet_id, discord_id, interaction_type, points, bonus_multiplier, batch_id, created_at
		 FROM engagement_logs WHERE tweet_id = $1
		 ORDER BY created_at ASC LIMIT $2`,
		tweetID, limit)
}

func (s *LogStore) list(ctx context.Context, query string, args ...any) ([]models.EngagementLog, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EngagementLog
	for rows.Next() {
		var l models.EngagementLog
		var interaction string
		if err := rows.Scan(&l.ID, &l.TweetID, &l.DiscordID, &interaction,
			&l.Points, &l.Multiplier, &l.BatchID, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Interaction = models.Interaction(interaction)
		out = append(out, l)
	}
	return out, rows.Err()
}
