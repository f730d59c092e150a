package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// ErrHandleTaken is returned when the Twitter handle is already linked to a
// different Discord user.
var ErrHandleTaken = errors.New("twitter handle already linked")

type AccountStore struct {
	db *db.DB
}

func NewAccountStore(dbConn *db.DB) *AccountStore {
	return &AccountStore{db: dbConn}
}

// Link creates the Discord-to-Twitter association. A Discord user maps to
// exactly one handle; relinking the same user replaces the handle, but a
// handle held by another user is rejected.
func (s *AccountStore) Link(ctx context.Context, discordID, twitterHandle string, tier models.Tier) (models.LinkedAccount, error) {
	acct := models.LinkedAccount{
		DiscordID:     discordID,
		TwitterHandle: NormalizeHandle(twitterHandle),
		Tier:          tier,
		ConnectedAt:   time.Now().UTC(),
	}
	if acct.Tier == "" {
		acct.Tier = models.TierMicro
	}

	var owner string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT discord_id FROM linked_accounts WHERE twitter_handle = $1`,
		acct.TwitterHandle,
	).Scan(&owner)
	if err == nil && owner != discordID {
		return models.LinkedAccount{}, ErrHandleTaken
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.LinkedAccount{}, err
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO linked_accounts (discord_id, twitter_handle, tier, connected_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (discord_id) DO UPDATE SET twitter_handle = EXCLUDED.twitter_handle`,
		acct.DiscordID, acct.TwitterHandle, string(acct.Tier), acct.ConnectedAt,
	)
	if err != nil {
		return models.LinkedAccount{}, err
	}
	return acct, nil
}

// ByHandle resolves a Twitter handle (case-insensitively) to the linked
// account. Returns (nil, nil) when no link exists.
func (s *AccountStore) ByHandle(ctx context.Context, handle string) (*models.LinkedAccount, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT discord_id, twitter_handle, tier, total_points, connected_at
		 FROM linked_accounts WHERE twitter_handle = $1`,
		NormalizeHandle(handle))
	return scanAccount(row)
}

func (s *AccountStore) ByDiscordID(ctx context.Context, discordID string) (*models.LinkedAccount, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT discord_id, twitter_handle, tier, total_points, connected_at
		 FROM linked_accounts WHERE discord_id = $1`, discordID)
	return scanAccount(row)
}

// AddPoints applies an atomic increment at the storage layer so concurrent
// admin adjustments cannot lose updates.
func (s *AccountStore) AddPoints(ctx context.Context, discordID string, points int64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE linked_accounts SET total_points = total_points + $2 WHERE discord_id = $1`,
		discordID, points,
	)
	return err
}

func (s *AccountStore) SetTier(ctx context.Context, discordID string, tier models.Tier) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE linked_accounts SET tier = $2 WHERE discord_id = $1`,
		discordID, string(tier),
	)
	return err
}

// TopByPoints returns the leaderboard read model.
func (s *AccountStore) TopByPoints(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT discord_id, twitter_handle, tier, total_points
		 FROM linked_accounts
		 ORDER BY total_points DESC, twitter_handle ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var e models.LeaderboardEntry
		var tier string
		if err := rows.Scan(&e.DiscordID, &e.TwitterHandle, &tier, &e.TotalPoints); err != nil {
			return nil, err
		}
		rank++
		e.Rank = rank
		e.Tier = models.Tier(tier)
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*models.LinkedAccount, error) {
	var a models.LinkedAccount
	var tier string
	err := row.Scan(&a.DiscordID, &a.TwitterHandle, &tier, &a.TotalPoints, &a.ConnectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Tier = models.Tier(tier)
	return &a, nil
}
