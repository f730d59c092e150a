package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// ErrDuplicateTweet is returned when the external tweet id was already
// submitted.
var ErrDuplicateTweet = errors.New("tweet already submitted")

type TweetStore struct {
	db *db.DB
}

func NewTweetStore(dbConn *db.DB) *TweetStore {
	return &TweetStore{db: dbConn}
}

// Submit records a tweet for engagement tracking. The external tweet id is
// globally unique; resubmissions fail with ErrDuplicateTweet.
func (s *TweetStore) Submit(ctx context.Context, t models.SubmittedTweet) (models.SubmittedTweet, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now().UTC()
	}
	t.AuthorHandle = NormalizeHandle(t.AuthorHandle)

	tag, err := s.db.Pool.Exec(ctx,
		`INSERT INTO submitted_tweets
			(id, tweet_id, submitter_discord_id, author_handle, url, category, tier, bonus_multiplier, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tweet_id) DO NOTHING`,
		t.ID, t.TweetID, t.SubmitterDiscordID, t.AuthorHandle, t.URL, t.Category,
		string(t.Tier), t.BonusMultiplier, t.SubmittedAt,
	)
	if err != nil {
		return models.SubmittedTweet{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.SubmittedTweet{}, ErrDuplicateTweet
	}
	return t, nil
}

func (s *TweetStore) Get(ctx context.Context, id string) (*models.SubmittedTweet, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT id, tweet_id, submitter_discord_id, author_handle, url, category,
			tier, bonus_multiplier, submitted_at, like_count, retweet_count, reply_count
		 FROM submitted_tweets WHERE id = $1`, id)
	return scanTweet(row)
}

// RecentTweets returns tweets submitted within the trailing window, in
// insertion order. An empty result is not an error.
func (s *TweetStore) RecentTweets(ctx context.Context, window time.Duration, limit int) ([]models.SubmittedTweet, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, tweet_id, submitter_discord_id, author_handle, url, category,
			tier, bonus_multiplier, submitted_at, like_count, retweet_count, reply_count
		 FROM submitted_tweets
		 WHERE submitted_at >= $1
		 ORDER BY submitted_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SubmittedTweet
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateMetrics persists the last observed public counts. Called
// unconditionally for every fetched tweet, including metrics-only mode.
func (s *TweetStore) UpdateMetrics(ctx context.Context, id string, m models.TweetMetrics) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE submitted_tweets
		 SET like_count = $2, retweet_count = $3, reply_count = $4, metrics_updated_at = NOW()
		 WHERE id = $1`,
		id, m.Likes, m.Retweets, m.Replies,
	)
	return err
}

// CountSubmittedToday supports per-tier daily submission limits.
func (s *TweetStore) CountSubmittedToday(ctx context.Context, discordID string) (int, error) {
	var n int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submitted_tweets
		 WHERE submitter_discord_id = $1 AND submitted_at >= date_trunc('day', NOW())`,
		discordID,
	).Scan(&n)
	return n, err
}

func scanTweet(row pgx.Row) (*models.SubmittedTweet, error) {
	var t models.SubmittedTweet
	var tier string
	var likes, retweets, replies *int
	err := row.Scan(&t.ID, &t.TweetID, &t.SubmitterDiscordID, &t.AuthorHandle, &t.URL,
		&t.Category, &tier, &t.BonusMultiplier, &t.SubmittedAt, &likes, &retweets, &replies)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Tier = models.Tier(tier)
	if likes != nil && retweets != nil && replies != nil {
		t.Metrics = &models.TweetMetrics{Likes: *likes, Retweets: *retweets, Replies: *replies}
	}
	return &t, nil
}

// NormalizeHandle lowercases a Twitter handle and strips a leading @.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
