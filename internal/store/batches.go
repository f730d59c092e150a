package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alisharafiiii/kol-discord-sub002/internal/db"
	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// nonTerminalScanWindow bounds the FindNonTerminal scan so an ancient stuck
// row cannot block new batches forever.
const nonTerminalScanWindow = 12 * time.Hour

type BatchStore struct {
	db *db.DB
}

func NewBatchStore(dbConn *db.DB) *BatchStore {
	return &BatchStore{db: dbConn}
}

func (s *BatchStore) Create(ctx context.Context) (*models.BatchJob, error) {
	job := &models.BatchJob{
		ID:        uuid.NewString(),
		Status:    models.BatchPending,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO batch_jobs (id, status, started_at) VALUES ($1, $2, $3)`,
		job.ID, string(job.Status), job.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *BatchStore) Get(ctx context.Context, id string) (*models.BatchJob, error) {
	row := s.db.Pool.QueryRow(ctx, batchSelect+` WHERE id = $1`, id)
	return scanBatch(row)
}

// FindNonTerminal scans recent jobs for one still running or paused. The
// scheduler consults this before starting work so a paused batch is resumed
// instead of duplicated.
func (s *BatchStore) FindNonTerminal(ctx context.Context) (*models.BatchJob, error) {
	row := s.db.Pool.QueryRow(ctx,
		batchSelect+`
		 WHERE status IN ('pending', 'running', 'paused_rate_limit')
		   AND started_at >= $1
		 ORDER BY started_at DESC
		 LIMIT 1`,
		time.Now().UTC().Add(-nonTerminalScanWindow),
	)
	return scanBatch(row)
}

// Recent returns the newest jobs for the reporting surface.
func (s *BatchStore) Recent(ctx context.Context, limit int) ([]models.BatchJob, error) {
	rows, err := s.db.Pool.Query(ctx,
		batchSelect+` ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BatchJob
	for rows.Next() {
		job, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// MarkRunning transitions pending or paused jobs back to running, clearing
// pause bookkeeping.
func (s *BatchStore) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = 'running', paused_at = NULL, will_resume_at = NULL
		 WHERE id = $1 AND status IN ('pending', 'running', 'paused_rate_limit')`,
		id,
	)
	return err
}

// Pause records a rate-limit pause with its scheduled resume instant.
func (s *BatchStore) Pause(ctx context.Context, id string, pausedAt, willResumeAt time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = 'paused_rate_limit', paused_at = $2, will_resume_at = $3,
		     rate_limit_pauses = rate_limit_pauses + 1
		 WHERE id = $1`,
		id, pausedAt, willResumeAt,
	)
	return err
}

// AddProgress accumulates counters. Deltas, not absolutes, so totals stay
// cumulative across pause/resume segments.
func (s *BatchStore) AddProgress(ctx context.Context, id string, tweets, engagements int, points int64, errs int) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET tweets_processed = tweets_processed + $2,
		     engagements_found = engagements_found + $3,
		     total_points_awarded = total_points_awarded + $4,
		     error_count = error_count + $5
		 WHERE id = $1`,
		id, tweets, engagements, points, errs,
	)
	return err
}

// Finalize moves the job to a terminal state and stamps completion.
func (s *BatchStore) Finalize(ctx context.Context, id string, status models.BatchStatus, errMsg *string) error {
	if !status.Terminal() {
		return errors.New("finalize requires a terminal status")
	}
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status = $2, completed_at = NOW(), last_error = COALESCE($3, last_error)
		 WHERE id = $1`,
		id, string(status), errMsg,
	)
	return err
}

const batchSelect = `SELECT id, status, started_at, completed_at, paused_at, will_resume_at,
	tweets_processed, engagements_found, total_points_awarded, rate_limit_pauses,
	error_count, last_error
 FROM batch_jobs`

func scanBatch(row pgx.Row) (*models.BatchJob, error) {
	var job models.BatchJob
	var status string
	err := row.Scan(&job.ID, &status, &job.StartedAt, &job.CompletedAt, &job.PausedAt,
		&job.WillResumeAt, &job.TweetsProcessed, &job.EngagementsFound,
		&job.TotalPointsAwarded, &job.RateLimitPauses, &job.ErrorCount, &job.LastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	job.Status = models.BatchStatus(status)
	return &job, nil
}
