package engagement

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
	"github.com/alisharafiiii/kol-discord-sub002/internal/twitter"
)

// Runner executes one batch segment.
type Runner interface {
	Run(ctx context.Context) (*models.BatchSummary, error)
}

// Scheduler drives the pipeline on a fixed interval and owns the rate-limit
// resume timer. Manual triggers and timer fires route through the same run
// path as the ticker, so resumption logic lives in one place.
type Scheduler struct {
	pipeline Runner
	batches  BatchRepo
	logger   *slog.Logger
	interval time.Duration

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu          sync.Mutex
	resumeTimer *time.Timer
}

func NewScheduler(pipeline Runner, batches BatchRepo, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		pipeline: pipeline,
		batches:  batches,
		logger:   logger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduling loop. An initial run fires immediately so a
// batch paused before a restart is picked up without waiting a full
// interval.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
	s.logger.Info("scheduler_started", "interval", s.interval.String())
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Trigger requests a run. Coalesces when one is already queued.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the loop and cancels any pending resume timer.
func (s *Scheduler) Stop() {
	s.cancelResumeTimer()
	close(s.stop)
	<-s.done
	s.logger.Info("scheduler_stopped")
}

// runOnce executes the pipeline unless the active batch is paused with a
// resume instant still in the future, in which case the one-shot resume
// timer is (re)armed instead. A resume instant already in the past runs
// immediately.
func (s *Scheduler) runOnce(ctx context.Context) {
	job, err := s.batches.FindNonTerminal(ctx)
	if err != nil {
		s.logger.Error("batch_scan_failed", "error", err.Error())
		return
	}
	if job != nil && job.Status == models.BatchPaused && job.WillResumeAt != nil {
		if wait := time.Until(*job.WillResumeAt); wait > 0 {
			s.scheduleResume(wait, *job.WillResumeAt)
			return
		}
	}

	_, err = s.pipeline.Run(ctx)
	if err == nil {
		s.cancelResumeTimer()
		return
	}

	var rl *twitter.RateLimitError
	if errors.As(err, &rl) {
		s.scheduleResume(time.Until(rl.ResetAt), rl.ResetAt)
		return
	}
	if !errors.Is(err, context.Canceled) {
		s.logger.Error("batch_run_failed", "error", err.Error())
	}
}

// scheduleResume arms a one-shot timer that feeds back into the trigger
// channel. Re-arming cancels the previous timer so at most one is pending.
func (s *Scheduler) scheduleResume(wait time.Duration, resumeAt time.Time) {
	if wait < 0 {
		wait = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
	}
	s.resumeTimer = time.AfterFunc(wait, s.Trigger)
	s.logger.Info("batch_resume_scheduled",
		"resume_at", resumeAt.Format(time.RFC3339),
		"wait", wait.Round(time.Second).String(),
	)
}

func (s *Scheduler) cancelResumeTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
}
