package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler prunes the archive on a cron schedule so the history
// database does not grow without bound.
type Scheduler struct {
	archive       *Archive
	cron          *cron.Cron
	schedule      string
	retentionDays int
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler. Logs older than
// retentionDays are deleted each time the schedule fires.
func NewScheduler(archive *Archive, schedule string, retentionDays int) *Scheduler {
	return &Scheduler{
		archive:       archive,
		cron:          cron.New(),
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        slog.Default().With("component", "history.retention"),
	}
}

// Start begins scheduled pruning. An empty schedule or non-positive
// retention disables the scheduler. The scheduler stops itself when the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.retentionDays <= 0 {
		s.logger.Info("history retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule history pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("history retention scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler, waiting for a running pruning cycle to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info("history retention scheduler stopped")
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.archive.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("history pruning failed", "error", err)
		return
	}
	s.logger.Info("history pruning completed",
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
	)
}
