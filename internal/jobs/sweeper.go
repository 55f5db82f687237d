// Package jobs reconciles background import/export jobs against the
// external task queue, failing jobs whose tasks have vanished.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	"github.com/IlyaTsupryk/ggrc-core/internal/taskqueue"
)

// Notifier tells a job's owner that their job was marked failed.
type Notifier interface {
	NotifyFailed(ctx context.Context, job *model.BackgroundJob) error
}

// LogNotifier records failure notifications in the log instead of sending
// them anywhere.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyFailed logs the failure notice.
func (n *LogNotifier) NotifyFailed(_ context.Context, job *model.BackgroundJob) error {
	n.logger.Info("Background job marked failed",
		zap.Int64("job_id", job.ID),
		zap.String("job_type", job.JobType),
		zap.String("title", job.Title),
		zap.String("created_by", job.CreatedByEmail))
	return nil
}

// Sweeper periodically compares active background jobs against the task
// queue and fails the ones whose tasks no longer exist.
type Sweeper struct {
	jobs     store.JobStore
	queue    taskqueue.Lister
	notifier Notifier
	queueID  string
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewSweeper returns a Sweeper over the given queue.
func NewSweeper(
	jobs store.JobStore,
	queue taskqueue.Lister,
	notifier Notifier,
	queueID string,
	interval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		jobs:     jobs,
		queue:    queue,
		notifier: notifier,
		queueID:  queueID,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. Sweep
// failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Background job sweeper started",
		zap.String("queue", s.queueID),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Background job sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Background job sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs one reconciliation pass. A job still in an active status
// whose task is missing from the queue is marked failed and its owner
// notified. Jobs without a recorded task name are left alone.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	active, err := s.jobs.ListActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active background jobs: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	tasks, err := s.queue.ListTaskNames(ctx, s.queueID)
	if err != nil {
		return fmt.Errorf("failed to list queue tasks: %w", err)
	}

	for _, job := range active {
		// The store query filters on status, but a job that reached a
		// terminal status must never be re-failed.
		if !job.Active() || job.TaskName == "" {
			continue
		}
		if _, alive := tasks[job.TaskName]; alive {
			continue
		}
		if err := s.jobs.MarkFailed(ctx, job.ID); err != nil {
			s.logger.Error("Failed to mark background job failed",
				zap.Int64("job_id", job.ID),
				zap.Error(err))
			continue
		}
		s.metrics.JobsMarkedFailed.Inc()
		s.logger.Warn("Background job task vanished from queue",
			zap.Int64("job_id", job.ID),
			zap.String("task_name", job.TaskName))
		if err := s.notifier.NotifyFailed(ctx, job); err != nil {
			s.logger.Error("Failed to notify job owner",
				zap.Int64("job_id", job.ID),
				zap.Error(err))
		}
	}
	return nil
}
