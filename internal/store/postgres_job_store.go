package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// PostgresJobStore implements JobStore for PostgreSQL.
type PostgresJobStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresJobStore creates a new PostgreSQL job store.
func NewPostgresJobStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresJobStore {
	return &PostgresJobStore{pool: pool, logger: logger}
}

// ListActiveJobs returns the import/export jobs that should still have a
// live task on the external queue.
func (s *PostgresJobStore) ListActiveJobs(ctx context.Context) ([]*model.BackgroundJob, error) {
	query := `
		SELECT j.id, j.job_type, j.title, j.status, j.task_name, p.email
		FROM background_jobs j
		JOIN people p ON p.id = j.created_by_id
		WHERE j.status IN ($1, $2) AND j.job_type IN ($3, $4)
		ORDER BY j.id
	`

	rows, err := s.pool.Query(ctx, query,
		model.JobStatusAnalysis, model.JobStatusInProgress,
		model.JobTypeImport, model.JobTypeExport,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.BackgroundJob
	for rows.Next() {
		var job model.BackgroundJob
		if err := rows.Scan(&job.ID, &job.JobType, &job.Title, &job.Status, &job.TaskName, &job.CreatedByEmail); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// MarkFailed transitions a job to the failed status.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID int64) error {
	query := `
		UPDATE background_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, jobID, model.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
