package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// PostgresAuditLogStore implements AuditLogStore for PostgreSQL.
type PostgresAuditLogStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresAuditLogStore creates a new PostgreSQL audit-log store.
func NewPostgresAuditLogStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresAuditLogStore {
	return &PostgresAuditLogStore{pool: pool, logger: logger}
}

// CreateEvent inserts one event row and returns its id.
func (s *PostgresAuditLogStore) CreateEvent(ctx context.Context, event *model.Event) (int64, error) {
	query := `
		INSERT INTO events (modified_by_id, action, resource_id, resource_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		event.ModifiedByID, event.Action, event.ResourceID, event.ResourceType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	return id, nil
}

// CreateRevisions inserts revision rows in one batch.
func (s *PostgresAuditLogStore) CreateRevisions(ctx context.Context, revisions []*model.Revision) error {
	if len(revisions) == 0 {
		return nil
	}

	query := `
		INSERT INTO revisions
			(resource_id, resource_type, event_id, action, content,
			 modified_by_id, context_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	batch := &pgx.Batch{}
	for _, rev := range revisions {
		batch.Queue(query,
			rev.ResourceID, rev.ResourceType, rev.EventID, rev.Action,
			rev.Content, rev.ModifiedByID, rev.ContextID,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range revisions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create revision: %w", err)
		}
	}
	return nil
}
