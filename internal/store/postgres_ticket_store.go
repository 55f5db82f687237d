package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// PostgresTicketStore implements TicketStore for PostgreSQL.
type PostgresTicketStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresTicketStore creates a new PostgreSQL ticket store.
func NewPostgresTicketStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresTicketStore {
	return &PostgresTicketStore{pool: pool, logger: logger}
}

const updateMirrorQuery = `
	UPDATE issuetracker_issues
	SET enabled = $3,
	    title = $4,
	    component_id = $5,
	    hotlist_id = $6,
	    issue_type = $7,
	    issue_priority = $8,
	    issue_severity = $9,
	    assignee = $10,
	    cc_list = $11,
	    issue_id = $12,
	    issue_url = $13,
	    updated_at = NOW()
	WHERE object_type = $1 AND object_id = $2
`

// BulkUpdate overwrites the mirrors for all given rows inside one
// transaction. The statements are sent as a single batch; either all
// updates commit or none do.
func (s *PostgresTicketStore) BulkUpdate(ctx context.Context, mirrors []*model.TicketMirror) error {
	if len(mirrors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range mirrors {
		batch.Queue(updateMirrorQuery,
			m.ObjectType, m.ObjectID,
			m.Enabled, m.Title, m.ComponentID, m.HotlistID,
			m.IssueType, m.IssuePriority, m.IssueSeverity,
			m.Assignee, m.CCList, m.IssueID, m.IssueURL,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin mirror update: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for range mirrors {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to update ticket mirror: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close mirror update batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mirror update: %w", err)
	}
	return nil
}

// GetMirrors loads the mirror rows for the given keys.
func (s *PostgresTicketStore) GetMirrors(ctx context.Context, keys []model.ObjectKey) ([]*model.TicketMirror, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT object_type, object_id, enabled, title, component_id, hotlist_id,
		       issue_type, issue_priority, issue_severity, assignee, cc_list,
		       COALESCE(issue_id, 0), issue_url, context_id
		FROM issuetracker_issues
		WHERE (object_type, object_id) IN (`)

	args := make([]any, 0, len(keys)*2)
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", i*2+1, i*2+2)
		args = append(args, key.Type, key.ID)
	}
	sb.WriteString(")")

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket mirrors: %w", err)
	}
	defer rows.Close()

	var mirrors []*model.TicketMirror
	for rows.Next() {
		var m model.TicketMirror
		if err := rows.Scan(
			&m.ObjectType, &m.ObjectID, &m.Enabled, &m.Title,
			&m.ComponentID, &m.HotlistID,
			&m.IssueType, &m.IssuePriority, &m.IssueSeverity,
			&m.Assignee, &m.CCList, &m.IssueID, &m.IssueURL, &m.ContextID,
		); err != nil {
			return nil, err
		}
		mirrors = append(mirrors, &m)
	}
	return mirrors, rows.Err()
}
