package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/indexer"
)

// PostgresIndexStore implements indexer.IndexStore for PostgreSQL.
type PostgresIndexStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresIndexStore creates a new PostgreSQL index store.
func NewPostgresIndexStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresIndexStore {
	return &PostgresIndexStore{pool: pool, logger: logger}
}

const deleteRecordsQuery = `
	DELETE FROM fulltext_record_properties
	WHERE type = $1 AND key = ANY($2)
`

// DeleteRecords removes all index rows for the given type and ids.
func (s *PostgresIndexStore) DeleteRecords(ctx context.Context, objectType string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, deleteRecordsQuery, objectType, ids); err != nil {
		return fmt.Errorf("failed to delete index records: %w", err)
	}
	return nil
}

// ReplaceRecords deletes the rows for the given type and ids and inserts
// the provided chunks inside a single transaction, so readers never see a
// partially refreshed id set.
func (s *PostgresIndexStore) ReplaceRecords(ctx context.Context, objectType string, ids []int64, chunks [][]indexer.Row) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin index refresh: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteRecordsQuery, objectType, ids); err != nil {
		return fmt.Errorf("failed to delete index records: %w", err)
	}

	for _, chunk := range chunks {
		query, args := buildInsertRowsSQL(chunk)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert index records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index refresh: %w", err)
	}
	return nil
}

// buildInsertRowsSQL renders one multi-row insert statement for a chunk.
func buildInsertRowsSQL(rows []indexer.Row) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO fulltext_record_properties
		(key, type, context_id, tags, property, subproperty, content) VALUES `)

	args := make([]any, 0, len(rows)*7)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			row.Key, row.Type, row.ContextID, row.Tags,
			row.Property, row.Subproperty, row.Content)
	}
	return sb.String(), args
}
