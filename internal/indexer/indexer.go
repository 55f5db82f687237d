package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// DefaultChunkSize bounds the size of a single index insert statement.
const DefaultChunkSize = 3000

// IndexStore persists full-text index rows.
type IndexStore interface {
	// DeleteRecords removes all index rows for the given type and ids.
	DeleteRecords(ctx context.Context, objectType string, ids []int64) error
	// ReplaceRecords deletes the rows for the given type and ids and
	// inserts the provided chunks, one insert statement per chunk, inside
	// a single transaction.
	ReplaceRecords(ctx context.Context, objectType string, ids []int64, chunks [][]Row) error
}

// ObjectLoader loads domain objects of one type for index rebuilds.
type ObjectLoader interface {
	LoadForIndex(ctx context.Context, objectType string, ids []int64) ([]model.Object, error)
}

// Indexer refreshes the full-text index for sets of objects of one type.
// Refreshes delete and reinsert atomically, so repeated calls leave the
// same row set behind.
type Indexer struct {
	registry  *Registry
	people    PersonStore
	loader    ObjectLoader
	store     IndexStore
	chunkSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates an indexer. chunkSize <= 0 falls back to DefaultChunkSize.
func New(
	registry *Registry,
	people PersonStore,
	loader ObjectLoader,
	store IndexStore,
	chunkSize int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Indexer{
		registry:  registry,
		people:    people,
		loader:    loader,
		store:     store,
		chunkSize: chunkSize,
		metrics:   m,
		logger:    logger,
	}
}

// Known reports whether the object type can be indexed.
func (ix *Indexer) Known(objectType string) bool {
	return ix.registry.Known(objectType)
}

// Reindex rebuilds the index rows of one type for exactly the given ids.
// The call is idempotent and a no-op for an empty id set. Cross-type
// batches are not supported; callers group ids by type first.
func (ix *Indexer) Reindex(ctx context.Context, objectType string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()

	objects, err := ix.loader.LoadForIndex(ctx, objectType, ids)
	if err != nil {
		return fmt.Errorf("failed to load %s objects for indexing: %w", objectType, err)
	}

	builder := NewBuilder(ix.registry, ix.people, ix.logger)
	var rows []Row
	for _, obj := range objects {
		record, err := builder.BuildRecord(ctx, obj)
		if err != nil {
			return fmt.Errorf("failed to build index record for %s %d: %w",
				obj.ObjectType(), obj.ObjectID(), err)
		}
		rows = append(rows, record.Rows()...)
	}

	chunks := chunkRows(rows, ix.chunkSize)
	if err := ix.store.ReplaceRecords(ctx, objectType, ids, chunks); err != nil {
		return fmt.Errorf("failed to replace index records for %s: %w", objectType, err)
	}

	ix.metrics.IndexRowsInserted.Add(float64(len(rows)))
	ix.metrics.IndexChunks.Add(float64(len(chunks)))
	ix.metrics.ReindexDuration.WithLabelValues(objectType).Observe(time.Since(start).Seconds())

	ix.logger.Info("Reindexed objects",
		zap.String("object_type", objectType),
		zap.Int("objects", len(objects)),
		zap.Int("rows", len(rows)),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Delete removes the index rows of one type for the given ids. Used when
// objects are deleted rather than changed.
func (ix *Indexer) Delete(ctx context.Context, objectType string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ix.store.DeleteRecords(ctx, objectType, ids); err != nil {
		return fmt.Errorf("failed to delete index records for %s: %w", objectType, err)
	}
	return nil
}

// chunkRows splits rows into fixed-size chunks. Chunk size affects only the
// statement count, never the total row count.
func chunkRows(rows []Row, size int) [][]Row {
	if len(rows) == 0 {
		return nil
	}
	chunks := make([][]Row, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}
