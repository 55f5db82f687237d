package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// fakeIndexStore records ReplaceRecords calls and keeps the resulting
// row set per (type, key) so idempotency can be observed.
type fakeIndexStore struct {
	replaceCalls int
	lastType     string
	lastIDs      []int64
	lastChunks   [][]Row
	rows         map[string][]Row
}

func newFakeIndexStore() *fakeIndexStore {
	return &fakeIndexStore{rows: map[string][]Row{}}
}

func (f *fakeIndexStore) DeleteRecords(_ context.Context, objectType string, ids []int64) error {
	for _, id := range ids {
		delete(f.rows, rowKey(objectType, id))
	}
	return nil
}

func (f *fakeIndexStore) ReplaceRecords(ctx context.Context, objectType string, ids []int64, chunks [][]Row) error {
	f.replaceCalls++
	f.lastType = objectType
	f.lastIDs = ids
	f.lastChunks = chunks
	if err := f.DeleteRecords(ctx, objectType, ids); err != nil {
		return err
	}
	for _, chunk := range chunks {
		for _, row := range chunk {
			key := rowKey(row.Type, row.Key)
			f.rows[key] = append(f.rows[key], row)
		}
	}
	return nil
}

func rowKey(objectType string, id int64) string {
	return fmt.Sprintf("%s/%d", objectType, id)
}

// fakeLoader serves a fixed object set filtered by the requested ids.
type fakeLoader struct {
	objects []model.Object
}

func (f *fakeLoader) LoadForIndex(_ context.Context, objectType string, ids []int64) ([]model.Object, error) {
	wanted := map[int64]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var result []model.Object
	for _, obj := range f.objects {
		if obj.ObjectType() == objectType && wanted[obj.ObjectID()] {
			result = append(result, obj)
		}
	}
	return result, nil
}

func newTestIndexer(store *fakeIndexStore, loader *fakeLoader, chunkSize int) *Indexer {
	return New(
		DefaultRegistry(),
		testPeople(),
		loader,
		store,
		chunkSize,
		metrics.NewWith(prometheus.NewRegistry()),
		zap.NewNop(),
	)
}

func TestReindex_EmptyIDsIsNoop(t *testing.T) {
	store := newFakeIndexStore()
	ix := newTestIndexer(store, &fakeLoader{}, 0)

	require.NoError(t, ix.Reindex(context.Background(), "Audit", nil))
	assert.Zero(t, store.replaceCalls)
}

func TestReindex_ReplacesRows(t *testing.T) {
	store := newFakeIndexStore()
	loader := &fakeLoader{objects: []model.Object{
		&model.Audit{ID: 1, Title: "First", Status: "Active"},
		&model.Audit{ID: 2, Title: "Second", Status: "Draft"},
	}}
	ix := newTestIndexer(store, loader, 0)

	require.NoError(t, ix.Reindex(context.Background(), "Audit", []int64{1, 2}))

	assert.Equal(t, 1, store.replaceCalls)
	assert.Equal(t, "Audit", store.lastType)
	assert.Equal(t, []int64{1, 2}, store.lastIDs)

	// Each audit has three scalar attributes, so six rows total.
	total := 0
	for _, chunk := range store.lastChunks {
		total += len(chunk)
	}
	assert.Equal(t, 6, total)
}

func TestReindex_Idempotent(t *testing.T) {
	store := newFakeIndexStore()
	loader := &fakeLoader{objects: []model.Object{
		&model.Audit{ID: 1, Title: "First", Status: "Active"},
	}}
	ix := newTestIndexer(store, loader, 0)

	require.NoError(t, ix.Reindex(context.Background(), "Audit", []int64{1}))
	after1 := store.rows[rowKey("Audit", 1)]
	require.NoError(t, ix.Reindex(context.Background(), "Audit", []int64{1}))
	after2 := store.rows[rowKey("Audit", 1)]

	assert.Equal(t, after1, after2)
	assert.Equal(t, 2, store.replaceCalls)
}

func TestReindex_ChunksRows(t *testing.T) {
	store := newFakeIndexStore()
	// Seven audits at three rows each makes 21 rows; chunk size 9 must
	// produce ceil(21/9) = 3 chunks with no row lost.
	var objects []model.Object
	var ids []int64
	for i := int64(1); i <= 7; i++ {
		objects = append(objects, &model.Audit{ID: i, Title: "t", Status: "s"})
		ids = append(ids, i)
	}
	ix := newTestIndexer(store, &fakeLoader{objects: objects}, 9)

	require.NoError(t, ix.Reindex(context.Background(), "Audit", ids))

	require.Len(t, store.lastChunks, 3)
	total := 0
	for _, chunk := range store.lastChunks {
		assert.LessOrEqual(t, len(chunk), 9)
		total += len(chunk)
	}
	assert.Equal(t, 21, total)
}

func TestReindex_MissingObjectsClearRows(t *testing.T) {
	store := newFakeIndexStore()
	loader := &fakeLoader{objects: []model.Object{
		&model.Audit{ID: 1, Title: "Still here", Status: "Active"},
	}}
	ix := newTestIndexer(store, loader, 0)

	// Seed a stale row for a deleted object.
	store.rows[rowKey("Audit", 2)] = []Row{{Key: 2, Type: "Audit", Property: "title"}}

	require.NoError(t, ix.Reindex(context.Background(), "Audit", []int64{1, 2}))

	assert.NotEmpty(t, store.rows[rowKey("Audit", 1)])
	assert.Empty(t, store.rows[rowKey("Audit", 2)])
}

func TestDelete(t *testing.T) {
	store := newFakeIndexStore()
	ix := newTestIndexer(store, &fakeLoader{}, 0)

	store.rows[rowKey("Audit", 5)] = []Row{{Key: 5, Type: "Audit", Property: "title"}}
	require.NoError(t, ix.Delete(context.Background(), "Audit", []int64{5}))
	assert.Empty(t, store.rows[rowKey("Audit", 5)])
}
