package taskqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListTaskNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/queues/ggrcImport/tasks", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{
				{"name": "projects/p/locations/l/queues/ggrcImport/tasks/import-1"},
				{"name": "projects/p/locations/l/queues/ggrcImport/tasks/import-2"},
			},
		})
	}))
	defer server.Close()

	lister := NewHTTPLister(server.URL, 5*time.Second, zap.NewNop())
	names, err := lister.ListTaskNames(context.Background(), "ggrcImport")
	require.NoError(t, err)

	assert.Len(t, names, 2)
	assert.Contains(t, names, "import-1")
	assert.Contains(t, names, "import-2")
}

func TestListTaskNames_EmptyQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	lister := NewHTTPLister(server.URL, 5*time.Second, zap.NewNop())
	names, err := lister.ListTaskNames(context.Background(), "ggrcImport")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListTaskNames_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	lister := NewHTTPLister(server.URL, 5*time.Second, zap.NewNop())
	_, err := lister.ListTaskNames(context.Background(), "ggrcImport")
	assert.Error(t, err)
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "import-1", shortName("projects/p/queues/q/tasks/import-1"))
	assert.Equal(t, "bare-name", shortName("bare-name"))
}
