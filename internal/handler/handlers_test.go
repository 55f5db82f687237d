package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apierrors "github.com/IlyaTsupryk/ggrc-core/internal/errors"
	"github.com/IlyaTsupryk/ggrc-core/internal/indexer"
	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	syncsvc "github.com/IlyaTsupryk/ggrc-core/internal/sync"
	"github.com/IlyaTsupryk/ggrc-core/internal/tracker"
)

// fakePeople implements store.PeopleStore with fixed data.
type fakePeople struct{}

func (fakePeople) GetPerson(_ context.Context, id int64) (*model.Person, error) {
	return &model.Person{ID: id, Name: "Person", Email: "person@example.com"}, nil
}

func (fakePeople) GetPersonByEmail(_ context.Context, email string) (*model.Person, error) {
	if email == "admin@example.com" {
		return &model.Person{ID: 99, Email: email}, nil
	}
	return nil, store.ErrNotFound
}

func (fakePeople) FindRoleEmails(_ context.Context, _ []store.RoleKey) ([]store.RoleEmail, error) {
	return nil, nil
}

func (fakePeople) RolesFor(_ context.Context, _ int64, _ string, _ int64) ([]string, error) {
	return nil, nil
}

// fakeObjects serves unlinked issues with mirror defaults attached.
type fakeObjects struct{}

func (fakeObjects) LoadTracked(_ context.Context, objectType string, ids []int64, _ bool) ([]model.Object, error) {
	var objects []model.Object
	for _, id := range ids {
		objects = append(objects, &model.Issue{
			ID:    id,
			Title: "Issue",
			Ticket: &model.TicketMirror{
				ObjectType:  objectType,
				ObjectID:    id,
				ComponentID: 100,
			},
		})
	}
	return objects, nil
}

func (fakeObjects) LoadAuditAssessments(_ context.Context, _ int64) ([]*model.Assessment, error) {
	return nil, nil
}

func (fakeObjects) LoadForIndex(_ context.Context, objectType string, ids []int64) ([]model.Object, error) {
	var objects []model.Object
	for _, id := range ids {
		objects = append(objects, &model.Audit{ID: id, Title: "Audit"})
	}
	return objects, nil
}

type fakeTickets struct {
	bulkErr error
}

func (f *fakeTickets) BulkUpdate(_ context.Context, _ []*model.TicketMirror) error {
	return f.bulkErr
}

func (f *fakeTickets) GetMirrors(_ context.Context, keys []model.ObjectKey) ([]*model.TicketMirror, error) {
	mirrors := make([]*model.TicketMirror, 0, len(keys))
	for _, key := range keys {
		mirrors = append(mirrors, &model.TicketMirror{ObjectType: key.Type, ObjectID: key.ID})
	}
	return mirrors, nil
}

type fakeAuditLog struct{}

func (fakeAuditLog) CreateEvent(_ context.Context, _ *model.Event) (int64, error) { return 1, nil }
func (fakeAuditLog) CreateRevisions(_ context.Context, _ []*model.Revision) error { return nil }

// denyOracle forbids one object id and allows everything else.
type denyOracle struct {
	deniedID int64
}

func (o denyOracle) CanUpdate(_ context.Context, _ *model.Person, obj model.Object) (bool, error) {
	return obj.ObjectID() != o.deniedID, nil
}

type fakeClient struct{}

func (fakeClient) CreateIssue(_ context.Context, _ *tracker.IssuePayload) (*tracker.IssueResponse, error) {
	return &tracker.IssueResponse{IssueID: 555}, nil
}

func (fakeClient) UpdateIssue(_ context.Context, issueID int64, _ *tracker.IssuePayload) (*tracker.IssueResponse, error) {
	return &tracker.IssueResponse{IssueID: issueID}, nil
}

type fakeIndexStore struct{}

func (fakeIndexStore) DeleteRecords(_ context.Context, _ string, _ []int64) error { return nil }
func (fakeIndexStore) ReplaceRecords(_ context.Context, _ string, _ []int64, _ [][]indexer.Row) error {
	return nil
}

func newTestRouter(t *testing.T, tickets *fakeTickets) *mux.Router {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.NewWith(prometheus.NewRegistry())

	registry := syncsvc.NewHandlerRegistry()
	registry.Register("Issue", syncsvc.NewIssueHandler("http://grc.example.com"))

	deps := syncsvc.Deps{
		Objects:       fakeObjects{},
		Tickets:       tickets,
		AuditLog:      fakeAuditLog{},
		People:        fakePeople{},
		Oracle:        denyOracle{deniedID: 2},
		Registry:      registry,
		Client:        fakeClient{},
		MaxAttempts:   1,
		RetryInterval: time.Millisecond,
		IssueURLTmpl:  "http://issues.example.com/issues/%d",
		Metrics:       m,
		Logger:        logger,
	}

	idx := indexer.New(
		indexer.DefaultRegistry(), fakePeople{}, fakeObjects{}, fakeIndexStore{},
		0, m, logger,
	)

	handlers := NewHandlers(
		syncsvc.NewBulkCreator(deps),
		syncsvc.NewBulkUpdater(deps),
		syncsvc.NewBulkChildCreator(deps),
		idx, fakePeople{},
		apierrors.NewHandler(logger), logger,
		5*time.Second,
	)

	router := mux.NewRouter()
	router.HandleFunc("/v1/issues/bulk-generate", handlers.BulkGenerate).Methods(http.MethodPost)
	router.HandleFunc("/v1/issues/bulk-update", handlers.BulkUpdate).Methods(http.MethodPost)
	router.HandleFunc("/v1/reindex", handlers.Reindex).Methods(http.MethodPost)
	return router
}

func doRequest(t *testing.T, router *mux.Router, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Email", actor)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBulkGenerate_PartialFailure(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/issues/bulk-generate", "admin@example.com", map[string]any{
		"objects": []map[string]any{
			{"type": "Issue", "id": 1},
			{"type": "Issue", "id": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Errors []struct {
			Type    string `json:"type"`
			ID      int64  `json:"id"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, int64(2), resp.Errors[0].ID)
	assert.Equal(t, "Forbidden", resp.Errors[0].Message)
}

func TestBulkGenerate_UnknownTypeRejected(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/issues/bulk-generate", "admin@example.com", map[string]any{
		"objects": []map[string]any{{"type": "Widget", "id": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkGenerate_MissingActorUnauthorized(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/issues/bulk-generate", "", map[string]any{
		"objects": []map[string]any{{"type": "Issue", "id": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBulkGenerate_UnknownActorUnauthorized(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/issues/bulk-generate", "stranger@example.com", map[string]any{
		"objects": []map[string]any{{"type": "Issue", "id": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBulkGenerate_CommitFailureIs500(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{bulkErr: assert.AnError})

	rec := doRequest(t, router, "/v1/issues/bulk-generate", "admin@example.com", map[string]any{
		"objects": []map[string]any{{"type": "Issue", "id": 1}},
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMMIT_FAILED", resp.ErrorCode)
}

func TestReindex_OK(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/reindex", "", map[string]any{
		"type": "Audit",
		"ids":  []int64{1, 2, 3},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReindex_UnknownTypeRejected(t *testing.T) {
	router := newTestRouter(t, &fakeTickets{})

	rec := doRequest(t, router, "/v1/reindex", "", map[string]any{
		"type": "Widget",
		"ids":  []int64{1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotlistIDs_Unmarshal(t *testing.T) {
	var scalar trackedObjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Issue","id":1,"hotlist_ids":5}`), &scalar))
	assert.Equal(t, hotlistIDs{5}, scalar.HotlistIDs)

	var list trackedObjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Issue","id":1,"hotlist_ids":[5,6]}`), &list))
	assert.Equal(t, hotlistIDs{5, 6}, list.HotlistIDs)

	var bad trackedObjectRequest
	assert.Error(t, json.Unmarshal([]byte(`{"hotlist_ids":"nope"}`), &bad))
}
