// Package handler provides HTTP request handlers for the sync service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	apierrors "github.com/IlyaTsupryk/ggrc-core/internal/errors"
	"github.com/IlyaTsupryk/ggrc-core/internal/indexer"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	syncsvc "github.com/IlyaTsupryk/ggrc-core/internal/sync"
)

// hotlistIDs accepts either a single id or a list of ids on the wire.
type hotlistIDs []int64

func (h *hotlistIDs) UnmarshalJSON(data []byte) error {
	var list []int64
	if err := json.Unmarshal(data, &list); err == nil {
		*h = list
		return nil
	}
	var scalar int64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*h = []int64{scalar}
		return nil
	}
	return fmt.Errorf("hotlist_ids must be an integer or a list of integers")
}

// trackedObjectRequest is one object entry in a bulk sync request body.
type trackedObjectRequest struct {
	Type        string     `json:"type"`
	ID          int64      `json:"id"`
	HotlistIDs  hotlistIDs `json:"hotlist_ids,omitempty"`
	ComponentID int64      `json:"component_id,omitempty"`
}

// bulkSyncRequest is the body of the bulk generate/update endpoints.
type bulkSyncRequest struct {
	Objects []trackedObjectRequest `json:"objects"`
}

// bulkChildRequest is the body of the bulk child-generate endpoint.
type bulkChildRequest struct {
	ParentType string `json:"parent_type"`
	ParentID   int64  `json:"parent_id"`
	ChildType  string `json:"child_type"`
}

// bulkSyncResponse reports per-item failures of a completed batch.
type bulkSyncResponse struct {
	Errors []syncsvc.ItemError `json:"errors"`
}

// reindexRequest is the body of the reindex endpoint.
type reindexRequest struct {
	Type string  `json:"type"`
	IDs  []int64 `json:"ids"`
}

type reindexResponse struct {
	Status string `json:"status"`
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	creator      *syncsvc.Synchronizer
	updater      *syncsvc.Synchronizer
	childCreator *syncsvc.Synchronizer
	indexer      *indexer.Indexer
	people       store.PeopleStore
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	creator *syncsvc.Synchronizer,
	updater *syncsvc.Synchronizer,
	childCreator *syncsvc.Synchronizer,
	idx *indexer.Indexer,
	people store.PeopleStore,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	timeout time.Duration,
) *Handlers {
	return &Handlers{
		creator:      creator,
		updater:      updater,
		childCreator: childCreator,
		indexer:      idx,
		people:       people,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// BulkGenerate handles POST /v1/issues/bulk-generate requests.
func (h *Handlers) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, h.creator)
}

// BulkUpdate handles POST /v1/issues/bulk-update requests.
func (h *Handlers) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	h.handleBulk(w, r, h.updater)
}

func (h *Handlers) handleBulk(w http.ResponseWriter, r *http.Request, s *syncsvc.Synchronizer) {
	requestID := r.Header.Get("X-Request-ID")

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req bulkSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}

	requests := make([]syncsvc.TrackedRequest, 0, len(req.Objects))
	for _, obj := range req.Objects {
		requests = append(requests, syncsvc.TrackedRequest{
			Type:        obj.Type,
			ID:          obj.ID,
			HotlistIDs:  obj.HotlistIDs,
			ComponentID: obj.ComponentID,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := s.SyncObjects(ctx, actor, requests)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, bulkSyncResponse{Errors: result.Errors})
}

// BulkChildGenerate handles POST /v1/issues/bulk-child-generate requests.
func (h *Handlers) BulkChildGenerate(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req bulkChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}
	if req.ParentType == "" || req.ChildType == "" || req.ParentID == 0 {
		h.errorHandler.WriteValidationError(w, "parent_type, parent_id and child_type are required", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.childCreator.SyncChildren(ctx, actor, req.ParentType, req.ParentID, req.ChildType)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, bulkSyncResponse{Errors: result.Errors})
}

// Reindex handles POST /v1/reindex requests.
func (h *Handlers) Reindex(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}
	if !h.indexer.Known(req.Type) {
		h.errorHandler.WriteValidationError(w, fmt.Sprintf("type %q is not indexable", req.Type), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.indexer.Reindex(ctx, req.Type, req.IDs); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, reindexResponse{Status: "ok"})
}

// actor resolves the acting person from the X-Actor-Email header. Writes
// the error response itself when resolution fails.
func (h *Handlers) actor(w http.ResponseWriter, r *http.Request) (*model.Person, bool) {
	requestID := r.Header.Get("X-Request-ID")

	email := r.Header.Get("X-Actor-Email")
	if email == "" {
		h.errorHandler.WriteUnauthorizedError(w, "X-Actor-Email header is required", requestID)
		return nil, false
	}

	person, err := h.people.GetPersonByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.errorHandler.WriteUnauthorizedError(w, fmt.Sprintf("unknown actor %s", email), requestID)
			return nil, false
		}
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return person, true
}

// writeJSONResponse writes a JSON response with the given status code.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
