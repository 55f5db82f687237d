// Package sync performs bulk, partially-failing synchronization of tracked
// domain objects against the remote ticket service, keeping the local
// ticket mirrors and the audit log consistent with the remote side.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/permission"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	"github.com/IlyaTsupryk/ggrc-core/internal/tracker"
)

// errForbidden marks a failed permission gate. It is recorded per item as
// the literal message "Forbidden".
var errForbidden = errors.New("Forbidden")

// TrackedRequest describes one object in a bulk sync request.
type TrackedRequest struct {
	Type        string
	ID          int64
	HotlistIDs  []int64
	ComponentID int64
}

// ItemError is one per-item failure. Item failures never abort the batch.
type ItemError struct {
	Type    string `json:"type"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// Result is the outcome of one bulk sync batch. Every input item lands
// either in Updated or in Errors (or is silently skipped when its handler
// declines to build a payload).
type Result struct {
	Updated map[model.ObjectKey]*tracker.IssuePayload
	Errors  []ItemError
}

// ValidationError rejects a request before any batch work begins.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CommitError marks a failure of the final bulk mirror update. It is fatal
// for the batch: consistency between created remote tickets and local
// mirrors cannot be guaranteed otherwise.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to update ticket mirrors: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// options selects the synchronizer variant behavior.
type options struct {
	variant     string
	update      bool
	breakOnErrs bool
	childGate   bool
}

// Deps are the collaborators of a Synchronizer.
type Deps struct {
	Objects       store.ObjectStore
	Tickets       store.TicketStore
	AuditLog      store.AuditLogStore
	People        store.PeopleStore
	Oracle        permission.Oracle
	Registry      *Registry
	Client        tracker.Client
	MaxAttempts   int
	RetryInterval time.Duration
	IssueURLTmpl  string
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Synchronizer creates or updates remote tickets for batches of tracked
// objects. Items are processed serially in input order; per-item failures
// are collected without aborting the batch.
type Synchronizer struct {
	deps Deps
	opts options
}

// NewBulkCreator returns the variant that creates tickets for objects that
// have no remote issue yet.
func NewBulkCreator(deps Deps) *Synchronizer {
	return &Synchronizer{deps: deps, opts: options{variant: "create"}}
}

// NewBulkUpdater returns the variant that updates tickets for objects that
// already have a remote issue.
func NewBulkUpdater(deps Deps) *Synchronizer {
	return &Synchronizer{deps: deps, opts: options{variant: "update", update: true}}
}

// NewBulkChildCreator returns the variant that creates tickets for all
// unlinked children of a parent object. It gates items on the child
// handler's bulk-generation predicate and stops the batch on systemic
// hotlist/component errors.
func NewBulkChildCreator(deps Deps) *Synchronizer {
	return &Synchronizer{deps: deps, opts: options{
		variant:     "child_create",
		breakOnErrs: true,
		childGate:   true,
	}}
}

// SyncObjects synchronizes the given tracked objects. Objects whose mirror
// state does not match the variant (already linked for create, unlinked
// for update) are skipped without error.
func (s *Synchronizer) SyncObjects(ctx context.Context, actor *model.Person, requests []TrackedRequest) (*Result, error) {
	if len(requests) == 0 {
		return emptyResult(), nil
	}

	for _, req := range requests {
		if !s.deps.Registry.Known(req.Type) {
			return nil, &ValidationError{Message: fmt.Sprintf("Provided model %s is not tracked.", req.Type)}
		}
	}

	// Group ids by type for loading, then process in input order.
	typeOrder := make([]string, 0)
	typeIDs := map[string][]int64{}
	for _, req := range requests {
		if _, ok := typeIDs[req.Type]; !ok {
			typeOrder = append(typeOrder, req.Type)
		}
		typeIDs[req.Type] = append(typeIDs[req.Type], req.ID)
	}

	loaded := map[model.ObjectKey]model.Object{}
	for _, objectType := range typeOrder {
		objects, err := s.deps.Objects.LoadTracked(ctx, objectType, typeIDs[objectType], s.opts.update)
		if err != nil {
			return nil, fmt.Errorf("failed to load tracked %s objects: %w", objectType, err)
		}
		for _, obj := range objects {
			loaded[model.Key(obj)] = obj
		}
	}

	items := make([]model.TrackedObject, 0, len(requests))
	for _, req := range requests {
		obj, ok := loaded[model.ObjectKey{Type: req.Type, ID: req.ID}]
		if !ok {
			continue
		}
		items = append(items, model.NewTrackedObject(obj, req.HotlistIDs, req.ComponentID))
	}

	return s.run(ctx, actor, items)
}

// SyncChildren synchronizes every unlinked tracked child of one parent.
// The parent only needs to be a ticket-bearing type; it is the child type
// that must have an integration handler.
func (s *Synchronizer) SyncChildren(ctx context.Context, actor *model.Person, parentType string, parentID int64, childType string) (*Result, error) {
	if !s.deps.Registry.Tracked(parentType) || !s.deps.Registry.Known(childType) {
		return nil, &ValidationError{Message: "Provided model is not tracked."}
	}

	handler, _ := s.deps.Registry.Handler(childType)
	children, err := handler.LoadChildren(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s children of %s %d: %w", childType, parentType, parentID, err)
	}

	items := make([]model.TrackedObject, 0, len(children))
	for _, child := range children {
		items = append(items, model.NewTrackedObject(child, nil, 0))
	}

	return s.run(ctx, actor, items)
}

// run executes the per-item pipeline for a loaded batch, then commits the
// mirrors of every succeeded item in one bulk update and writes the audit
// log for them.
func (s *Synchronizer) run(ctx context.Context, actor *model.Person, items []model.TrackedObject) (*Result, error) {
	start := time.Now()
	result := emptyResult()

	cache := NewPeopleCache(s.deps.People)
	for _, item := range items {
		cache.Register(item.Object)
	}
	if err := cache.Resolve(ctx); err != nil {
		return nil, err
	}

	// The remote service has no collection endpoint, so tickets are
	// created one call at a time.
	for _, item := range items {
		key := model.Key(item.Object)
		payload, err := s.syncOne(ctx, actor, item, cache)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				Type:    key.Type,
				ID:      key.ID,
				Message: errMessage(err),
			})
			s.deps.Metrics.SyncItems.WithLabelValues(s.opts.variant, "error").Inc()
			if s.opts.breakOnErrs && stopsBatch(err, payload) {
				s.deps.Logger.Warn("Stopping bulk sync on systemic remote error",
					zap.String("object_type", key.Type),
					zap.Int64("object_id", key.ID),
					zap.Error(err))
				break
			}
			continue
		}
		if payload == nil {
			s.deps.Metrics.SyncItems.WithLabelValues(s.opts.variant, "skipped").Inc()
			continue
		}
		result.Updated[key] = payload
		s.deps.Metrics.SyncItems.WithLabelValues(s.opts.variant, "success").Inc()
	}

	if err := s.commit(ctx, actor, result.Updated); err != nil {
		return nil, err
	}

	s.deps.Metrics.SyncBatches.WithLabelValues(s.opts.variant).Inc()
	s.deps.Metrics.SyncDuration.WithLabelValues(s.opts.variant).Observe(time.Since(start).Seconds())
	return result, nil
}

// syncOne runs one item through the pipeline: permission gate, payload
// construction, remote call with retry, merge of remote-assigned fields.
// On a remote error the built payload is returned alongside the error so
// the caller can match stop-on-error conditions against the failing
// item's own hotlist and component values.
func (s *Synchronizer) syncOne(ctx context.Context, actor *model.Person, item model.TrackedObject, cache *PeopleCache) (*tracker.IssuePayload, error) {
	allowed, err := s.gate(ctx, actor, item.Object)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errForbidden
	}

	handler, ok := s.deps.Registry.Handler(item.Object.ObjectType())
	if !ok {
		return nil, fmt.Errorf("no integration handler for %s", item.Object.ObjectType())
	}
	payload, err := handler.PrepareIssue(ctx, item.Object, cache)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	if len(item.HotlistIDs) > 0 {
		payload.HotlistIDs = item.HotlistIDs
	}
	if item.ComponentID != 0 {
		payload.ComponentID = item.ComponentID
	}

	var resp *tracker.IssueResponse
	if s.opts.update {
		// The store only loads linked objects for the update variant; an
		// unlinked mirror slipping through has nothing to update.
		mirror := trackedMirror(item.Object)
		if !mirror.Linked() {
			return nil, nil
		}
		payload.IssueID = mirror.IssueID
		payload.IssueURL = mirror.IssueURL
		resp, err = tracker.UpdateIssueWithRetry(
			ctx, s.deps.Client, payload.IssueID, payload,
			s.deps.MaxAttempts, s.deps.RetryInterval,
			s.deps.Metrics.RemoteRetries.Inc)
	} else {
		resp, err = tracker.CreateIssueWithRetry(
			ctx, s.deps.Client, payload,
			s.deps.MaxAttempts, s.deps.RetryInterval,
			s.deps.Metrics.RemoteRetries.Inc)
	}
	if err != nil {
		s.deps.Metrics.RemoteCalls.WithLabelValues(s.opts.variant, "error").Inc()
		return payload, err
	}
	s.deps.Metrics.RemoteCalls.WithLabelValues(s.opts.variant, "success").Inc()

	payload.Enabled = true
	if payload.IssueID == 0 && resp != nil {
		payload.IssueID = resp.IssueID
		payload.IssueURL = fmt.Sprintf(s.deps.IssueURLTmpl, resp.IssueID)
	}
	return payload, nil
}

func (s *Synchronizer) gate(ctx context.Context, actor *model.Person, obj model.Object) (bool, error) {
	if s.opts.childGate {
		handler, ok := s.deps.Registry.Handler(obj.ObjectType())
		if !ok {
			return false, nil
		}
		return handler.BulkChildrenAllowed(ctx, actor, obj)
	}
	return s.deps.Oracle.CanUpdate(ctx, actor, obj)
}

// commit persists the mirrors of every succeeded item in one bulk update,
// then writes the audit log for them. The bulk update failing is fatal;
// audit-log failures are logged and swallowed.
func (s *Synchronizer) commit(ctx context.Context, actor *model.Person, updated map[model.ObjectKey]*tracker.IssuePayload) error {
	if len(updated) == 0 {
		return nil
	}

	keys := sortedKeys(updated)
	mirrors := make([]*model.TicketMirror, 0, len(keys))
	for _, key := range keys {
		mirrors = append(mirrors, payloadMirror(key, updated[key]))
	}

	if err := s.deps.Tickets.BulkUpdate(ctx, mirrors); err != nil {
		s.deps.Logger.Error("Bulk ticket mirror update failed", zap.Error(err))
		return &CommitError{Err: err}
	}

	s.logEvent(ctx, actor, keys)
	return nil
}

// logEvent writes one event plus one revision per committed mirror,
// best-effort.
func (s *Synchronizer) logEvent(ctx context.Context, actor *model.Person, keys []model.ObjectKey) {
	var actorID int64
	if actor != nil {
		actorID = actor.ID
	}
	eventID, err := s.deps.AuditLog.CreateEvent(ctx, &model.Event{
		ModifiedByID: actorID,
		Action:       model.EventActionBulk,
	})
	if err != nil {
		s.deps.Logger.Error("Failed to create bulk sync event", zap.Error(err))
		return
	}

	mirrors, err := s.deps.Tickets.GetMirrors(ctx, keys)
	if err != nil {
		s.deps.Logger.Error("Failed to load mirrors for revision log", zap.Error(err))
		return
	}

	revisions := make([]*model.Revision, 0, len(mirrors))
	for _, mirror := range mirrors {
		content, err := json.Marshal(mirror.LogJSON())
		if err != nil {
			s.deps.Logger.Error("Failed to marshal mirror snapshot", zap.Error(err))
			continue
		}
		key := mirror.Key()
		revisions = append(revisions, &model.Revision{
			ResourceID:   key.ID,
			ResourceType: key.Type,
			EventID:      eventID,
			Action:       model.RevisionActionModified,
			Content:      content,
			ModifiedByID: actorID,
			ContextID:    mirror.ContextID,
		})
	}
	if err := s.deps.AuditLog.CreateRevisions(ctx, revisions); err != nil {
		s.deps.Logger.Error("Failed to create bulk sync revisions", zap.Error(err))
	}
}

// stopsBatch reports whether a remote error is the systemic kind worth
// aborting the rest of the batch for. The check uses the failing item's
// own payload values, never state from a later iteration.
func stopsBatch(err error, payload *tracker.IssuePayload) bool {
	if payload == nil {
		return false
	}
	var hotlistErr *tracker.HotlistNotFoundError
	if errors.As(err, &hotlistErr) {
		for _, id := range payload.HotlistIDs {
			if id == hotlistErr.HotlistID {
				return true
			}
		}
		return false
	}
	var componentErr *tracker.ComponentNotFoundError
	if errors.As(err, &componentErr) {
		return componentErr.ComponentID == payload.ComponentID
	}
	return false
}

func trackedMirror(obj model.Object) *model.TicketMirror {
	if tracked, ok := obj.(model.Tracked); ok {
		return tracked.TicketInfo()
	}
	return nil
}

func payloadMirror(key model.ObjectKey, payload *tracker.IssuePayload) *model.TicketMirror {
	var hotlistID int64
	if len(payload.HotlistIDs) > 0 {
		hotlistID = payload.HotlistIDs[0]
	}
	return &model.TicketMirror{
		ObjectType:    key.Type,
		ObjectID:      key.ID,
		Enabled:       payload.Enabled,
		Title:         payload.Title,
		ComponentID:   payload.ComponentID,
		HotlistID:     hotlistID,
		IssueType:     payload.Type,
		IssuePriority: payload.Priority,
		IssueSeverity: payload.Severity,
		Assignee:      payload.Assignee,
		CCList:        strings.Join(payload.CCs, ","),
		IssueID:       payload.IssueID,
		IssueURL:      payload.IssueURL,
	}
}

func sortedKeys(updated map[model.ObjectKey]*tracker.IssuePayload) []model.ObjectKey {
	keys := make([]model.ObjectKey, 0, len(updated))
	for key := range updated {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

func emptyResult() *Result {
	return &Result{
		Updated: map[model.ObjectKey]*tracker.IssuePayload{},
		Errors:  []ItemError{},
	}
}

func errMessage(err error) string {
	if errors.Is(err, errForbidden) {
		return "Forbidden"
	}
	return err.Error()
}
