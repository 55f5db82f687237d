package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
	"github.com/IlyaTsupryk/ggrc-core/internal/tracker"
)

// Role names used when building outbound ticket payloads.
const (
	roleAssignees     = "Assignees"
	roleAuditCaptains = "Audit Captains"
	roleAdmin         = "Admin"
)

// trackerStatuses maps domain object statuses to remote ticket statuses.
var trackerStatuses = map[string]string{
	"Not Started":   "ASSIGNED",
	"In Progress":   "ASSIGNED",
	"In Review":     "FIXED",
	"Rework Needed": "ASSIGNED",
	"Completed":     "VERIFIED",
	"Deprecated":    "OBSOLETE",
	"Draft":         "ASSIGNED",
	"Active":        "ASSIGNED",
	"Fixed":         "FIXED",
}

// Handler builds ticket payloads for one object type and knows how to load
// and permission-gate child objects for bulk generation.
type Handler interface {
	// PrepareIssue builds the outbound ticket payload. A nil payload with
	// nil error means the object is not syncable and should be skipped.
	PrepareIssue(ctx context.Context, obj model.Object, people *PeopleCache) (*tracker.IssuePayload, error)
	// LoadChildren loads the unlinked tracked children of a parent object.
	LoadChildren(ctx context.Context, parentID int64) ([]model.Object, error)
	// BulkChildrenAllowed reports whether the actor may bulk-generate
	// tickets for this object as part of a child batch.
	BulkChildrenAllowed(ctx context.Context, actor *model.Person, obj model.Object) (bool, error)
}

// Registry maps object type names to their integration handler. Handlers
// are registered explicitly at startup. Types that carry a ticket mirror
// but build no tickets of their own (audits) are registered as tracked
// only; they are valid parents for bulk child generation.
type Registry struct {
	handlers map[string]Handler
	tracked  map[string]struct{}
}

// NewHandlerRegistry returns an empty handler registry.
func NewHandlerRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{},
		tracked:  map[string]struct{}{},
	}
}

// Register binds a handler to an object type. The type is also marked
// tracked.
func (r *Registry) Register(objectType string, h Handler) {
	r.handlers[objectType] = h
	r.tracked[objectType] = struct{}{}
}

// RegisterTracked marks a type as ticket-bearing without binding a
// handler to it.
func (r *Registry) RegisterTracked(objectType string) {
	r.tracked[objectType] = struct{}{}
}

// Handler returns the handler for a type.
func (r *Registry) Handler(objectType string) (Handler, bool) {
	h, ok := r.handlers[objectType]
	return h, ok
}

// Known reports whether a type has an integration handler.
func (r *Registry) Known(objectType string) bool {
	_, ok := r.handlers[objectType]
	return ok
}

// Tracked reports whether a type carries a ticket mirror.
func (r *Registry) Tracked(objectType string) bool {
	_, ok := r.tracked[objectType]
	return ok
}

// AssessmentHandler is the integration handler for assessments. Ticket
// defaults (component, hotlist, type, priority, severity) come from the
// audit's ticket mirror; people come from the batch people cache.
type AssessmentHandler struct {
	objects store.ObjectStore
	people  store.PeopleStore
	baseURL string
}

// NewAssessmentHandler creates the assessment integration handler. baseURL
// is the address of this application, used in ticket comments.
func NewAssessmentHandler(objects store.ObjectStore, people store.PeopleStore, baseURL string) *AssessmentHandler {
	return &AssessmentHandler{objects: objects, people: people, baseURL: baseURL}
}

func (h *AssessmentHandler) PrepareIssue(ctx context.Context, obj model.Object, people *PeopleCache) (*tracker.IssuePayload, error) {
	asmt, ok := obj.(*model.Assessment)
	if !ok {
		return nil, fmt.Errorf("assessment handler got %s", obj.ObjectType())
	}
	// Without audit tracker defaults there is no component to file the
	// ticket under; the object is skipped, not failed.
	if asmt.Audit == nil || asmt.Audit.Ticket == nil {
		return nil, nil
	}
	defaults := asmt.Audit.Ticket

	reporters, err := people.Emails(model.Key(asmt.Audit), roleAuditCaptains)
	if err != nil {
		return nil, err
	}
	ccs, err := people.Emails(model.Key(asmt), roleAssignees)
	if err != nil {
		return nil, err
	}

	// The first assignee after lexicographic sort becomes the ticket
	// assignee and is removed from the cc list.
	assignee := ""
	if len(ccs) > 0 {
		assignee = ccs[0]
		ccs = ccs[1:]
	}
	reporter := ""
	if len(reporters) > 0 {
		reporter = reporters[0]
	}

	var hotlistIDs []int64
	if defaults.HotlistID != 0 {
		hotlistIDs = []int64{defaults.HotlistID}
	}

	return &tracker.IssuePayload{
		ComponentID: defaults.ComponentID,
		HotlistIDs:  hotlistIDs,
		Title:       asmt.Title,
		Type:        defaults.IssueType,
		Priority:    defaults.IssuePriority,
		Severity:    defaults.IssueSeverity,
		Reporter:    reporter,
		Assignee:    assignee,
		Verifier:    assignee,
		CCs:         ccs,
		Comment:     h.assessmentComment(asmt),
		Status:      trackerStatuses[asmt.Status],
	}, nil
}

func (h *AssessmentHandler) LoadChildren(ctx context.Context, parentID int64) ([]model.Object, error) {
	assessments, err := h.objects.LoadAuditAssessments(ctx, parentID)
	if err != nil {
		return nil, err
	}
	objects := make([]model.Object, 0, len(assessments))
	for _, asmt := range assessments {
		objects = append(objects, asmt)
	}
	return objects, nil
}

// BulkChildrenAllowed requires the actor to be a captain of the
// assessment's audit.
func (h *AssessmentHandler) BulkChildrenAllowed(ctx context.Context, actor *model.Person, obj model.Object) (bool, error) {
	asmt, ok := obj.(*model.Assessment)
	if !ok || actor == nil {
		return false, nil
	}
	roles, err := h.people.RolesFor(ctx, actor.ID, "Audit", asmt.AuditID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role == roleAuditCaptains {
			return true, nil
		}
	}
	return false, nil
}

func (h *AssessmentHandler) assessmentComment(asmt *model.Assessment) string {
	comments := []string{
		fmt.Sprintf("This bug was auto-generated to track a GRC assessment. "+
			"Use %s/assessments/%d to collaborate on it.", h.baseURL, asmt.ID),
	}
	if asmt.TestPlan != "" {
		comments = append(comments,
			"Following is the assessment procedure:",
			strings.TrimSpace(asmt.TestPlan),
		)
	}
	return strings.Join(comments, "\n")
}

// IssueHandler is the integration handler for standalone issues. Issue
// tickets use the object's own mirror as defaults and the Admin role as
// the recipient list.
type IssueHandler struct {
	baseURL string
}

// NewIssueHandler creates the issue integration handler.
func NewIssueHandler(baseURL string) *IssueHandler {
	return &IssueHandler{baseURL: baseURL}
}

func (h *IssueHandler) PrepareIssue(ctx context.Context, obj model.Object, people *PeopleCache) (*tracker.IssuePayload, error) {
	issue, ok := obj.(*model.Issue)
	if !ok {
		return nil, fmt.Errorf("issue handler got %s", obj.ObjectType())
	}
	if issue.Ticket == nil {
		return nil, nil
	}
	defaults := issue.Ticket

	ccs, err := people.Emails(model.Key(issue), roleAdmin)
	if err != nil {
		return nil, err
	}
	assignee := ""
	if len(ccs) > 0 {
		assignee = ccs[0]
		ccs = ccs[1:]
	}

	var hotlistIDs []int64
	if defaults.HotlistID != 0 {
		hotlistIDs = []int64{defaults.HotlistID}
	}

	return &tracker.IssuePayload{
		ComponentID: defaults.ComponentID,
		HotlistIDs:  hotlistIDs,
		Title:       issue.Title,
		Type:        defaults.IssueType,
		Priority:    defaults.IssuePriority,
		Severity:    defaults.IssueSeverity,
		Reporter:    assignee,
		Assignee:    assignee,
		Verifier:    assignee,
		CCs:         ccs,
		Comment: fmt.Sprintf("This bug was auto-generated to track a GRC issue. "+
			"Use %s/issues/%d to collaborate on it.", h.baseURL, issue.ID),
		Status: trackerStatuses[issue.Status],
	}, nil
}

// LoadChildren is not supported for issues: they have no tracked children.
func (h *IssueHandler) LoadChildren(ctx context.Context, parentID int64) ([]model.Object, error) {
	return nil, fmt.Errorf("issues have no tracked children")
}

func (h *IssueHandler) BulkChildrenAllowed(ctx context.Context, actor *model.Person, obj model.Object) (bool, error) {
	return false, nil
}
