package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// PostgresObjectStore implements ObjectStore for PostgreSQL.
type PostgresObjectStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresObjectStore creates a new PostgreSQL object store.
func NewPostgresObjectStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresObjectStore {
	return &PostgresObjectStore{pool: pool, logger: logger}
}

// LoadTracked returns objects of one type joined to their ticket mirror,
// restricted to linked or unlinked mirrors.
func (s *PostgresObjectStore) LoadTracked(ctx context.Context, objectType string, ids []int64, linked bool) ([]model.Object, error) {
	switch objectType {
	case "Assessment":
		assessments, err := s.loadAssessments(ctx, ids, &linked, 0)
		if err != nil {
			return nil, err
		}
		objects := make([]model.Object, 0, len(assessments))
		for _, a := range assessments {
			objects = append(objects, a)
		}
		return objects, nil
	case "Issue":
		return s.loadIssues(ctx, ids, &linked)
	default:
		return nil, fmt.Errorf("type %s is not tracked", objectType)
	}
}

// LoadAuditAssessments returns the unlinked assessments of one audit.
func (s *PostgresObjectStore) LoadAuditAssessments(ctx context.Context, auditID int64) ([]*model.Assessment, error) {
	unlinked := false
	return s.loadAssessments(ctx, nil, &unlinked, auditID)
}

// loadAssessments loads assessments with their own mirror and their audit
// (including the audit's mirror, which supplies ticket defaults).
func (s *PostgresObjectStore) loadAssessments(ctx context.Context, ids []int64, linked *bool, auditID int64) ([]*model.Assessment, error) {
	query := `
		SELECT a.id, a.title, a.description, a.status, a.test_plan, a.context_id, a.audit_id,
		       au.id, au.title, au.description, au.status, au.context_id,
		       it.object_type, it.object_id, it.enabled, it.title, it.component_id, it.hotlist_id,
		       it.issue_type, it.issue_priority, it.issue_severity, it.assignee, it.cc_list,
		       COALESCE(it.issue_id, 0), it.issue_url,
		       ait.component_id, ait.hotlist_id, ait.issue_type, ait.issue_priority, ait.issue_severity
		FROM assessments a
		JOIN audits au ON au.id = a.audit_id
		JOIN issuetracker_issues it
		     ON it.object_type = 'Assessment' AND it.object_id = a.id
		LEFT JOIN issuetracker_issues ait
		     ON ait.object_type = 'Audit' AND ait.object_id = au.id
		WHERE ($1::bigint[] IS NULL OR a.id = ANY($1))
		  AND ($2::bigint = 0 OR a.audit_id = $2)
		  AND ($3::boolean IS NULL OR ($3 AND it.issue_id IS NOT NULL) OR (NOT $3 AND it.issue_id IS NULL))
		ORDER BY a.id
	`

	var idsArg any
	if ids != nil {
		idsArg = ids
	}

	rows, err := s.pool.Query(ctx, query, idsArg, auditID, linked)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*model.Assessment
	for rows.Next() {
		var (
			a           model.Assessment
			audit       model.Audit
			mirror      model.TicketMirror
			auditTicket model.TicketMirror
			auditComp   *int64
			auditHot    *int64
			auditType   *string
			auditPrio   *string
			auditSev    *string
		)
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.Status, &a.TestPlan, &a.ContextID, &a.AuditID,
			&audit.ID, &audit.Title, &audit.Description, &audit.Status, &audit.ContextID,
			&mirror.ObjectType, &mirror.ObjectID, &mirror.Enabled, &mirror.Title,
			&mirror.ComponentID, &mirror.HotlistID,
			&mirror.IssueType, &mirror.IssuePriority, &mirror.IssueSeverity,
			&mirror.Assignee, &mirror.CCList, &mirror.IssueID, &mirror.IssueURL,
			&auditComp, &auditHot, &auditType, &auditPrio, &auditSev,
		); err != nil {
			return nil, err
		}
		if auditComp != nil {
			auditTicket.ObjectType = "Audit"
			auditTicket.ObjectID = audit.ID
			auditTicket.ComponentID = *auditComp
			if auditHot != nil {
				auditTicket.HotlistID = *auditHot
			}
			if auditType != nil {
				auditTicket.IssueType = *auditType
			}
			if auditPrio != nil {
				auditTicket.IssuePriority = *auditPrio
			}
			if auditSev != nil {
				auditTicket.IssueSeverity = *auditSev
			}
			audit.Ticket = &auditTicket
		}
		a.Audit = &audit
		a.Ticket = &mirror
		assessments = append(assessments, &a)
	}
	return assessments, rows.Err()
}

func (s *PostgresObjectStore) loadIssues(ctx context.Context, ids []int64, linked *bool) ([]model.Object, error) {
	query := `
		SELECT i.id, i.title, i.description, i.status, i.context_id,
		       it.object_type, it.object_id, it.enabled, it.title, it.component_id, it.hotlist_id,
		       it.issue_type, it.issue_priority, it.issue_severity, it.assignee, it.cc_list,
		       COALESCE(it.issue_id, 0), it.issue_url
		FROM issues i
		JOIN issuetracker_issues it
		     ON it.object_type = 'Issue' AND it.object_id = i.id
		WHERE i.id = ANY($1)
		  AND ($2::boolean IS NULL OR ($2 AND it.issue_id IS NOT NULL) OR (NOT $2 AND it.issue_id IS NULL))
		ORDER BY i.id
	`

	rows, err := s.pool.Query(ctx, query, ids, linked)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var objects []model.Object
	for rows.Next() {
		var (
			issue  model.Issue
			mirror model.TicketMirror
		)
		if err := rows.Scan(
			&issue.ID, &issue.Title, &issue.Description, &issue.Status, &issue.ContextID,
			&mirror.ObjectType, &mirror.ObjectID, &mirror.Enabled, &mirror.Title,
			&mirror.ComponentID, &mirror.HotlistID,
			&mirror.IssueType, &mirror.IssuePriority, &mirror.IssueSeverity,
			&mirror.Assignee, &mirror.CCList, &mirror.IssueID, &mirror.IssueURL,
		); err != nil {
			return nil, err
		}
		issue.Ticket = &mirror
		objects = append(objects, &issue)
	}
	return objects, rows.Err()
}

// LoadForIndex returns objects of one type with the attributes the record
// builder needs, including their access-control people references.
func (s *PostgresObjectStore) LoadForIndex(ctx context.Context, objectType string, ids []int64) ([]model.Object, error) {
	switch objectType {
	case "Assessment":
		return s.loadAssessmentsForIndex(ctx, ids)
	case "Issue":
		return s.loadIssuesForIndex(ctx, ids)
	case "Audit":
		return s.loadAuditsForIndex(ctx, ids)
	case "Snapshot":
		return s.loadSnapshotsForIndex(ctx, ids)
	default:
		return nil, fmt.Errorf("type %s is not indexable", objectType)
	}
}

func (s *PostgresObjectStore) loadAssessmentsForIndex(ctx context.Context, ids []int64) ([]model.Object, error) {
	query := `
		SELECT id, title, description, status, test_plan, context_id, audit_id
		FROM assessments
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments for indexing: %w", err)
	}
	defer rows.Close()

	byID := map[int64]*model.Assessment{}
	var objects []model.Object
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Status, &a.TestPlan, &a.ContextID, &a.AuditID); err != nil {
			return nil, err
		}
		byID[a.ID] = &a
		objects = append(objects, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := s.loadPeopleRefs(ctx, "Assessment", ids)
	if err != nil {
		return nil, err
	}
	for id, roles := range refs {
		a := byID[id]
		if a == nil {
			continue
		}
		a.Assignees = roles["Assignees"]
		a.Creators = roles["Creators"]
		a.Verifiers = roles["Verifiers"]
	}

	values, err := s.loadCustomAttributeValues(ctx, "Assessment", ids)
	if err != nil {
		return nil, err
	}
	for id, attrs := range values {
		if a := byID[id]; a != nil {
			a.CustomAttributes = attrs
		}
	}
	return objects, nil
}

func (s *PostgresObjectStore) loadIssuesForIndex(ctx context.Context, ids []int64) ([]model.Object, error) {
	query := `
		SELECT id, title, description, status, context_id
		FROM issues
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues for indexing: %w", err)
	}
	defer rows.Close()

	byID := map[int64]*model.Issue{}
	var objects []model.Object
	for rows.Next() {
		var issue model.Issue
		if err := rows.Scan(&issue.ID, &issue.Title, &issue.Description, &issue.Status, &issue.ContextID); err != nil {
			return nil, err
		}
		byID[issue.ID] = &issue
		objects = append(objects, &issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs, err := s.loadPeopleRefs(ctx, "Issue", ids)
	if err != nil {
		return nil, err
	}
	for id, roles := range refs {
		if issue := byID[id]; issue != nil {
			issue.Admins = roles["Admin"]
		}
	}

	values, err := s.loadCustomAttributeValues(ctx, "Issue", ids)
	if err != nil {
		return nil, err
	}
	for id, attrs := range values {
		if issue := byID[id]; issue != nil {
			issue.CustomAttributes = attrs
		}
	}
	return objects, nil
}

func (s *PostgresObjectStore) loadAuditsForIndex(ctx context.Context, ids []int64) ([]model.Object, error) {
	query := `
		SELECT id, title, description, status, context_id
		FROM audits
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits for indexing: %w", err)
	}
	defer rows.Close()

	var objects []model.Object
	for rows.Next() {
		var audit model.Audit
		if err := rows.Scan(&audit.ID, &audit.Title, &audit.Description, &audit.Status, &audit.ContextID); err != nil {
			return nil, err
		}
		objects = append(objects, &audit)
	}
	return objects, rows.Err()
}

func (s *PostgresObjectStore) loadSnapshotsForIndex(ctx context.Context, ids []int64) ([]model.Object, error) {
	query := `
		SELECT s.id, s.child_type, s.context_id, r.content
		FROM snapshots s
		JOIN revisions r ON r.id = s.revision_id
		WHERE s.id = ANY($1)
		ORDER BY s.id
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for indexing: %w", err)
	}
	defer rows.Close()

	var objects []model.Object
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.ChildType, &snap.ContextID, &snap.Content); err != nil {
			return nil, err
		}
		objects = append(objects, &snap)
	}
	return objects, rows.Err()
}

// loadPeopleRefs loads the access-control person references of a set of
// objects, grouped by object id and role name.
func (s *PostgresObjectStore) loadPeopleRefs(ctx context.Context, objectType string, ids []int64) (map[int64]map[string][]model.PersonRef, error) {
	query := `
		SELECT acl.object_id, acr.name, acl.person_id
		FROM access_control_list acl
		JOIN access_control_roles acr ON acr.id = acl.ac_role_id
		WHERE acl.object_type = $1 AND acl.object_id = ANY($2)
		ORDER BY acl.person_id
	`

	rows, err := s.pool.Query(ctx, query, objectType, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query people references: %w", err)
	}
	defer rows.Close()

	result := map[int64]map[string][]model.PersonRef{}
	for rows.Next() {
		var objectID, personID int64
		var role string
		if err := rows.Scan(&objectID, &role, &personID); err != nil {
			return nil, err
		}
		if result[objectID] == nil {
			result[objectID] = map[string][]model.PersonRef{}
		}
		result[objectID][role] = append(result[objectID][role], model.PersonRef{ID: personID})
	}
	return result, rows.Err()
}

// loadCustomAttributeValues loads custom attribute values of a set of
// objects, keyed by object id.
func (s *PostgresObjectStore) loadCustomAttributeValues(ctx context.Context, objectType string, ids []int64) (map[int64][]model.CustomAttributeValue, error) {
	query := `
		SELECT cav.attributable_id, cad.title, cad.attribute_type,
		       COALESCE(cav.attribute_value, ''), COALESCE(cav.attribute_object_id, 0)
		FROM custom_attribute_values cav
		JOIN custom_attribute_definitions cad ON cad.id = cav.custom_attribute_id
		WHERE cav.attributable_type = $1 AND cav.attributable_id = ANY($2)
		ORDER BY cav.id
	`

	rows, err := s.pool.Query(ctx, query, objectType, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom attribute values: %w", err)
	}
	defer rows.Close()

	result := map[int64][]model.CustomAttributeValue{}
	for rows.Next() {
		var objectID int64
		var value model.CustomAttributeValue
		if err := rows.Scan(&objectID, &value.Title, &value.AttributeType, &value.Value, &value.PersonID); err != nil {
			return nil, err
		}
		result[objectID] = append(result[objectID], value)
	}
	return result, rows.Err()
}
