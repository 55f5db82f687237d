// Package store contains the persistence interfaces and their PostgreSQL
// and Redis implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RoleKey identifies one access-control grant scope.
type RoleKey struct {
	ObjectType string
	ObjectID   int64
	RoleName   string
}

// RoleEmail is one resolved (grant scope, email) pair.
type RoleEmail struct {
	Key   RoleKey
	Email string
}

// PeopleStore resolves people and access-control grants.
type PeopleStore interface {
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
	GetPersonByEmail(ctx context.Context, email string) (*model.Person, error)
	// FindRoleEmails resolves all given grant scopes in one query.
	FindRoleEmails(ctx context.Context, keys []RoleKey) ([]RoleEmail, error)
	// RolesFor returns the role names a person holds on an object.
	RolesFor(ctx context.Context, personID int64, objectType string, objectID int64) ([]string, error)
}

// ObjectStore loads domain objects.
type ObjectStore interface {
	// LoadTracked returns objects of one type joined to their ticket
	// mirror, restricted to mirrors that are linked (remote issue id set)
	// or unlinked. Objects without a mirror row are not returned.
	LoadTracked(ctx context.Context, objectType string, ids []int64, linked bool) ([]model.Object, error)
	// LoadAuditAssessments returns the unlinked assessments of one audit,
	// with the audit and its ticket mirror attached.
	LoadAuditAssessments(ctx context.Context, auditID int64) ([]*model.Assessment, error)
	// LoadForIndex returns objects of one type with the attributes the
	// record builder needs.
	LoadForIndex(ctx context.Context, objectType string, ids []int64) ([]model.Object, error)
}

// TicketStore persists ticket mirrors.
type TicketStore interface {
	// BulkUpdate overwrites the mirrors for all given rows in one
	// transaction. Partial application is never left behind.
	BulkUpdate(ctx context.Context, mirrors []*model.TicketMirror) error
	GetMirrors(ctx context.Context, keys []model.ObjectKey) ([]*model.TicketMirror, error)
}

// AuditLogStore writes events and revisions.
type AuditLogStore interface {
	CreateEvent(ctx context.Context, event *model.Event) (int64, error)
	CreateRevisions(ctx context.Context, revisions []*model.Revision) error
}

// JobStore tracks long-running background jobs for the health sweep.
type JobStore interface {
	ListActiveJobs(ctx context.Context) ([]*model.BackgroundJob, error)
	MarkFailed(ctx context.Context, jobID int64) error
}

// IdempotencyStore caches responses of replay-safe POST endpoints.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
