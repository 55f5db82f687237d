package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
)

// ErrNotResolved is returned when the cache is read before Resolve ran.
var ErrNotResolved = errors.New("people cache read before resolve")

// RoleEmailFinder resolves a set of grant scopes in one query.
type RoleEmailFinder interface {
	FindRoleEmails(ctx context.Context, keys []store.RoleKey) ([]store.RoleEmail, error)
}

// PeopleCache collects the (object type, object id, role name) scopes one
// sync batch needs and resolves them all in a single query. It is scoped
// to one batch: registration happens first, then one Resolve call, after
// which the cache is read-only.
type PeopleCache struct {
	finder   RoleEmailFinder
	pending  map[store.RoleKey]struct{}
	emails   map[model.ObjectKey]map[string][]string
	resolved bool
}

// NewPeopleCache creates an empty cache.
func NewPeopleCache(finder RoleEmailFinder) *PeopleCache {
	return &PeopleCache{
		finder:  finder,
		pending: map[store.RoleKey]struct{}{},
		emails:  map[model.ObjectKey]map[string][]string{},
	}
}

// Register queues the role scopes relevant to one object. No I/O happens
// here. An assessment needs its own assignees plus the captains of its
// audit; an issue needs its admins.
func (c *PeopleCache) Register(obj model.Object) {
	switch typed := obj.(type) {
	case *model.Assessment:
		c.add("Assessment", typed.ID, roleAssignees)
		if typed.Audit != nil {
			c.add("Audit", typed.Audit.ID, roleAuditCaptains)
		}
	case *model.Issue:
		c.add("Issue", typed.ID, roleAdmin)
	}
}

func (c *PeopleCache) add(objectType string, objectID int64, role string) {
	c.pending[store.RoleKey{ObjectType: objectType, ObjectID: objectID, RoleName: role}] = struct{}{}
}

// Resolve runs the single batched query for every registered scope. An
// empty pending set issues no query.
func (c *PeopleCache) Resolve(ctx context.Context) error {
	if c.resolved {
		return errors.New("people cache already resolved")
	}
	c.resolved = true
	if len(c.pending) == 0 {
		return nil
	}

	keys := make([]store.RoleKey, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ObjectType != keys[j].ObjectType {
			return keys[i].ObjectType < keys[j].ObjectType
		}
		if keys[i].ObjectID != keys[j].ObjectID {
			return keys[i].ObjectID < keys[j].ObjectID
		}
		return keys[i].RoleName < keys[j].RoleName
	})

	entries, err := c.finder.FindRoleEmails(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to resolve people cache: %w", err)
	}

	for _, entry := range entries {
		objKey := model.ObjectKey{Type: entry.Key.ObjectType, ID: entry.Key.ObjectID}
		if c.emails[objKey] == nil {
			c.emails[objKey] = map[string][]string{}
		}
		c.emails[objKey][entry.Key.RoleName] = append(c.emails[objKey][entry.Key.RoleName], entry.Email)
	}
	for _, roles := range c.emails {
		for role := range roles {
			sort.Strings(roles[role])
		}
	}
	return nil
}

// Emails returns the sorted emails of one role on one object. Reading
// before Resolve is a programming error and fails loudly.
func (c *PeopleCache) Emails(key model.ObjectKey, role string) ([]string, error) {
	if !c.resolved {
		return nil, ErrNotResolved
	}
	emails := c.emails[key][role]
	result := make([]string, len(emails))
	copy(result, emails)
	return result, nil
}
