// Package permission decides whether an actor may update a domain object.
package permission

import (
	"context"
	"fmt"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
)

// Oracle answers update-permission questions for bulk operations.
type Oracle interface {
	CanUpdate(ctx context.Context, actor *model.Person, obj model.Object) (bool, error)
}

// updateRoles lists, per object type, the roles that grant update rights.
var updateRoles = map[string][]string{
	"Assessment": {"Assignees", "Creators", "Verifiers"},
	"Issue":      {"Admin", "Primary Contacts"},
	"Audit":      {"Audit Captains", "Auditors"},
}

// ACLOracle grants update permission to superusers and to actors holding
// an updater role on the object.
type ACLOracle struct {
	people     store.PeopleStore
	superusers map[string]struct{}
}

// NewACLOracle creates a permission oracle backed by the ACL tables.
func NewACLOracle(people store.PeopleStore, superusers []string) *ACLOracle {
	set := make(map[string]struct{}, len(superusers))
	for _, email := range superusers {
		set[email] = struct{}{}
	}
	return &ACLOracle{people: people, superusers: set}
}

// CanUpdate reports whether the actor may update the object.
func (o *ACLOracle) CanUpdate(ctx context.Context, actor *model.Person, obj model.Object) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if _, ok := o.superusers[actor.Email]; ok {
		return true, nil
	}

	allowed := updateRoles[obj.ObjectType()]
	if len(allowed) == 0 {
		return false, nil
	}

	roles, err := o.people.RolesFor(ctx, actor.ID, obj.ObjectType(), obj.ObjectID())
	if err != nil {
		return false, fmt.Errorf("failed to load actor roles: %w", err)
	}
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}
	for _, role := range allowed {
		if _, ok := held[role]; ok {
			return true, nil
		}
	}
	return false, nil
}
