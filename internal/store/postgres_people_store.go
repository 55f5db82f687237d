package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// PostgresPeopleStore implements PeopleStore for PostgreSQL.
type PostgresPeopleStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresPeopleStore creates a new PostgreSQL people store.
func NewPostgresPeopleStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresPeopleStore {
	return &PostgresPeopleStore{pool: pool, logger: logger}
}

// GetPerson retrieves one person by id.
func (s *PostgresPeopleStore) GetPerson(ctx context.Context, id int64) (*model.Person, error) {
	query := `SELECT id, name, email FROM people WHERE id = $1`

	var person model.Person
	err := s.pool.QueryRow(ctx, query, id).Scan(&person.ID, &person.Name, &person.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &person, nil
}

// GetPersonByEmail retrieves one person by email.
func (s *PostgresPeopleStore) GetPersonByEmail(ctx context.Context, email string) (*model.Person, error) {
	query := `SELECT id, name, email FROM people WHERE email = $1`

	var person model.Person
	err := s.pool.QueryRow(ctx, query, email).Scan(&person.ID, &person.Name, &person.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person by email: %w", err)
	}
	return &person, nil
}

// FindRoleEmails resolves the exact set of grant scopes in one query
// joining the access-control list, role and person tables.
func (s *PostgresPeopleStore) FindRoleEmails(ctx context.Context, keys []RoleKey) ([]RoleEmail, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT acl.object_type, acl.object_id, acr.name, p.email
		FROM access_control_list acl
		JOIN access_control_roles acr ON acr.id = acl.ac_role_id
		JOIN people p ON p.id = acl.person_id
		WHERE (acl.object_type, acl.object_id, acr.name) IN (`)

	args := make([]any, 0, len(keys)*3)
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, key.ObjectType, key.ObjectID, key.RoleName)
	}
	sb.WriteString(")")

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query role emails: %w", err)
	}
	defer rows.Close()

	var result []RoleEmail
	for rows.Next() {
		var entry RoleEmail
		if err := rows.Scan(&entry.Key.ObjectType, &entry.Key.ObjectID, &entry.Key.RoleName, &entry.Email); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// RolesFor returns the role names a person holds on one object.
func (s *PostgresPeopleStore) RolesFor(ctx context.Context, personID int64, objectType string, objectID int64) ([]string, error) {
	query := `
		SELECT acr.name
		FROM access_control_list acl
		JOIN access_control_roles acr ON acr.id = acl.ac_role_id
		WHERE acl.person_id = $1 AND acl.object_type = $2 AND acl.object_id = $3
	`

	rows, err := s.pool.Query(ctx, query, personID, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}
