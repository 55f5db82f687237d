package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
	"github.com/IlyaTsupryk/ggrc-core/internal/store"
)

// fakeFinder answers FindRoleEmails from a fixed entry list and records
// how it was called.
type fakeFinder struct {
	entries []store.RoleEmail
	calls   int
	keys    []store.RoleKey
}

func (f *fakeFinder) FindRoleEmails(_ context.Context, keys []store.RoleKey) ([]store.RoleEmail, error) {
	f.calls++
	f.keys = keys
	return f.entries, nil
}

func TestPeopleCache_SingleQueryForBatch(t *testing.T) {
	finder := &fakeFinder{entries: []store.RoleEmail{
		{Key: store.RoleKey{ObjectType: "Assessment", ObjectID: 1, RoleName: "Assignees"}, Email: "bob@example.com"},
		{Key: store.RoleKey{ObjectType: "Assessment", ObjectID: 1, RoleName: "Assignees"}, Email: "alice@example.com"},
		{Key: store.RoleKey{ObjectType: "Audit", ObjectID: 10, RoleName: "Audit Captains"}, Email: "carol@example.com"},
	}}
	cache := NewPeopleCache(finder)

	audit := &model.Audit{ID: 10}
	cache.Register(&model.Assessment{ID: 1, Audit: audit})
	cache.Register(&model.Assessment{ID: 2, Audit: audit})
	cache.Register(&model.Issue{ID: 3})

	require.NoError(t, cache.Resolve(context.Background()))
	assert.Equal(t, 1, finder.calls)

	// Two assessments under one audit register the audit scope once.
	assert.Len(t, finder.keys, 4)

	emails, err := cache.Emails(model.ObjectKey{Type: "Assessment", ID: 1}, "Assignees")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, emails)

	captains, err := cache.Emails(model.ObjectKey{Type: "Audit", ID: 10}, "Audit Captains")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, captains)
}

func TestPeopleCache_ReadBeforeResolveFails(t *testing.T) {
	cache := NewPeopleCache(&fakeFinder{})
	cache.Register(&model.Issue{ID: 1})

	_, err := cache.Emails(model.ObjectKey{Type: "Issue", ID: 1}, "Admin")
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestPeopleCache_EmptyPendingSkipsQuery(t *testing.T) {
	finder := &fakeFinder{}
	cache := NewPeopleCache(finder)

	require.NoError(t, cache.Resolve(context.Background()))
	assert.Zero(t, finder.calls)
}

func TestPeopleCache_DoubleResolveFails(t *testing.T) {
	cache := NewPeopleCache(&fakeFinder{})
	require.NoError(t, cache.Resolve(context.Background()))
	assert.Error(t, cache.Resolve(context.Background()))
}

func TestPeopleCache_UnknownScopeIsEmpty(t *testing.T) {
	cache := NewPeopleCache(&fakeFinder{})
	cache.Register(&model.Issue{ID: 1})
	require.NoError(t, cache.Resolve(context.Background()))

	emails, err := cache.Emails(model.ObjectKey{Type: "Issue", ID: 1}, "Admin")
	require.NoError(t, err)
	assert.Empty(t, emails)
}
