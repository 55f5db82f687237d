package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// fakePersonStore serves people from a map and counts store hits.
type fakePersonStore struct {
	people map[int64]model.Person
	calls  int
}

func (f *fakePersonStore) GetPerson(_ context.Context, id int64) (*model.Person, error) {
	f.calls++
	person, ok := f.people[id]
	if !ok {
		return nil, assert.AnError
	}
	return &person, nil
}

func testPeople() *fakePersonStore {
	return &fakePersonStore{people: map[int64]model.Person{
		1: {ID: 1, Name: "Bob Smith", Email: "bob@example.com"},
		2: {ID: 2, Name: "Alice Jones", Email: "alice@example.com"},
	}}
}

func TestBuildRecord_ScalarAttributes(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	record, err := builder.BuildRecord(context.Background(), &model.Audit{
		ID:          7,
		Title:       "Annual audit",
		Description: "Yearly review",
		Status:      "In Progress",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), record.Key)
	assert.Equal(t, "Audit", record.Type)
	assert.Equal(t, "Annual audit", record.Properties["title"][""])
	assert.Equal(t, "Yearly review", record.Properties["description"][""])
	assert.Equal(t, "In Progress", record.Properties["status"][""])
}

func TestBuildRecord_PeopleListSubproperties(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	record, err := builder.BuildRecord(context.Background(), &model.Assessment{
		ID:        3,
		Title:     "Check controls",
		Assignees: []model.PersonRef{{ID: 1}, {ID: 2}},
	})
	require.NoError(t, err)

	assignees := record.Properties["assignees"]
	require.NotNil(t, assignees)
	assert.Equal(t, "Bob Smith", assignees["1-name"])
	assert.Equal(t, "bob", assignees["1-user_name"])
	assert.Equal(t, "bob@example.com", assignees["1-email"])
	assert.Equal(t, "Alice Jones", assignees["2-name"])

	// Sorting key is the colon-joined sorted email local-parts,
	// independent of the order the references arrived in.
	assert.Equal(t, "alice:bob", assignees["__sort__"])
}

func TestBuildRecord_SortKeyOrderIndependent(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	forward, err := builder.BuildRecord(context.Background(), &model.Assessment{
		ID:        1,
		Assignees: []model.PersonRef{{ID: 1}, {ID: 2}},
	})
	require.NoError(t, err)
	reversed, err := builder.BuildRecord(context.Background(), &model.Assessment{
		ID:        2,
		Assignees: []model.PersonRef{{ID: 2}, {ID: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		forward.Properties["assignees"]["__sort__"],
		reversed.Properties["assignees"]["__sort__"])
}

func TestBuildRecord_PersonLookupsMemoized(t *testing.T) {
	people := testPeople()
	builder := NewBuilder(DefaultRegistry(), people, zap.NewNop())

	// The same person appears in three roles; the store is hit once.
	_, err := builder.BuildRecord(context.Background(), &model.Assessment{
		ID:        5,
		Assignees: []model.PersonRef{{ID: 1}},
		Creators:  []model.PersonRef{{ID: 1}},
		Verifiers: []model.PersonRef{{ID: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, people.calls)

	// A second object in the same run reuses the cache.
	_, err = builder.BuildRecord(context.Background(), &model.Assessment{
		ID:        6,
		Assignees: []model.PersonRef{{ID: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, people.calls)
}

func TestBuildRecord_CustomAttributes(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	record, err := builder.BuildRecord(context.Background(), &model.Assessment{
		ID: 9,
		CustomAttributes: []model.CustomAttributeValue{
			{Title: "Severity Level", AttributeType: "Text", Value: "High"},
			{Title: "Reviewer", AttributeType: model.AttributeTypePerson, PersonID: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "High", record.Properties["Severity Level"][""])

	reviewer := record.Properties["Reviewer"]
	require.NotNil(t, reviewer)
	assert.Equal(t, "Alice Jones", reviewer["2-name"])
	assert.Equal(t, "alice", reviewer["2-user_name"])
	assert.Equal(t, "alice", reviewer["__sort__"])
}

func TestBuildRecord_Snapshot(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	ctxID := int64(11)
	record, err := builder.BuildRecord(context.Background(), &model.Snapshot{
		ID:        42,
		ChildType: "Audit",
		ContextID: &ctxID,
		Content: map[string]any{
			"title":         "Captured audit",
			"status":        "Completed",
			"ignored_field": "nope",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Snapshot", record.Type)
	assert.Equal(t, "Captured audit", record.Properties["title"][""])
	assert.Equal(t, "Completed", record.Properties["status"][""])
	// Attributes missing from the content blob index as empty.
	assert.Equal(t, "", record.Properties["description"][""])
	// Fields outside the child type's attribute set are not indexed.
	assert.NotContains(t, record.Properties, "ignored_field")
}

func TestBuildRecord_SnapshotUnknownChildType(t *testing.T) {
	builder := NewBuilder(DefaultRegistry(), testPeople(), zap.NewNop())

	record, err := builder.BuildRecord(context.Background(), &model.Snapshot{
		ID:        43,
		ChildType: "Vanished",
		Content:   map[string]any{"title": "whatever"},
	})
	require.NoError(t, err)
	assert.Empty(t, record.Properties)
}

func TestRecordRows_Deterministic(t *testing.T) {
	record := &Record{
		Key:  1,
		Type: "Audit",
		Properties: map[string]map[string]string{
			"title":  {"": "A"},
			"status": {"": "B"},
		},
	}

	first := record.Rows()
	second := record.Rows()
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, "status", first[0].Property)
	assert.Equal(t, "title", first[1].Property)
}
