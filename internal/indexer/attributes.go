package indexer

import (
	"context"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// Attribute produces the index properties for one declared full-text
// attribute of an object.
type Attribute interface {
	// Properties expands the attribute into property/sub-key/value entries.
	Properties(ctx context.Context, b *Builder, obj model.Object) (map[string]map[string]string, error)
}

// ScalarAttr indexes a plain string field under the empty sub-key.
type ScalarAttr struct {
	Name string
	Get  func(obj model.Object) string
}

func (a ScalarAttr) Properties(_ context.Context, _ *Builder, obj model.Object) (map[string]map[string]string, error) {
	return map[string]map[string]string{
		a.Name: {"": a.Get(obj)},
	}, nil
}

// PersonAttr indexes a single person reference as structured sub-properties
// plus the sorting sub-property.
type PersonAttr struct {
	Name string
	Get  func(obj model.Object) *model.PersonRef
}

func (a PersonAttr) Properties(ctx context.Context, b *Builder, obj model.Object) (map[string]map[string]string, error) {
	ref := a.Get(obj)
	if ref == nil {
		return nil, nil
	}
	subs, err := b.personSubprops(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	sortKey, err := b.sortSubprop(ctx, []model.PersonRef{*ref})
	if err != nil {
		return nil, err
	}
	subs[sortSubpropKey] = sortKey
	return map[string]map[string]string{a.Name: subs}, nil
}

// PeopleListAttr indexes a list of person references. All people share one
// property; the sorting sub-property is the colon-joined sorted set of
// email local-parts.
type PeopleListAttr struct {
	Name string
	Get  func(obj model.Object) []model.PersonRef
}

func (a PeopleListAttr) Properties(ctx context.Context, b *Builder, obj model.Object) (map[string]map[string]string, error) {
	refs := a.Get(obj)
	subs := map[string]string{}
	for _, ref := range refs {
		personSubs, err := b.personSubprops(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		for k, v := range personSubs {
			subs[k] = v
		}
	}
	sortKey, err := b.sortSubprop(ctx, refs)
	if err != nil {
		return nil, err
	}
	subs[sortSubpropKey] = sortKey
	return map[string]map[string]string{a.Name: subs}, nil
}

// Registry maps object types to their declared full-text attributes.
// Handlers are registered explicitly at startup.
type Registry struct {
	attrs map[string][]Attribute
}

// NewRegistry returns an empty attribute registry.
func NewRegistry() *Registry {
	return &Registry{attrs: map[string][]Attribute{}}
}

// Register declares the full-text attributes of an object type.
func (r *Registry) Register(objectType string, attrs ...Attribute) {
	r.attrs[objectType] = append(r.attrs[objectType], attrs...)
}

// Attrs returns the attributes declared for a type, nil when unknown.
func (r *Registry) Attrs(objectType string) []Attribute {
	return r.attrs[objectType]
}

// Known reports whether a type has declared full-text attributes.
func (r *Registry) Known(objectType string) bool {
	_, ok := r.attrs[objectType]
	return ok
}

// ScalarNames returns the names of the scalar attributes of a type. Used
// for snapshots, which index a captured content blob under the original
// type's scalar attribute names.
func (r *Registry) ScalarNames(objectType string) []string {
	var names []string
	for _, attr := range r.attrs[objectType] {
		if scalar, ok := attr.(ScalarAttr); ok {
			names = append(names, scalar.Name)
		}
	}
	return names
}

// DefaultRegistry declares the full-text attributes of the built-in types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("Audit",
		ScalarAttr{Name: "title", Get: func(obj model.Object) string { return obj.(*model.Audit).Title }},
		ScalarAttr{Name: "description", Get: func(obj model.Object) string { return obj.(*model.Audit).Description }},
		ScalarAttr{Name: "status", Get: func(obj model.Object) string { return obj.(*model.Audit).Status }},
	)
	r.Register("Assessment",
		ScalarAttr{Name: "title", Get: func(obj model.Object) string { return obj.(*model.Assessment).Title }},
		ScalarAttr{Name: "description", Get: func(obj model.Object) string { return obj.(*model.Assessment).Description }},
		ScalarAttr{Name: "status", Get: func(obj model.Object) string { return obj.(*model.Assessment).Status }},
		ScalarAttr{Name: "test_plan", Get: func(obj model.Object) string { return obj.(*model.Assessment).TestPlan }},
		PeopleListAttr{Name: "assignees", Get: func(obj model.Object) []model.PersonRef { return obj.(*model.Assessment).Assignees }},
		PeopleListAttr{Name: "creators", Get: func(obj model.Object) []model.PersonRef { return obj.(*model.Assessment).Creators }},
		PeopleListAttr{Name: "verifiers", Get: func(obj model.Object) []model.PersonRef { return obj.(*model.Assessment).Verifiers }},
	)
	r.Register("Issue",
		ScalarAttr{Name: "title", Get: func(obj model.Object) string { return obj.(*model.Issue).Title }},
		ScalarAttr{Name: "description", Get: func(obj model.Object) string { return obj.(*model.Issue).Description }},
		ScalarAttr{Name: "status", Get: func(obj model.Object) string { return obj.(*model.Issue).Status }},
		PeopleListAttr{Name: "admins", Get: func(obj model.Object) []model.PersonRef { return obj.(*model.Issue).Admins }},
	)
	// Snapshots are indexed through the child type's attributes; the type
	// itself is registered so reindex requests for it pass validation.
	r.Register("Snapshot")
	return r
}
