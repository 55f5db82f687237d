package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

const sortSubpropKey = "__sort__"

// PersonStore resolves people by id.
type PersonStore interface {
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
}

// Builder converts domain objects into index records. It memoizes person
// lookups for the duration of one indexing run, so a person referenced by
// many objects is fetched once.
type Builder struct {
	registry *Registry
	people   PersonStore
	cache    map[int64]model.Person
	logger   *zap.Logger
}

// NewBuilder creates a record builder with a fresh per-run people cache.
func NewBuilder(registry *Registry, people PersonStore, logger *zap.Logger) *Builder {
	return &Builder{
		registry: registry,
		people:   people,
		cache:    map[int64]model.Person{},
		logger:   logger,
	}
}

// Person returns a person by id, hitting the store only on cache miss.
func (b *Builder) Person(ctx context.Context, id int64) (model.Person, error) {
	if person, ok := b.cache[id]; ok {
		return person, nil
	}
	person, err := b.people.GetPerson(ctx, id)
	if err != nil {
		return model.Person{}, fmt.Errorf("failed to resolve person %d: %w", id, err)
	}
	b.cache[id] = *person
	return *person, nil
}

// personSubprops returns the structured sub-properties for one person.
func (b *Builder) personSubprops(ctx context.Context, id int64) (map[string]string, error) {
	person, err := b.Person(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		fmt.Sprintf("%d-name", person.ID):      person.Name,
		fmt.Sprintf("%d-user_name", person.ID): localPart(person.Email),
		fmt.Sprintf("%d-email", person.ID):     person.Email,
	}, nil
}

// sortSubprop computes the deterministic sorting key for a people list:
// the colon-joined, lexicographically sorted email local-parts.
func (b *Builder) sortSubprop(ctx context.Context, refs []model.PersonRef) (string, error) {
	if len(refs) == 0 {
		return "", nil
	}
	values := make([]string, 0, len(refs))
	for _, ref := range refs {
		person, err := b.Person(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		values = append(values, localPart(person.Email))
	}
	sort.Strings(values)
	return strings.Join(values, ":"), nil
}

// BuildRecord generates the index record for an object.
func (b *Builder) BuildRecord(ctx context.Context, obj model.Object) (*Record, error) {
	record := &Record{
		Key:        obj.ObjectID(),
		Type:       obj.ObjectType(),
		ContextID:  obj.ObjectContext(),
		Properties: map[string]map[string]string{},
	}

	if snap, ok := obj.(*model.Snapshot); ok {
		b.snapshotProperties(snap, record.Properties)
		return record, nil
	}

	for _, attr := range b.registry.Attrs(obj.ObjectType()) {
		props, err := attr.Properties(ctx, b, obj)
		if err != nil {
			return nil, err
		}
		mergeProperties(record.Properties, props)
	}

	if attributable, ok := obj.(model.CustomAttributable); ok {
		for _, value := range attributable.CustomAttributeValues() {
			props, err := b.customAttributeProperties(ctx, value)
			if err != nil {
				return nil, err
			}
			mergeProperties(record.Properties, props)
		}
	}
	return record, nil
}

// snapshotProperties indexes the captured content blob under the child
// type's scalar attribute names. An unknown child type yields an empty
// property set, not a failure.
func (b *Builder) snapshotProperties(snap *model.Snapshot, dst map[string]map[string]string) {
	names := b.registry.ScalarNames(snap.ChildType)
	if len(names) == 0 {
		b.logger.Warn("Snapshot child type has no indexable attributes",
			zap.Int64("snapshot_id", snap.ID),
			zap.String("child_type", snap.ChildType))
		return
	}
	for _, name := range names {
		dst[name] = map[string]string{"": stringify(snap.Content[name])}
	}
}

// customAttributeProperties indexes a custom attribute value under the
// attribute's display title on the owning object's record.
func (b *Builder) customAttributeProperties(ctx context.Context, value model.CustomAttributeValue) (map[string]map[string]string, error) {
	if value.AttributeType == model.AttributeTypePerson && value.PersonID != 0 {
		subs, err := b.personSubprops(ctx, value.PersonID)
		if err != nil {
			return nil, err
		}
		sortKey, err := b.sortSubprop(ctx, []model.PersonRef{{ID: value.PersonID}})
		if err != nil {
			return nil, err
		}
		subs[sortSubpropKey] = sortKey
		return map[string]map[string]string{value.Title: subs}, nil
	}
	return map[string]map[string]string{value.Title: {"": value.Value}}, nil
}

func mergeProperties(dst, src map[string]map[string]string) {
	for name, subs := range src {
		if existing, ok := dst[name]; ok {
			for k, v := range subs {
				existing[k] = v
			}
			continue
		}
		dst[name] = subs
	}
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
