// Package model contains the domain types shared by the indexing and
// synchronization layers: tracked objects, people, ticket mirrors and
// audit-log rows.
package model

// ObjectKey identifies a domain object by type name and id.
type ObjectKey struct {
	Type string
	ID   int64
}

// Object is the minimal surface every domain object exposes.
type Object interface {
	ObjectType() string
	ObjectID() int64
	ObjectContext() *int64
}

// Tracked is implemented by objects that carry a local ticket mirror.
type Tracked interface {
	Object
	TicketInfo() *TicketMirror
}

// CustomAttributable is implemented by objects that own user-defined
// attribute values which must be indexed alongside the built-in ones.
type CustomAttributable interface {
	CustomAttributeValues() []CustomAttributeValue
}

// Key returns the (type, id) key for an object.
func Key(obj Object) ObjectKey {
	return ObjectKey{Type: obj.ObjectType(), ID: obj.ObjectID()}
}

// PersonRef is a reference to a person by id. Name and email are resolved
// through the people store when needed.
type PersonRef struct {
	ID int64
}

// CustomAttributeValue is one user-defined attribute value attached to an
// object. Person-typed attributes reference the person by id.
type CustomAttributeValue struct {
	Title         string
	AttributeType string
	Value         string
	PersonID      int64
}

// AttributeTypePerson marks a custom attribute holding a person reference.
const AttributeTypePerson = "Map:Person"

// Audit is a grouping object for assessments. Its ticket mirror supplies
// the default component and hotlist for child assessment tickets.
type Audit struct {
	ID          int64
	Title       string
	Description string
	Status      string
	ContextID   *int64
	Ticket      *TicketMirror
}

func (a *Audit) ObjectType() string        { return "Audit" }
func (a *Audit) ObjectID() int64           { return a.ID }
func (a *Audit) ObjectContext() *int64     { return a.ContextID }
func (a *Audit) TicketInfo() *TicketMirror { return a.Ticket }

// Assessment is the primary tracked object kind. It belongs to an audit and
// may carry custom attribute values and people references.
type Assessment struct {
	ID               int64
	Title            string
	Description      string
	Status           string
	TestPlan         string
	ContextID        *int64
	AuditID          int64
	Audit            *Audit
	Assignees        []PersonRef
	Creators         []PersonRef
	Verifiers        []PersonRef
	CustomAttributes []CustomAttributeValue
	Ticket           *TicketMirror
}

func (a *Assessment) ObjectType() string        { return "Assessment" }
func (a *Assessment) ObjectID() int64           { return a.ID }
func (a *Assessment) ObjectContext() *int64     { return a.ContextID }
func (a *Assessment) TicketInfo() *TicketMirror { return a.Ticket }

func (a *Assessment) CustomAttributeValues() []CustomAttributeValue {
	return a.CustomAttributes
}

// Issue is a standalone tracked object kind.
type Issue struct {
	ID               int64
	Title            string
	Description      string
	Status           string
	ContextID        *int64
	Admins           []PersonRef
	CustomAttributes []CustomAttributeValue
	Ticket           *TicketMirror
}

func (i *Issue) ObjectType() string        { return "Issue" }
func (i *Issue) ObjectID() int64           { return i.ID }
func (i *Issue) ObjectContext() *int64     { return i.ContextID }
func (i *Issue) TicketInfo() *TicketMirror { return i.Ticket }

func (i *Issue) CustomAttributeValues() []CustomAttributeValue {
	return i.CustomAttributes
}

// Snapshot is an immutable historical capture of another object. It has no
// attributes of its own: the captured content blob is indexed under the
// child type's attribute names.
type Snapshot struct {
	ID        int64
	ChildType string
	ContextID *int64
	Content   map[string]any
}

func (s *Snapshot) ObjectType() string    { return "Snapshot" }
func (s *Snapshot) ObjectID() int64       { return s.ID }
func (s *Snapshot) ObjectContext() *int64 { return s.ContextID }
