package model

// Person is a user known to the system.
type Person struct {
	ID    int64
	Name  string
	Email string
}

// TrackedObject is one unit of work for bulk ticket synchronization: a
// domain object plus optional hotlist and component overrides.
type TrackedObject struct {
	Object      Object
	HotlistIDs  []int64
	ComponentID int64
}

// NewTrackedObject builds a TrackedObject carrying the per-request hotlist
// and component overrides.
func NewTrackedObject(obj Object, hotlistIDs []int64, componentID int64) TrackedObject {
	return TrackedObject{
		Object:      obj,
		HotlistIDs:  hotlistIDs,
		ComponentID: componentID,
	}
}
