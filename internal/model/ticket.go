package model

// TicketMirror is the local persisted mirror of a remote ticket. One row
// exists per tracked object; it is created empty when the object becomes
// trackable and overwritten in bulk whenever a sync batch succeeds.
type TicketMirror struct {
	ObjectType    string
	ObjectID      int64
	Enabled       bool
	Title         string
	ComponentID   int64
	HotlistID     int64
	IssueType     string
	IssuePriority string
	IssueSeverity string
	Assignee      string
	CCList        string
	IssueID       int64
	IssueURL      string
	ContextID     *int64
}

// Linked reports whether the mirror is bound to a remote issue.
func (m *TicketMirror) Linked() bool {
	return m != nil && m.IssueID != 0
}

// Key returns the (object type, object id) key of the mirror.
func (m *TicketMirror) Key() ObjectKey {
	return ObjectKey{Type: m.ObjectType, ID: m.ObjectID}
}

// LogJSON returns the revision snapshot of the mirror state.
func (m *TicketMirror) LogJSON() map[string]any {
	return map[string]any{
		"object_type":    m.ObjectType,
		"object_id":      m.ObjectID,
		"enabled":        m.Enabled,
		"title":          m.Title,
		"component_id":   m.ComponentID,
		"hotlist_id":     m.HotlistID,
		"issue_type":     m.IssueType,
		"issue_priority": m.IssuePriority,
		"issue_severity": m.IssueSeverity,
		"assignee":       m.Assignee,
		"cc_list":        m.CCList,
		"issue_id":       m.IssueID,
		"issue_url":      m.IssueURL,
	}
}
