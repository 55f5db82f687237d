package model

import "time"

// Event actions.
const (
	EventActionBulk = "BULK"
)

// Revision actions.
const (
	RevisionActionModified = "modified"
)

// Event records that a bulk action happened, carrying the actor. Revisions
// produced by the action reference the event.
type Event struct {
	ID           int64
	ModifiedByID int64
	Action       string
	ResourceID   int64
	ResourceType string
	CreatedAt    time.Time
}

// Revision captures a JSON snapshot of one object's ticket-mirror state at
// the moment a bulk action committed.
type Revision struct {
	ID           int64
	ResourceID   int64
	ResourceType string
	EventID      int64
	Action       string
	Content      []byte
	ModifiedByID int64
	ContextID    *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Background job statuses and types used by the health-check sweep.
const (
	JobStatusAnalysis   = "Analysis"
	JobStatusInProgress = "In Progress"
	JobStatusFinished   = "Finished"
	JobStatusFailed     = "Failed"

	JobTypeImport = "import"
	JobTypeExport = "export"
)

// BackgroundJob is a long-running import/export job executed through the
// external task queue.
type BackgroundJob struct {
	ID             int64
	JobType        string
	Title          string
	Status         string
	TaskName       string
	CreatedByEmail string
}

// Active reports whether the job is still expected to have a live task.
func (j *BackgroundJob) Active() bool {
	return j.Status == JobStatusAnalysis || j.Status == JobStatusInProgress
}
