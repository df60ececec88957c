package domain

import "time"

// JobState represents the lifecycle state of an ingest job.
// Values include JobStatePending, JobStateRunning, JobStateSuccess, and JobStateFailure.
type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateRunning JobState = "RUNNING"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailure JobState = "FAILURE"
)

// IsTerminal reports whether no further transition may leave the state.
func (s JobState) IsTerminal() bool {
	return s == JobStateSuccess || s == JobStateFailure
}

// IsValid reports whether s is one of the known job states.
func (s JobState) IsValid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateSuccess, JobStateFailure:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// PENDING -> RUNNING -> {SUCCESS | FAILURE}; nothing skips RUNNING and
// nothing leaves a terminal state.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStatePending:
		return next == JobStateRunning
	case JobStateRunning:
		return next == JobStateSuccess || next == JobStateFailure
	default:
		return false
	}
}

// Job represents one asynchronous ingestion of a single uploaded file.
type Job struct {
	ID          string     `gorm:"type:text;primaryKey" json:"job_id"`
	State       JobState   `gorm:"type:text;not null;index:idx_ingest_jobs_state;default:PENDING" json:"state"`
	FileRef     string     `gorm:"type:text;not null" json:"file_ref"`
	FileName    string     `gorm:"type:text" json:"file_name"`
	Owner       string     `gorm:"type:text;index" json:"owner,omitempty"`
	RecordCount int        `gorm:"default:0" json:"record_count"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "ingest_jobs"
}

// Clone returns a copy that shares no pointers with j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
