package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a job (or other resource) does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError describes a bad upload rejected before any job is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ParseError describes why an XML batch could not be turned into positions.
// Index is the 1-based InsertOne element, or 0 when the document itself is broken.
type ParseError struct {
	Index  int
	Field  string
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Index > 0 {
		msg = fmt.Sprintf("InsertOne[%d]: %s", e.Index, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return "parse error: " + msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// PersistenceError is returned when the store rejects a batch. The batch was rolled back.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %v", e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// StateError reports an illegal job transition. It indicates a bug.
type StateError struct {
	JobID string
	From  JobState
	To    JobState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("job %s: illegal transition %s -> %s", e.JobID, e.From, e.To)
}
