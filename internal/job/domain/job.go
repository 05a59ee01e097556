// Package domain defines long-running server jobs and their lifecycle.
// Jobs are ephemeral: they exist only while an action handler waits for them.
package domain

import "strings"

// Kind identifies which server endpoint family a job belongs to.
type Kind string

const (
	KindExport    Kind = "export"
	KindImport    Kind = "import"
	KindPublish   Kind = "publish"
	KindUnpublish Kind = "unpublish"
)

// Status is the normalized job state.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// ParseStatus normalizes a server status string. Unknown values are treated as in progress so
// the poller keeps polling until its iteration budget runs out.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUBMITTED", "CREATED", "PENDING", "QUEUED":
		return StatusSubmitted
	case "SUCCESS", "SUCCEEDED", "COMPLETED", "DONE":
		return StatusSuccess
	case "FAILED", "FAILURE", "ERROR", "ABORTED":
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// IsTerminal reports whether polling can stop.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Handle identifies a submitted job.
type Handle struct {
	ID   string
	Kind Kind
}

// Job is a status snapshot.
type Job struct {
	ID               string
	Kind             Kind
	Status           Status
	Progress         int    // Percent complete when the server reports it
	Result           string // Present only on success, e.g. an export download link
	ErrorDescription string // Present only on failure
}
