package models

// JobStatus is the lifecycle state of a background job.
type JobStatus string

// Job status constants. Transitions only move forward through the
// state machine; Canceled is reachable from any non-terminal state.
const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusInitializing JobStatus = "initializing"
	JobStatusValidating   JobStatus = "validating"
	JobStatusDownloading  JobStatus = "downloading"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCanceled     JobStatus = "canceled"
)

// IsTerminal reports whether the status ends the job lifecycle.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// ValidTransition enforces the allowed state machine edges.
func ValidTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	// Failure and cancellation are reachable from every live state.
	if to == JobStatusFailed || to == JobStatusCanceled {
		return true
	}
	switch from {
	case JobStatusQueued:
		return to == JobStatusInitializing
	case JobStatusInitializing:
		return to == JobStatusValidating
	case JobStatusValidating:
		return to == JobStatusDownloading || to == JobStatusProcessing
	case JobStatusDownloading:
		return to == JobStatusProcessing || to == JobStatusCompleted
	case JobStatusProcessing:
		return to == JobStatusCompleted
	default:
		return false
	}
}
