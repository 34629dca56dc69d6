package domain

// JobStatus is the state of a protocol render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"    // inputs stored, waiting for the worker
	JobStatusProcessing JobStatus = "processing" // the worker is rendering
	JobStatusCompleted  JobStatus = "completed"  // protocol generated
	JobStatusFailed     JobStatus = "failed"     // rendering failed
)

// IsValid reports whether the status is known
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsFinal reports whether the job will not change anymore
func (s JobStatus) IsFinal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) String() string {
	return string(s)
}
