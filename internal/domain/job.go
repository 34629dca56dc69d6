package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrJobNotCompleted  = errors.New("job is not completed")
	ErrEmptyFileKey     = errors.New("file key cannot be empty")
)

// JobSource tells where a job was submitted from
type JobSource string

const (
	JobSourceForm JobSource = "form"
	JobSourceAPI  JobSource = "api"
)

// FileRef points to a file kept in object storage
type FileRef struct {
	Name string `json:"name"` // name given by the user
	Key  string `json:"key"`  // object key
	Size int64  `json:"size"`
}

// Job is one protocol generation: the uploaded inputs and, once rendered, the output
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Status      JobStatus  `json:"status"`
	Source      JobSource  `json:"source"`
	Template    FileRef    `json:"template"`
	Config      FileRef    `json:"config"`
	CSV         *FileRef   `json:"csv,omitempty"`
	Output      *FileRef   `json:"output,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for stored inputs
func NewJob(source JobSource, template, config FileRef, csv *FileRef) (*Job, error) {
	if template.Key == "" || config.Key == "" {
		return nil, ErrEmptyFileKey
	}
	if csv != nil && csv.Key == "" {
		return nil, ErrEmptyFileKey
	}

	now := time.Now()

	return &Job{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		Source:    source,
		Template:  template,
		Config:    config,
		CSV:       csv,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkProcessing moves a pending job to processing
func (j *Job) MarkProcessing() error {
	if j.Status != JobStatusPending {
		return ErrInvalidJobStatus
	}
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted records the generated protocol
func (j *Job) MarkCompleted(output FileRef, warnings []string) error {
	if j.Status != JobStatusProcessing {
		return ErrInvalidJobStatus
	}
	if output.Key == "" {
		return ErrEmptyFileKey
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Output = &output
	j.Warnings = warnings
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// MarkFailed records why the job could not be rendered
func (j *Job) MarkFailed(errMsg string) error {
	if j.Status != JobStatusProcessing && j.Status != JobStatusPending {
		return ErrInvalidJobStatus
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// ObjectKeys lists every stored object that belongs to the job
func (j *Job) ObjectKeys() []string {
	keys := []string{j.Template.Key, j.Config.Key}
	if j.CSV != nil {
		keys = append(keys, j.CSV.Key)
	}
	if j.Output != nil {
		keys = append(keys, j.Output.Key)
	}
	return keys
}
