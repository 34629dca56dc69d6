package dto

import (
	"time"

	"github.com/plastinin/ot2protocol/internal/domain"
)

// FileResponse describes a stored file. Object keys stay internal.
type FileResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// JobResponse is a protocol job
type JobResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Source      string        `json:"source"`
	Template    FileResponse  `json:"template"`
	Config      FileResponse  `json:"config"`
	CSV         *FileResponse `json:"csv,omitempty"`
	Output      *FileResponse `json:"output,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Warnings    []string      `json:"warnings"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// JobFromDomain converts a job; downloadPath is used for completed jobs
func JobFromDomain(job *domain.Job, downloadPath string) *JobResponse {
	resp := &JobResponse{
		ID:          job.ID.String(),
		Status:      job.Status.String(),
		Source:      string(job.Source),
		Template:    fileFromDomain(job.Template),
		Config:      fileFromDomain(job.Config),
		Warnings:    job.Warnings,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}

	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if job.CSV != nil {
		f := fileFromDomain(*job.CSV)
		resp.CSV = &f
	}
	if job.Output != nil {
		f := fileFromDomain(*job.Output)
		resp.Output = &f
	}
	if job.Status == domain.JobStatusCompleted {
		resp.DownloadURL = downloadPath
	}

	return resp
}

func fileFromDomain(ref domain.FileRef) FileResponse {
	return FileResponse{Name: ref.Name, Size: ref.Size}
}

// JobListResponse is a page of jobs
type JobListResponse struct {
	Jobs       []*JobResponse `json:"jobs"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// JobListFromDomain converts a page of jobs
func JobListFromDomain(result *domain.JobListResult, downloadPath func(*domain.Job) string) *JobListResponse {
	jobs := make([]*JobResponse, len(result.Jobs))
	for i, job := range result.Jobs {
		jobs[i] = JobFromDomain(job, downloadPath(job))
	}

	return &JobListResponse{
		Jobs:       jobs,
		Total:      result.Total,
		Page:       result.Pagination.Page,
		PageSize:   result.Pagination.PageSize,
		TotalPages: result.TotalPages(),
	}
}
