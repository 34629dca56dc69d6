package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plastinin/ot2protocol/internal/adapter/http/dto"
	"github.com/plastinin/ot2protocol/internal/domain"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"go.uber.org/zap"
)

// JobsPath is the mount point of the jobs API
const JobsPath = "/api/v1/protocols"

// JobService manages asynchronous protocol jobs
type JobService interface {
	Submit(ctx context.Context, input usecase.SubmitInput) (*domain.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter domain.JobFilter, pagination domain.Pagination) (*domain.JobListResult, error)
	OpenOutput(ctx context.Context, id uuid.UUID) (*domain.Job, io.ReadCloser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobHandler serves the jobs API
type JobHandler struct {
	jobs          JobService
	maxUploadSize int64
	logger        *zap.Logger
}

// NewJobHandler creates a JobHandler
func NewJobHandler(jobs JobService, maxUploadSize int64, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:          jobs,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Create stores the files and queues a render job
// POST /api/v1/protocols
// Content-Type: multipart/form-data
// - template: template file
// - config: YAML configuration
// - csv: optional CSV file
// The upload[] triple of the form is accepted too.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := readSubmission(w, r, h.maxUploadSize)
	if err != nil {
		h.logger.Warn("Failed to read multipart body", zap.Error(err))
		status := uploadStatus(err)
		if status == http.StatusRequestEntityTooLarge {
			h.respondError(w, status, "too_large", "Upload exceeds the maximum size")
			return
		}
		h.respondError(w, status, "invalid_request", "Failed to parse form data")
		return
	}

	job, err := h.jobs.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingTemplate):
			h.respondError(w, http.StatusBadRequest, "template_required", "Template file is required")
		case errors.Is(err, domain.ErrMissingConfig):
			h.respondError(w, http.StatusBadRequest, "config_required", "Configuration file is required")
		default:
			h.logger.Error("Failed to submit job", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to create job")
		}
		return
	}

	w.Header().Set("Location", JobsPath+"/"+job.ID.String())
	h.respondJSON(w, http.StatusCreated, dto.JobFromDomain(job, downloadPath(job)))
}

// GetByID returns a job
// GET /api/v1/protocols/{id}
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "not_found", "Job not found")
			return
		}
		h.logger.Error("Failed to get job", zap.String("job_id", id.String()), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.JobFromDomain(job, downloadPath(job)))
}

// List returns a page of jobs
// GET /api/v1/protocols?page=1&page_size=20&status=completed
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	pagination := domain.NewPagination(page, pageSize)

	filter := domain.JobFilter{}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.JobStatus(statusStr)
		if !status.IsValid() {
			h.respondError(w, http.StatusBadRequest, "invalid_status", "Unknown job status")
			return
		}
		filter.Status = &status
	}

	result, err := h.jobs.List(r.Context(), filter, pagination)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to list jobs")
		return
	}

	h.respondJSON(w, http.StatusOK, dto.JobListFromDomain(result, downloadPath))
}

// Download streams the generated protocol
// GET /api/v1/protocols/{id}/download
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, rc, err := h.jobs.OpenOutput(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			h.respondError(w, http.StatusNotFound, "not_found", "Job not found")
		case errors.Is(err, domain.ErrJobNotCompleted):
			h.respondError(w, http.StatusConflict, "not_completed", "Job is "+job.Status.String())
		default:
			h.logger.Error("Failed to open protocol", zap.String("job_id", id.String()), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to download protocol")
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(job.Output.Name))
	if job.Output.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(job.Output.Size, 10))
	}
	w.Header().Set(WarningsHeader, strconv.Itoa(len(job.Warnings)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Failed to stream protocol", zap.String("job_id", id.String()), zap.Error(err))
	}
}

// Delete removes a job and its files
// DELETE /api/v1/protocols/{id}
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	err := h.jobs.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "not_found", "Job not found")
			return
		}
		h.logger.Error("Failed to delete job", zap.String("job_id", id.String()), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_id", "Invalid job ID format")
		return uuid.Nil, false
	}
	return id, true
}

func downloadPath(job *domain.Job) string {
	return JobsPath + "/" + job.ID.String() + "/download"
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *JobHandler) respondError(w http.ResponseWriter, status int, errCode string, message string) {
	h.respondJSON(w, status, dto.NewErrorResponse(errCode, message))
}
