package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/plastinin/ot2protocol/internal/domain"
	"go.uber.org/zap"
)

// JobUseCase manages asynchronous protocol jobs
type JobUseCase struct {
	jobRepo     JobRepository
	fileStorage FileStorage
	jobQueue    JobQueue
	logger      *zap.Logger
}

// NewJobUseCase creates a JobUseCase
func NewJobUseCase(
	jobRepo JobRepository,
	fileStorage FileStorage,
	jobQueue JobQueue,
	logger *zap.Logger,
) *JobUseCase {
	return &JobUseCase{
		jobRepo:     jobRepo,
		fileStorage: fileStorage,
		jobQueue:    jobQueue,
		logger:      logger,
	}
}

// Submit stores the uploaded files and queues a render job
func (uc *JobUseCase) Submit(ctx context.Context, input SubmitInput) (*domain.Job, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var stored []string
	rollback := func() {
		for _, key := range stored {
			_ = uc.fileStorage.Delete(ctx, key)
		}
	}

	store := func(kind domain.FileKind, f *UploadedFile) (domain.FileRef, error) {
		key, err := uc.fileStorage.Upload(ctx, f.Name, domain.ContentTypeFor(kind, f.Name), f.Reader, f.Size)
		if err != nil {
			uc.logger.Error("Failed to upload file to storage",
				zap.String("kind", string(kind)),
				zap.String("file_name", f.Name),
				zap.Error(err),
			)
			return domain.FileRef{}, fmt.Errorf("failed to upload %s file: %w", kind, err)
		}
		stored = append(stored, key)
		return domain.FileRef{Name: f.Name, Key: key, Size: f.Size}, nil
	}

	template, err := store(domain.FileKindTemplate, input.Template)
	if err != nil {
		rollback()
		return nil, err
	}

	config, err := store(domain.FileKindConfig, input.Config)
	if err != nil {
		rollback()
		return nil, err
	}

	var csv *domain.FileRef
	if input.CSV != nil && input.CSV.Reader != nil {
		ref, err := store(domain.FileKindCSV, input.CSV)
		if err != nil {
			rollback()
			return nil, err
		}
		csv = &ref
	}

	job, err := domain.NewJob(domain.JobSourceAPI, template, config, csv)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := uc.jobRepo.Create(ctx, job); err != nil {
		rollback()
		uc.logger.Error("Failed to save job to database",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := uc.jobQueue.Enqueue(ctx, job.ID); err != nil {
		// the job is saved; it can be re-queued later
		uc.logger.Error("Failed to enqueue job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}

	uc.logger.Info("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("template", template.Name),
		zap.String("config", config.Name),
		zap.Bool("with_csv", csv != nil),
	)

	return job, nil
}

// GetByID returns a job
func (uc *JobUseCase) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return uc.jobRepo.GetByID(ctx, id)
}

// List returns a page of jobs
func (uc *JobUseCase) List(ctx context.Context, filter domain.JobFilter, pagination domain.Pagination) (*domain.JobListResult, error) {
	return uc.jobRepo.List(ctx, filter, pagination)
}

// OpenOutput opens the generated protocol of a completed job
func (uc *JobUseCase) OpenOutput(ctx context.Context, id uuid.UUID) (*domain.Job, io.ReadCloser, error) {
	job, err := uc.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if job.Status != domain.JobStatusCompleted || job.Output == nil {
		return job, nil, domain.ErrJobNotCompleted
	}

	rc, err := uc.fileStorage.Download(ctx, job.Output.Key)
	if err != nil {
		return job, nil, fmt.Errorf("failed to download output: %w", err)
	}

	return job, rc, nil
}

// Delete removes a job and its files
func (uc *JobUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	job, err := uc.jobRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	removeObjects(ctx, uc.fileStorage, job, uc.logger)

	if err := uc.jobRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	uc.logger.Info("Job deleted",
		zap.String("job_id", id.String()),
	)

	return nil
}

// removeObjects deletes the stored files of a job; failures are only logged
func removeObjects(ctx context.Context, storage FileStorage, job *domain.Job, logger *zap.Logger) {
	for _, key := range job.ObjectKeys() {
		if err := storage.Delete(ctx, key); err != nil {
			logger.Warn("Failed to delete file from storage",
				zap.String("job_id", job.ID.String()),
				zap.String("file_key", key),
				zap.Error(err),
			)
		}
	}
}
