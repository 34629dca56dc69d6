package usecase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/ot2protocol/internal/domain"
)

// JobRepository stores protocol jobs
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.JobFilter, pagination domain.Pagination) (*domain.JobListResult, error)
	ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Job, error)
}

// FileStorage keeps uploaded and generated files (S3)
type FileStorage interface {
	Upload(ctx context.Context, fileName string, contentType string, reader io.Reader, size int64) (fileKey string, err error)
	Download(ctx context.Context, fileKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, fileKey string) error
	GetURL(ctx context.Context, fileKey string) (string, error)
}

// JobQueue hands jobs over to the worker
type JobQueue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}
