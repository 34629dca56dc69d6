package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CleanupUseCase removes old jobs together with their stored files
type CleanupUseCase struct {
	jobRepo     JobRepository
	fileStorage FileStorage
	maxAge      time.Duration
	batchSize   int
	logger      *zap.Logger
	now         func() time.Time
}

// NewCleanupUseCase creates a CleanupUseCase
func NewCleanupUseCase(
	jobRepo JobRepository,
	fileStorage FileStorage,
	maxAge time.Duration,
	batchSize int,
	logger *zap.Logger,
) *CleanupUseCase {
	if batchSize < 1 {
		batchSize = 100
	}
	return &CleanupUseCase{
		jobRepo:     jobRepo,
		fileStorage: fileStorage,
		maxAge:      maxAge,
		batchSize:   batchSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Run deletes up to one batch of jobs older than the configured age and
// returns how many were removed
func (uc *CleanupUseCase) Run(ctx context.Context) (int, error) {
	start := uc.now()
	cutoff := start.Add(-uc.maxAge)

	jobs, err := uc.jobRepo.ListCreatedBefore(ctx, cutoff, uc.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	deleted := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		uc.logger.Debug("Deleting expired job",
			zap.String("job_id", job.ID.String()),
			zap.String("status", job.Status.String()),
			zap.Duration("age", start.Sub(job.CreatedAt)),
		)

		removeObjects(ctx, uc.fileStorage, job, uc.logger)

		if err := uc.jobRepo.Delete(ctx, job.ID); err != nil {
			uc.logger.Warn("Failed to delete expired job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}

	uc.logger.Info("Cleanup complete",
		zap.Int("deleted", deleted),
		zap.Time("cutoff", cutoff),
		zap.Duration("duration", uc.now().Sub(start)),
	)

	return deleted, nil
}
