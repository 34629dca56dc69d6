package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/ot2protocol/internal/domain"
)

const jobColumns = `id, status, source,
	template_name, template_key, template_size,
	config_name, config_key, config_size,
	csv_name, csv_key, csv_size,
	output_name, output_key, output_size,
	warnings, error, created_at, updated_at, completed_at`

// JobRepository stores protocol jobs in PostgreSQL
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a JobRepository
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Create inserts a job
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO protocol_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	csvName, csvKey, csvSize := nullableRef(job.CSV)
	outName, outKey, outSize := nullableRef(job.Output)

	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Source,
		job.Template.Name, job.Template.Key, job.Template.Size,
		job.Config.Name, job.Config.Key, job.Config.Size,
		csvName, csvKey, csvSize,
		outName, outKey, outSize,
		warningsOrEmpty(job.Warnings),
		nullableString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// GetByID returns a job
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM protocol_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// Update saves the mutable part of a job
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE protocol_jobs
		SET status = $2, output_name = $3, output_key = $4, output_size = $5,
		    warnings = $6, error = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`

	outName, outKey, outSize := nullableRef(job.Output)

	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		outName, outKey, outSize,
		warningsOrEmpty(job.Warnings),
		nullableString(job.Error),
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// Delete removes a job
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM protocol_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// List returns a page of jobs, newest first
func (r *JobRepository) List(ctx context.Context, filter domain.JobFilter, pagination domain.Pagination) (*domain.JobListResult, error) {
	baseQuery := `FROM protocol_jobs WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, jobColumns, baseQuery, argIndex, argIndex+1)

	args = append(args, pagination.Limit(), pagination.Offset())

	jobs, err := r.query(ctx, selectQuery, args...)
	if err != nil {
		return nil, err
	}

	return &domain.JobListResult{
		Jobs:       jobs,
		Total:      total,
		Pagination: pagination,
	}, nil
}

// ListCreatedBefore returns the oldest jobs created before the given time
func (r *JobRepository) ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM protocol_jobs
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	return r.query(ctx, query, before, limit)
}

func (r *JobRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	job := &domain.Job{}

	var (
		csvName, csvKey, outName, outKey, errorMsg *string
		csvSize, outSize                           *int64
	)

	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.Source,
		&job.Template.Name, &job.Template.Key, &job.Template.Size,
		&job.Config.Name, &job.Config.Key, &job.Config.Size,
		&csvName, &csvKey, &csvSize,
		&outName, &outKey, &outSize,
		&job.Warnings,
		&errorMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.CSV = refFromNullable(csvName, csvKey, csvSize)
	job.Output = refFromNullable(outName, outKey, outSize)
	if errorMsg != nil {
		job.Error = *errorMsg
	}

	return job, nil
}

func nullableRef(ref *domain.FileRef) (*string, *string, *int64) {
	if ref == nil {
		return nil, nil, nil
	}
	return &ref.Name, &ref.Key, &ref.Size
}

func refFromNullable(name, key *string, size *int64) *domain.FileRef {
	if key == nil {
		return nil
	}
	ref := &domain.FileRef{Key: *key}
	if name != nil {
		ref.Name = *name
	}
	if size != nil {
		ref.Size = *size
	}
	return ref
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}
