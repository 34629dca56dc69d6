package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/ot2protocol/internal/domain"
	"github.com/plastinin/ot2protocol/internal/protocol"
	"go.uber.org/zap"
)

// ErrRenderFailed wraps errors caused by the uploaded files themselves.
// Retrying such a job cannot succeed.
var ErrRenderFailed = errors.New("protocol rendering failed")

// RenderUseCase turns uploaded files into a protocol
type RenderUseCase struct {
	jobRepo     JobRepository
	fileStorage FileStorage
	logger      *zap.Logger
	now         func() time.Time
}

// NewRenderUseCase creates a RenderUseCase
func NewRenderUseCase(
	jobRepo JobRepository,
	fileStorage FileStorage,
	logger *zap.Logger,
) *RenderUseCase {
	return &RenderUseCase{
		jobRepo:     jobRepo,
		fileStorage: fileStorage,
		logger:      logger,
		now:         time.Now,
	}
}

// Generate renders a protocol right away and archives the inputs and the
// output as a completed job. Archiving problems are logged; the protocol is
// still returned.
func (uc *RenderUseCase) Generate(ctx context.Context, input SubmitInput) (*GenerateOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	files, err := readSubmission(input)
	if err != nil {
		return nil, err
	}

	result, err := protocol.Render(files.renderInput(uc.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	uc.logger.Info("Protocol generated",
		zap.String("template", files.templateName),
		zap.String("output", result.FileName),
		zap.Strings("placeholders", result.SortedReplacements()),
		zap.Int("csv_rows", result.CSVRows),
		zap.Strings("warnings", result.Warnings),
	)

	job, err := uc.archive(ctx, files, result)
	if err != nil {
		uc.logger.Warn("Failed to archive generated protocol",
			zap.String("output", result.FileName),
			zap.Error(err),
		)
	}

	return &GenerateOutput{Job: job, Result: result}, nil
}

// ProcessJob renders a queued job.
//
// Errors wrapping ErrRenderFailed mark the job failed. Other errors leave it in
// processing so that a retry resumes it.
func (uc *RenderUseCase) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	uc.logger.Info("Starting job processing",
		zap.String("job_id", jobID.String()),
	)

	job, err := uc.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.Status.IsFinal() {
		uc.logger.Warn("Job already in final status, skipping",
			zap.String("job_id", jobID.String()),
			zap.String("status", job.Status.String()),
		)
		return nil
	}

	if job.Status == domain.JobStatusPending {
		if err := job.MarkProcessing(); err != nil {
			return fmt.Errorf("failed to mark job as processing: %w", err)
		}
		if err := uc.jobRepo.Update(ctx, job); err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
	}

	files, err := uc.load(ctx, job)
	if err != nil {
		return err
	}

	result, err := protocol.Render(files.renderInput(uc.now()))
	if err != nil {
		uc.markJobFailed(ctx, job, err.Error())
		return fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	output, err := uc.store(ctx, domain.FileKindOutput, result.FileName, result.Output)
	if err != nil {
		return err
	}

	if err := job.MarkCompleted(output, result.Warnings); err != nil {
		_ = uc.fileStorage.Delete(ctx, output.Key)
		return fmt.Errorf("failed to mark job as completed: %w", err)
	}
	if err := uc.jobRepo.Update(ctx, job); err != nil {
		_ = uc.fileStorage.Delete(ctx, output.Key)
		return fmt.Errorf("failed to update job: %w", err)
	}

	uc.logger.Info("Job completed",
		zap.String("job_id", jobID.String()),
		zap.String("output", output.Name),
		zap.Int("warnings", len(result.Warnings)),
	)

	return nil
}

// FailJob marks a job failed once retries are exhausted
func (uc *RenderUseCase) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	job, err := uc.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job.Status.IsFinal() {
		return nil
	}

	uc.markJobFailed(ctx, job, reason)
	return nil
}

func (uc *RenderUseCase) archive(ctx context.Context, files *submission, result *protocol.Result) (*domain.Job, error) {
	var stored []string
	rollback := func() {
		for _, key := range stored {
			_ = uc.fileStorage.Delete(ctx, key)
		}
	}

	put := func(kind domain.FileKind, name string, data []byte) (domain.FileRef, error) {
		ref, err := uc.store(ctx, kind, name, data)
		if err == nil {
			stored = append(stored, ref.Key)
		}
		return ref, err
	}

	template, err := put(domain.FileKindTemplate, files.templateName, files.template)
	if err != nil {
		rollback()
		return nil, err
	}
	config, err := put(domain.FileKindConfig, files.configName, files.config)
	if err != nil {
		rollback()
		return nil, err
	}

	var csv *domain.FileRef
	if files.csv != nil {
		ref, err := put(domain.FileKindCSV, files.csv.Name, files.csv.Data)
		if err != nil {
			rollback()
			return nil, err
		}
		csv = &ref
	}

	output, err := put(domain.FileKindOutput, result.FileName, result.Output)
	if err != nil {
		rollback()
		return nil, err
	}

	job, err := domain.NewJob(domain.JobSourceForm, template, config, csv)
	if err == nil {
		err = job.MarkProcessing()
	}
	if err == nil {
		err = job.MarkCompleted(output, result.Warnings)
	}
	if err != nil {
		rollback()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := uc.jobRepo.Create(ctx, job); err != nil {
		rollback()
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	return job, nil
}

func (uc *RenderUseCase) store(ctx context.Context, kind domain.FileKind, name string, data []byte) (domain.FileRef, error) {
	size := int64(len(data))
	key, err := uc.fileStorage.Upload(ctx, name, domain.ContentTypeFor(kind, name), bytes.NewReader(data), size)
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("failed to upload %s file: %w", kind, err)
	}
	return domain.FileRef{Name: name, Key: key, Size: size}, nil
}

func (uc *RenderUseCase) load(ctx context.Context, job *domain.Job) (*submission, error) {
	template, err := uc.download(ctx, job.Template.Key)
	if err != nil {
		return nil, err
	}
	config, err := uc.download(ctx, job.Config.Key)
	if err != nil {
		return nil, err
	}

	files := &submission{
		templateName: job.Template.Name,
		template:     template,
		configName:   job.Config.Name,
		config:       config,
	}

	if job.CSV != nil {
		data, err := uc.download(ctx, job.CSV.Key)
		if err != nil {
			return nil, err
		}
		files.csv = &protocol.CSVFile{Name: job.CSV.Name, Data: data}
	}

	uc.logger.Debug("Job inputs downloaded from storage",
		zap.String("job_id", job.ID.String()),
		zap.Int("template_size", len(template)),
		zap.Int("config_size", len(config)),
		zap.Bool("with_csv", files.csv != nil),
	)

	return files, nil
}

func (uc *RenderUseCase) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.fileStorage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (uc *RenderUseCase) markJobFailed(ctx context.Context, job *domain.Job, errMsg string) {
	uc.logger.Error("Job processing failed",
		zap.String("job_id", job.ID.String()),
		zap.String("error", errMsg),
	)

	if err := job.MarkFailed(errMsg); err != nil {
		uc.logger.Error("Failed to mark job as failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}

	if err := uc.jobRepo.Update(ctx, job); err != nil {
		uc.logger.Error("Failed to update failed job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// submission is a set of uploaded files read into memory
type submission struct {
	templateName string
	template     []byte
	configName   string
	config       []byte
	csv          *protocol.CSVFile
}

func readSubmission(input SubmitInput) (*submission, error) {
	template, err := io.ReadAll(input.Template.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	config, err := io.ReadAll(input.Config.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	files := &submission{
		templateName: input.Template.Name,
		template:     template,
		configName:   input.Config.Name,
		config:       config,
	}

	if input.CSV != nil && input.CSV.Reader != nil {
		data, err := io.ReadAll(input.CSV.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		files.csv = &protocol.CSVFile{Name: input.CSV.Name, Data: data}
	}

	return files, nil
}

func (s *submission) renderInput(now time.Time) protocol.Input {
	return protocol.Input{
		TemplateName: s.templateName,
		Template:     s.template,
		Config:       s.config,
		CSV:          s.csv,
		Now:          now,
	}
}
