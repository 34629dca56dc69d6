package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/plastinin/ot2protocol/internal/domain"
	"github.com/plastinin/ot2protocol/internal/protocol"
	"go.uber.org/zap"
)

func fixedNow() time.Time {
	return time.Date(2021, 9, 20, 12, 0, 0, 0, time.UTC)
}

func TestGenerate(t *testing.T) {
	repo, storage := newTestRepo(), newTestStorage()
	uc := NewRenderUseCase(repo, storage, zap.NewNop())
	uc.now = fixedNow

	out, err := uc.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got := string(out.Result.Output)
	for _, want := range []string{"# edit date 2021_09_20", `"plate_type":"biorad_96"`, `"uploaded_csv":"Position,Value\\nA1,2.5"`} {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}
	if out.Result.FileName != "fill.py" {
		t.Errorf("FileName = %q, want fill.py", out.Result.FileName)
	}

	if out.Job == nil {
		t.Fatal("expected an archived job")
	}
	saved := repo.get(out.Job.ID)
	if saved.Status != domain.JobStatusCompleted || saved.Source != domain.JobSourceForm {
		t.Errorf("unexpected archived job: %+v", saved)
	}
	if storage.count() != 4 {
		t.Errorf("stored %d objects, want 4", storage.count())
	}
	if ct := storage.types[saved.Config.Key]; ct != "application/yaml" {
		t.Errorf("config stored as %q", ct)
	}
}

func TestGenerate_RenderError(t *testing.T) {
	repo, storage := newTestRepo(), newTestStorage()
	uc := NewRenderUseCase(repo, storage, zap.NewNop())

	in := testInput()
	in.CSV = nil

	_, err := uc.Generate(context.Background(), in)
	if !errors.Is(err, ErrRenderFailed) || !errors.Is(err, protocol.ErrCSVRequired) {
		t.Fatalf("expected ErrRenderFailed wrapping ErrCSVRequired, got %v", err)
	}
	if storage.count() != 0 || repo.count() != 0 {
		t.Error("nothing should be stored for a failed render")
	}
}

func TestGenerate_MissingFiles(t *testing.T) {
	uc := NewRenderUseCase(newTestRepo(), newTestStorage(), zap.NewNop())

	if _, err := uc.Generate(context.Background(), SubmitInput{Config: file("c.yaml", "a: 1")}); !errors.Is(err, domain.ErrMissingTemplate) {
		t.Errorf("expected ErrMissingTemplate, got %v", err)
	}
	if _, err := uc.Generate(context.Background(), SubmitInput{Template: file("t.py", "<a>")}); !errors.Is(err, domain.ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}
}

func TestGenerate_ArchiveFailureStillReturnsProtocol(t *testing.T) {
	repo, storage := newTestRepo(), newTestStorage()
	storage.failAfter = 2
	uc := NewRenderUseCase(repo, storage, zap.NewNop())

	out, err := uc.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Job != nil {
		t.Error("no job expected when archiving fails")
	}
	if len(out.Result.Output) == 0 {
		t.Error("expected rendered output")
	}
	if storage.count() != 0 {
		t.Errorf("partial uploads were not rolled back: %d objects left", storage.count())
	}
}

func TestSubmitAndProcess(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	jobs := NewJobUseCase(repo, storage, queue, zap.NewNop())
	render := NewRenderUseCase(repo, storage, zap.NewNop())
	render.now = fixedNow
	ctx := context.Background()

	job, err := jobs.Submit(ctx, testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.CSV == nil {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(queue.ids) != 1 || queue.ids[0] != job.ID {
		t.Fatalf("job was not queued: %v", queue.ids)
	}

	if _, _, err := jobs.OpenOutput(ctx, job.ID); !errors.Is(err, domain.ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted, got %v", err)
	}

	if err := render.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	done, rc, err := jobs.OpenOutput(ctx, job.ID)
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !strings.Contains(string(data), "# edit date 2021_09_20") {
		t.Errorf("unexpected output:\n%s", data)
	}
	if done.Output.Name != "fill.py" {
		t.Errorf("output name = %q", done.Output.Name)
	}

	// completed jobs are not processed again
	if err := render.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("second ProcessJob: %v", err)
	}

	if err := jobs.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if storage.count() != 0 || repo.count() != 0 {
		t.Errorf("delete left %d objects and %d jobs", storage.count(), repo.count())
	}
}

func TestProcessJob_RenderFailure(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	jobs := NewJobUseCase(repo, storage, queue, zap.NewNop())
	render := NewRenderUseCase(repo, storage, zap.NewNop())
	ctx := context.Background()

	in := testInput()
	in.Config = file("config.yaml", "- not\n- a mapping\n")
	job, err := jobs.Submit(ctx, in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	err = render.ProcessJob(ctx, job.ID)
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}

	failed := repo.get(job.ID)
	if failed.Status != domain.JobStatusFailed || !strings.Contains(failed.Error, "invalid configuration") {
		t.Errorf("unexpected job: %+v", failed)
	}
}

func TestProcessJob_TransientFailureResumes(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	jobs := NewJobUseCase(repo, storage, queue, zap.NewNop())
	render := NewRenderUseCase(repo, storage, zap.NewNop())
	ctx := context.Background()

	job, err := jobs.Submit(ctx, testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	storage.failGet = true
	if err := render.ProcessJob(ctx, job.ID); err == nil || errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if s := repo.get(job.ID).Status; s != domain.JobStatusProcessing {
		t.Fatalf("status after transient error = %s, want processing", s)
	}

	storage.failGet = false
	if err := render.ProcessJob(ctx, job.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s := repo.get(job.ID).Status; s != domain.JobStatusCompleted {
		t.Errorf("status after retry = %s, want completed", s)
	}
}

func TestFailJob(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	jobs := NewJobUseCase(repo, storage, queue, zap.NewNop())
	render := NewRenderUseCase(repo, storage, zap.NewNop())
	ctx := context.Background()

	job, err := jobs.Submit(ctx, testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := render.FailJob(ctx, job.ID, "retries exhausted"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if got := repo.get(job.ID); got.Status != domain.JobStatusFailed || got.Error != "retries exhausted" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestSubmit_Rollback(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	repo.err = errors.New("db down")
	uc := NewJobUseCase(repo, storage, queue, zap.NewNop())

	if _, err := uc.Submit(context.Background(), testInput()); err == nil {
		t.Fatal("expected an error")
	}
	if storage.count() != 0 {
		t.Errorf("uploads were not rolled back: %d objects", storage.count())
	}
	if len(queue.ids) != 0 {
		t.Error("nothing should be queued")
	}
}

func TestSubmit_QueueFailureKeepsJob(t *testing.T) {
	repo, storage := newTestRepo(), newTestStorage()
	uc := NewJobUseCase(repo, storage, &testQueue{err: errors.New("redis down")}, zap.NewNop())

	job, err := uc.Submit(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if repo.get(job.ID).Status != domain.JobStatusPending {
		t.Error("job should be saved as pending")
	}
}

func TestCleanup(t *testing.T) {
	repo, storage, queue := newTestRepo(), newTestStorage(), &testQueue{}
	jobs := NewJobUseCase(repo, storage, queue, zap.NewNop())
	ctx := context.Background()

	old, err := jobs.Submit(ctx, testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	fresh, err := jobs.Submit(ctx, testInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	aged := repo.get(old.ID)
	aged.CreatedAt = time.Now().Add(-48 * time.Hour)
	if err := repo.Update(ctx, &aged); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cleanup := NewCleanupUseCase(repo, storage, 24*time.Hour, 10, zap.NewNop())
	n, err := cleanup.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d jobs, want 1", n)
	}
	if _, err := repo.GetByID(ctx, old.ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Error("old job should be gone")
	}
	if _, err := repo.GetByID(ctx, fresh.ID); err != nil {
		t.Error("fresh job should be kept")
	}
	if storage.count() != 3 {
		t.Errorf("%d objects left, want 3", storage.count())
	}
}
