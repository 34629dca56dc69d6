package domain

import (
	"errors"
	"testing"
)

func newTestJob(t *testing.T) *Job {
	t.Helper()
	job, err := NewJob(JobSourceAPI,
		FileRef{Name: "t_template.py", Key: "k/t"},
		FileRef{Name: "config.yaml", Key: "k/c"},
		nil,
	)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func TestNewJob(t *testing.T) {
	job := newTestJob(t)
	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.CompletedAt != nil {
		t.Error("new job must not be completed")
	}

	if _, err := NewJob(JobSourceForm, FileRef{Key: "a"}, FileRef{}, nil); !errors.Is(err, ErrEmptyFileKey) {
		t.Errorf("expected ErrEmptyFileKey, got %v", err)
	}
	if _, err := NewJob(JobSourceForm, FileRef{Key: "a"}, FileRef{Key: "b"}, &FileRef{}); !errors.Is(err, ErrEmptyFileKey) {
		t.Errorf("expected ErrEmptyFileKey for csv, got %v", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	job := newTestJob(t)

	if err := job.MarkCompleted(FileRef{Key: "out"}, nil); !errors.Is(err, ErrInvalidJobStatus) {
		t.Fatalf("completing a pending job: got %v", err)
	}
	if err := job.MarkProcessing(); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := job.MarkProcessing(); !errors.Is(err, ErrInvalidJobStatus) {
		t.Fatalf("second MarkProcessing: got %v", err)
	}
	if err := job.MarkCompleted(FileRef{}, nil); !errors.Is(err, ErrEmptyFileKey) {
		t.Fatalf("completing without output: got %v", err)
	}
	if err := job.MarkCompleted(FileRef{Name: "t.py", Key: "k/o"}, []string{"w"}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if !job.Status.IsFinal() || job.CompletedAt == nil || job.Output.Key != "k/o" {
		t.Errorf("unexpected job after completion: %+v", job)
	}
	if err := job.MarkFailed("late"); !errors.Is(err, ErrInvalidJobStatus) {
		t.Errorf("failing a completed job: got %v", err)
	}

	keys := job.ObjectKeys()
	if len(keys) != 3 || keys[2] != "k/o" {
		t.Errorf("ObjectKeys = %v", keys)
	}
}

func TestJobMarkFailedFromPending(t *testing.T) {
	job := newTestJob(t)
	if err := job.MarkFailed("boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if job.Status != JobStatusFailed || job.Error != "boom" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestJobStatus(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if JobStatus("done").IsValid() {
		t.Error("unknown status reported valid")
	}
	if JobStatusProcessing.IsFinal() {
		t.Error("processing is not final")
	}
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 500)
	if p.Page != 1 || p.PageSize != MaxPageSize {
		t.Errorf("NewPagination(0, 500) = %+v", p)
	}
	if p := NewPagination(3, 0); p.PageSize != DefaultPageSize || p.Offset() != 2*DefaultPageSize {
		t.Errorf("unexpected pagination %+v", p)
	}

	res := &JobListResult{Total: 41, Pagination: NewPagination(1, 20)}
	if res.TotalPages() != 3 {
		t.Errorf("TotalPages = %d, want 3", res.TotalPages())
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		kind FileKind
		name string
		want string
	}{
		{FileKindTemplate, "a.py", "text/x-python"},
		{FileKindConfig, "c.YML", "application/yaml"},
		{FileKindCSV, "data", "text/csv"},
		{FileKindConfig, "c.ini", "application/yaml"},
		{FileKind("other"), "x.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentTypeFor(tt.kind, tt.name); got != tt.want {
			t.Errorf("ContentTypeFor(%s, %q) = %q, want %q", tt.kind, tt.name, got, tt.want)
		}
	}
}
