package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"go.uber.org/zap"
)

type testProcessor struct {
	processed []uuid.UUID
	failed    []uuid.UUID
	err       error
}

func (p *testProcessor) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	p.processed = append(p.processed, jobID)
	return p.err
}

func (p *testProcessor) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	p.failed = append(p.failed, jobID)
	return nil
}

type testCleaner struct {
	runs int
}

func (c *testCleaner) Run(ctx context.Context) (int, error) {
	c.runs++
	return 2, nil
}

func newTestConsumer(p JobProcessor, c Cleaner) *JobConsumer {
	consumer := &JobConsumer{processor: p, cleaner: c, logger: zap.NewNop()}
	consumer.mux = consumer.newMux()
	return consumer
}

func TestNewRenderTask(t *testing.T) {
	id := uuid.New()
	task, err := NewRenderTask(id)
	if err != nil {
		t.Fatalf("NewRenderTask: %v", err)
	}
	if task.Type() != TypeProtocolRender {
		t.Errorf("type = %q", task.Type())
	}

	var payload ProtocolRenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.JobID != id.String() {
		t.Errorf("job id = %q, want %q", payload.JobID, id)
	}
}

func TestHandleProtocolRender(t *testing.T) {
	p := &testProcessor{}
	c := newTestConsumer(p, nil)

	id := uuid.New()
	task, _ := NewRenderTask(id)
	if err := c.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(p.processed) != 1 || p.processed[0] != id {
		t.Errorf("processed = %v", p.processed)
	}
}

func TestHandleProtocolRender_BadPayload(t *testing.T) {
	p := &testProcessor{}
	c := newTestConsumer(p, nil)

	for _, payload := range []string{"{", `{"job_id":"nope"}`} {
		err := c.handleProtocolRender(context.Background(), asynq.NewTask(TypeProtocolRender, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Errorf("payload %q: expected SkipRetry, got %v", payload, err)
		}
	}
	if len(p.processed) != 0 {
		t.Error("processor must not be called")
	}
}

func TestHandleProtocolRender_Errors(t *testing.T) {
	task, _ := NewRenderTask(uuid.New())

	p := &testProcessor{err: fmt.Errorf("%w: bad yaml", usecase.ErrRenderFailed)}
	err := newTestConsumer(p, nil).handleProtocolRender(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, usecase.ErrRenderFailed) {
		t.Errorf("render failure: got %v", err)
	}

	p = &testProcessor{err: errors.New("s3 down")}
	err = newTestConsumer(p, nil).handleProtocolRender(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Errorf("transient failure must be retried, got %v", err)
	}
	if len(p.failed) != 0 {
		t.Error("job must not be failed before the last attempt")
	}
}

func TestHandleProtocolCleanup(t *testing.T) {
	cleaner := &testCleaner{}
	c := newTestConsumer(&testProcessor{}, cleaner)

	if err := c.mux.ProcessTask(context.Background(), asynq.NewTask(TypeProtocolCleanup, nil)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if cleaner.runs != 1 {
		t.Errorf("cleaner ran %d times", cleaner.runs)
	}
}

func TestCleanupCronSpec(t *testing.T) {
	if got := CleanupCronSpec(90 * time.Minute); got != "@every 1h30m0s" {
		t.Errorf("CleanupCronSpec = %q", got)
	}
}
