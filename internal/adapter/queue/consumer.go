package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/ot2protocol/internal/config"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"go.uber.org/zap"
)

// JobProcessor renders queued jobs
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID uuid.UUID) error
	FailJob(ctx context.Context, jobID uuid.UUID, reason string) error
}

// Cleaner removes expired jobs
type Cleaner interface {
	Run(ctx context.Context) (int, error)
}

// JobConsumer handles tasks from the queue
type JobConsumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor JobProcessor
	cleaner   Cleaner
	logger    *zap.Logger
}

// NewJobConsumer creates a JobConsumer. cleaner may be nil.
func NewJobConsumer(
	cfg config.RedisConfig,
	concurrency int,
	processor JobProcessor,
	cleaner Cleaner,
	logger *zap.Logger,
) *JobConsumer {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueRender:      10,
				QueueMaintenance: 1,
				"default":        1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	consumer := &JobConsumer{
		server:    server,
		processor: processor,
		cleaner:   cleaner,
		logger:    logger,
	}
	consumer.mux = consumer.newMux()

	return consumer
}

func (c *JobConsumer) newMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProtocolRender, c.handleProtocolRender)
	if c.cleaner != nil {
		mux.HandleFunc(TypeProtocolCleanup, c.handleProtocolCleanup)
	}
	return mux
}

// Start starts processing in the background
func (c *JobConsumer) Start() error {
	c.logger.Info("Starting job consumer")
	return c.server.Start(c.mux)
}

// Stop waits for running tasks and stops
func (c *JobConsumer) Stop() {
	c.logger.Info("Stopping job consumer")
	c.server.Stop()
	c.server.Shutdown()
}

func (c *JobConsumer) handleProtocolRender(ctx context.Context, t *asynq.Task) error {
	var payload ProtocolRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		c.logger.Error("Failed to unmarshal payload",
			zap.Error(err),
			zap.ByteString("payload", t.Payload()),
		)
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		c.logger.Error("Invalid job ID",
			zap.String("job_id", payload.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("invalid job ID: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("Processing protocol render task",
		zap.String("job_id", jobID.String()),
	)

	err = c.processor.ProcessJob(ctx, jobID)
	if err == nil {
		return nil
	}

	c.logger.Error("Failed to process job",
		zap.String("job_id", jobID.String()),
		zap.Error(err),
	)

	if errors.Is(err, usecase.ErrRenderFailed) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if lastAttempt(ctx) {
		if ferr := c.processor.FailJob(ctx, jobID, err.Error()); ferr != nil {
			c.logger.Error("Failed to mark job as failed",
				zap.String("job_id", jobID.String()),
				zap.Error(ferr),
			)
		}
	}

	return err
}

func (c *JobConsumer) handleProtocolCleanup(ctx context.Context, _ *asynq.Task) error {
	deleted, err := c.cleaner.Run(ctx)
	if err != nil {
		c.logger.Error("Cleanup failed", zap.Error(err))
		return err
	}

	c.logger.Debug("Cleanup task done", zap.Int("deleted", deleted))
	return nil
}

// lastAttempt reports whether asynq will not retry the running task again
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

// asynqLogger adapts zap to the asynq logger interface
type asynqLogger struct {
	logger *zap.Logger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
