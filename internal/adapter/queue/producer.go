package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/ot2protocol/internal/config"
)

// Task types
const (
	TypeProtocolRender  = "protocol:render"
	TypeProtocolCleanup = "protocol:cleanup"
)

// Queue names and their priorities
const (
	QueueRender      = "render"
	QueueMaintenance = "maintenance"

	renderMaxRetry = 3
)

// ProtocolRenderPayload is the payload of a render task
type ProtocolRenderPayload struct {
	JobID string `json:"job_id"`
}

// NewRenderTask builds the queue task for a job
func NewRenderTask(jobID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ProtocolRenderPayload{
		JobID: jobID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeProtocolRender, payload,
		asynq.MaxRetry(renderMaxRetry),
		asynq.Queue(QueueRender),
	), nil
}

// JobProducer puts render jobs on the queue
type JobProducer struct {
	client *asynq.Client
}

// NewJobProducer creates a JobProducer
func NewJobProducer(cfg config.RedisConfig) *JobProducer {
	return &JobProducer{client: asynq.NewClient(redisOpt(cfg))}
}

// Enqueue queues a render job
func (p *JobProducer) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	task, err := NewRenderTask(jobID)
	if err != nil {
		return err
	}

	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Close closes the redis connection
func (p *JobProducer) Close() error {
	return p.client.Close()
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
