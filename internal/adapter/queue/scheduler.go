package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/plastinin/ot2protocol/internal/config"
	"go.uber.org/zap"
)

// CleanupScheduler enqueues the cleanup task periodically
type CleanupScheduler struct {
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// CleanupCronSpec is the scheduler spec for the given interval
func CleanupCronSpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// NewCleanupScheduler registers the cleanup task every interval
func NewCleanupScheduler(cfg config.RedisConfig, interval time.Duration, logger *zap.Logger) (*CleanupScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be positive, got %s", interval)
	}

	scheduler := asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logger),
	})

	entryID, err := scheduler.Register(
		CleanupCronSpec(interval),
		asynq.NewTask(TypeProtocolCleanup, nil),
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register cleanup task: %w", err)
	}

	logger.Info("Cleanup task registered",
		zap.String("entry_id", entryID),
		zap.Duration("interval", interval),
	)

	return &CleanupScheduler{scheduler: scheduler, logger: logger}, nil
}

// Start runs the scheduler in the background
func (s *CleanupScheduler) Start() error {
	return s.scheduler.Start()
}

// Stop stops the scheduler
func (s *CleanupScheduler) Stop() {
	s.logger.Info("Stopping cleanup scheduler")
	s.scheduler.Shutdown()
}
