package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/ot2protocol/internal/adapter/queue"
	"github.com/plastinin/ot2protocol/internal/adapter/repository"
	"github.com/plastinin/ot2protocol/internal/adapter/storage"
	"github.com/plastinin/ot2protocol/internal/config"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"github.com/plastinin/ot2protocol/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting ot2protocol worker",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Bool("cleanup", cfg.Cleanup.Enabled),
	)

	ctx := context.Background()

	dbPool, err := repository.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()
	log.Info("Connected to PostgreSQL")

	s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		log.Fatal("Failed to connect to S3", zap.Error(err))
	}
	log.Info("Connected to S3",
		zap.String("endpoint", cfg.S3.Endpoint),
		zap.String("bucket", cfg.S3.Bucket),
	)

	jobRepo := repository.NewJobRepository(dbPool)

	renderUC := usecase.NewRenderUseCase(jobRepo, s3Storage, log)

	var (
		cleaner   queue.Cleaner
		scheduler *queue.CleanupScheduler
	)
	if cfg.Cleanup.Enabled {
		cleaner = usecase.NewCleanupUseCase(jobRepo, s3Storage, cfg.Cleanup.MaxAge, cfg.Cleanup.BatchSize, log)

		scheduler, err = queue.NewCleanupScheduler(cfg.Redis, cfg.Cleanup.Interval, log)
		if err != nil {
			log.Fatal("Failed to create cleanup scheduler", zap.Error(err))
		}
	}

	consumer := queue.NewJobConsumer(cfg.Redis, cfg.Worker.Concurrency, renderUC, cleaner, log)

	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start consumer", zap.Error(err))
	}

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			log.Fatal("Failed to start cleanup scheduler", zap.Error(err))
		}
	}

	log.Info("Worker started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")

	if scheduler != nil {
		scheduler.Stop()
	}
	consumer.Stop()

	log.Info("Worker stopped")
}
