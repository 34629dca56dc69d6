package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/ot2protocol/internal/adapter/http/handler"
	"github.com/plastinin/ot2protocol/internal/adapter/queue"
	"github.com/plastinin/ot2protocol/internal/adapter/repository"
	"github.com/plastinin/ot2protocol/internal/adapter/storage"
	"github.com/plastinin/ot2protocol/internal/config"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"github.com/plastinin/ot2protocol/pkg/logger"
	"go.uber.org/zap"

	apphttp "github.com/plastinin/ot2protocol/internal/adapter/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting ot2protocol API",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("version", cfg.App.Version),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(cfg.Database); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
		log.Info("Database migrations applied")
	}

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

	jobProducer := queue.NewJobProducer(cfg.Redis)
	defer jobProducer.Close()
	log.Info("Connected to Redis",
		zap.String("addr", cfg.Redis.Addr()),
	)

	jobRepo := repository.NewJobRepository(dbPool)

	jobUC := usecase.NewJobUseCase(jobRepo, s3Storage, jobProducer, log)
	renderUC := usecase.NewRenderUseCase(jobRepo, s3Storage, log)

	pageHandler, err := handler.NewPageHandler(renderUC, cfg.App, cfg.Upload.MaxSize, log)
	if err != nil {
		log.Fatal("Failed to load pages", zap.Error(err))
	}
	jobHandler := handler.NewJobHandler(jobUC, cfg.Upload.MaxSize, log)
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": dbPool,
		"s3":       s3Storage,
	}, log)

	router := apphttp.NewRouter(pageHandler, jobHandler, healthHandler, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
