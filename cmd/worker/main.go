package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/gostream/pipeline/internal/broker"
	"github.com/gostream/pipeline/internal/config"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/gostream/pipeline/internal/infrastructure/cache"
	"github.com/gostream/pipeline/internal/infrastructure/postgres"
	"github.com/gostream/pipeline/internal/infrastructure/queue"
	"github.com/gostream/pipeline/internal/infrastructure/storage"
	"github.com/gostream/pipeline/internal/pipeline/probe"
	"github.com/gostream/pipeline/internal/pipeline/transcode"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Worker.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	for _, bucket := range []string{cfg.MinIO.RawBucket, cfg.MinIO.ThumbnailBucket, cfg.MinIO.ProcessedBucket} {
		if err := storageClient.EnsureBucket(ctx, bucket); err != nil {
			return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
		}
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	videoCache := cache.NewRedisVideoCache(redisClient)
	joinStore := cache.NewRedisJoinStore(redisClient, cfg.Redis.JoinTTL)

	engine := broker.New(broker.Dependencies{
		Videos:  videoRepo,
		Storage: storageClient,
		Joins:   joinStore,
		Cache:   videoCache,
		Prober:  probe.NewProber(cfg.Worker.FFprobePath),
		Encoder: transcode.NewEncoder(cfg.Worker.FFmpegPath, cfg.Worker.EncoderThreads, cfg.Worker.HLSSegmentDuration),
		Buckets: broker.Buckets{
			Raw:       cfg.MinIO.RawBucket,
			Processed: cfg.MinIO.ProcessedBucket,
		},
		Stages:            cfg.Stages.BrokerStages(),
		TempDir:           cfg.Worker.TempDir,
		FanOutConcurrency: cfg.Worker.FanOutConcurrency,
		Logger:            logger,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming pipeline jobs")
		err := queueClient.ConsumeProcessVideoJobs(ctx, func(ctx context.Context, job repository.ProcessVideoJob) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing job",
				slog.String("video_id", job.VideoID.String()),
				slog.Int("retry_count", job.RetryCount),
			)

			if err := engine.Run(ctx, job.VideoID); err != nil {
				logger.Error("workflow failed",
					slog.String("video_id", job.VideoID.String()),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("workflow completed", slog.String("video_id", job.VideoID.String()))
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight jobs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some jobs may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
