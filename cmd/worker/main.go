package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/infra"
	"server/internal/kv"
	"server/internal/providers/image"
	"server/internal/queue"
	"server/internal/ratelimit"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer redisClient.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	generator := image.NewNanoBanana(image.NanoBananaOptions{
		APIKey:     cfg.NanoBananaAPIKey,
		BaseURL:    cfg.NanoBananaAPIURL,
		HTTPClient: &http.Client{Timeout: cfg.GenerateTimeout},
		Logger:     &logger,
	})

	jobRepo := repo.NewJobRepository(pool)
	jobQueue := queue.NewRedisQueue(redisClient, cfg.JobQueueKey)
	counter := ratelimit.NewConcurrencyCounter(kv.NewRedisStore(redisClient))

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.WorkerConcurrency; i++ {
		w := worker.New(worker.Options{
			Repo:           jobRepo,
			Queue:          jobQueue,
			Counter:        counter,
			Generator:      generator,
			Store:          fileStore,
			Logger:         logger,
			DequeueTimeout: cfg.DequeueTimeout,
		})
		g.Go(func() error { return w.Run(gctx) })
	}

	monitor := worker.NewStaleMonitor(worker.StaleMonitorOptions{
		Repo:       jobRepo,
		Queue:      jobQueue,
		Counter:    counter,
		Logger:     logger,
		Threshold:  cfg.StaleThreshold,
		Interval:   cfg.StaleSweepEvery,
		MaxRetries: cfg.MaxRetries,
	})
	g.Go(func() error { return monitor.Run(gctx) })

	recovery := worker.NewCounterRecovery(worker.CounterRecoveryOptions{
		Repo:     jobRepo,
		Counter:  counter,
		Logger:   logger,
		Interval: cfg.RecoverEvery,
	})
	g.Go(func() error { return recovery.Run(gctx) })

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: all loops started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
