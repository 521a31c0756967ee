package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"numainda/internal/metrics"
	"numainda/internal/util"
	"numainda/pkg/ai"
	"numainda/pkg/extract"
	"numainda/pkg/ingest"
	"numainda/pkg/queue"
	"numainda/pkg/storage"
	"numainda/pkg/store"
	"numainda/pkg/textsplit"
	"numainda/services/ingest/internal/app"
	"numainda/services/ingest/internal/config"
	"numainda/services/ingest/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := util.InitLogger(cfg.LogLevel, "ingest", cfg.LogsDir, "../../logs")
	if cleanup != nil {
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	dataStore, err := store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}
	defer dataStore.Close()

	objects, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		util.Fatal("failed to init object store", "err", err)
	}

	embedder, err := ai.NewEmbedder(ai.ProviderConfig{
		Provider:   cfg.EmbeddingProvider,
		BaseURL:    cfg.EmbeddingBaseURL,
		APIKey:     cfg.EmbeddingAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDim,
	})
	if err != nil {
		util.Fatal("failed to init embedder", "err", err)
	}
	client, err := ai.NewEmbeddingClient(ai.EmbeddingClientConfig{
		Embedder:          embedder,
		Model:             cfg.EmbeddingModel,
		Dimensions:        cfg.EmbeddingDim,
		RequestsPerSecond: cfg.EmbeddingRPS,
		Metrics:           m,
	})
	if err != nil {
		util.Fatal("failed to init embedding client", "err", err)
	}
	generator, err := ai.NewGenerator(ai.ProviderConfig{
		Provider: cfg.GenerationProvider,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Model:    cfg.GenerationModel,
	})
	if err != nil {
		util.Fatal("failed to init generator", "err", err)
	}

	splitter, err := textsplit.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		util.Fatal("failed to init splitter", "err", err)
	}
	pipeline, err := ingest.New(ingest.Config{
		Store:  dataStore,
		Client: client,
		Extractor: extract.New(extract.Options{
			UsePdftotext: cfg.UsePdftotext,
			Timeout:      time.Duration(cfg.PdftotextTimeoutSec) * time.Second,
		}),
		Splitter:   splitter,
		Generator:  generator,
		BatchSize:  cfg.BatchSize,
		BatchDelay: time.Duration(cfg.BatchDelayMillis) * time.Millisecond,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		util.Fatal("failed to init pipeline", "err", err)
	}

	jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.QueueName,
		Group:      cfg.QueueGroup,
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
		Logger:     logger,
	})
	if err != nil {
		util.Fatal("failed to init queue", "err", err)
	}

	appCore, err := app.New(app.Config{
		Store:          dataStore,
		Objects:        objects,
		Queue:          jobs,
		Pipeline:       pipeline,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		MaxAttempts:    cfg.QueueMaxRetries,
		Logger:         logger,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}
	jobs.Start(ctx, cfg.QueueConcurrency, appCore.HandleJob)

	httpServer, err := server.New(server.Config{
		App:        appCore,
		AdminToken: cfg.AdminToken,
		Metrics:    m,
		Ready:      []server.Pinger{jobs},
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("ingest server listening", "addr", addr, "workers", cfg.QueueConcurrency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
	stop()
	if err := jobs.Close(); err != nil {
		logger.Error("queue close", "err", err)
	}
}
