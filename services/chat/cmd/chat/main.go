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
	"numainda/internal/ratelimit"
	"numainda/internal/util"
	"numainda/pkg/ai"
	"numainda/pkg/retrieval"
	"numainda/pkg/store"
	"numainda/services/chat/internal/app"
	"numainda/services/chat/internal/config"
	"numainda/services/chat/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := util.InitLogger(cfg.LogLevel, "chat", cfg.LogsDir, "../../logs")
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
	retriever, err := retrieval.New(client, dataStore,
		retrieval.WithThreshold(cfg.SimilarityThreshold),
		retrieval.WithTopK(cfg.TopK),
		retrieval.WithMetrics(m),
		retrieval.WithLogger(logger),
	)
	if err != nil {
		util.Fatal("failed to init retriever", "err", err)
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

	appCore, err := app.New(app.Config{
		Store:        dataStore,
		Retriever:    retriever,
		Generator:    generator,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerWindow, window)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		localLimiter, err := ratelimit.NewLocalLimiter(cfg.RateLimitPerWindow, window)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
		logger.Warn("redis not configured, rate limits are per instance")
		limiter = localLimiter
	}

	proxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		util.Fatal("invalid trusted proxies", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Metrics:        m,
		Limiter:        limiter,
		TrustedProxies: proxies,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("chat server listening", "addr", addr, "threshold", retriever.Threshold(), "top_k", retriever.TopK())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
