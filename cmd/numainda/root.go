package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"numainda/internal/util"
	"numainda/pkg/ai"
	"numainda/pkg/extract"
	"numainda/pkg/ingest"
	"numainda/pkg/store"
)

// settings holds connection options shared by every subcommand. Defaults come
// from the same environment variables the services read.
type settings struct {
	DatabaseURL string
	LogLevel    string

	EmbeddingProvider string
	EmbeddingBaseURL  string
	EmbeddingAPIKey   string
	EmbeddingModel    string
	EmbeddingDim      int

	GenerationProvider string
	GenerationBaseURL  string
	GenerationAPIKey   string
	GenerationModel    string

	UsePdftotext bool
}

// backend is what a subcommand works against.
type backend struct {
	Store     store.Store
	Client    *ai.EmbeddingClient
	Extractor ingest.Extractor
	Generator ai.TextGenerator
	Logger    *slog.Logger
	Close     func() error
}

type openFunc func(ctx context.Context, s settings) (*backend, error)

func newRootCmd(open openFunc) *cobra.Command {
	s := settings{}
	root := &cobra.Command{
		Use:           "numainda",
		Short:         "Ingest and search Pakistani legal documents",
		SilenceUsage:  true,
	}

	f := root.PersistentFlags()
	f.StringVar(&s.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres DSN; empty uses an in-memory store for this run")
	f.StringVar(&s.LogLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")
	f.StringVar(&s.EmbeddingProvider, "embedding-provider", envOr("EMBEDDING_PROVIDER", "openai"), "embedding provider (openai, gemini, ollama, openai-compat)")
	f.StringVar(&s.EmbeddingBaseURL, "embedding-base-url", os.Getenv("EMBEDDING_BASE_URL"), "embedding API base URL")
	f.StringVar(&s.EmbeddingAPIKey, "embedding-api-key", os.Getenv("EMBEDDING_API_KEY"), "embedding API key")
	f.StringVar(&s.EmbeddingModel, "embedding-model", envOr("EMBEDDING_MODEL", "text-embedding-ada-002"), "embedding model")
	f.IntVar(&s.EmbeddingDim, "embedding-dim", envInt("NUMAINDA_EMBEDDING_DIM", 1536), "embedding dimension")
	f.StringVar(&s.GenerationProvider, "generation-provider", os.Getenv("GENERATION_PROVIDER"), "summary provider; empty skips bill and proceeding summaries")
	f.StringVar(&s.GenerationBaseURL, "generation-base-url", os.Getenv("GENERATION_BASE_URL"), "generation API base URL")
	f.StringVar(&s.GenerationAPIKey, "generation-api-key", os.Getenv("GENERATION_API_KEY"), "generation API key")
	f.StringVar(&s.GenerationModel, "generation-model", os.Getenv("GENERATION_MODEL"), "generation model")
	f.BoolVar(&s.UsePdftotext, "pdftotext", true, "try pdftotext before the built-in PDF parser")

	// with wraps a subcommand so it gets an opened backend that is closed afterwards.
	with := func(run func(cmd *cobra.Command, args []string, b *backend) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context(), s)
			if err != nil {
				return err
			}
			if b.Close != nil {
				defer b.Close()
			}
			return run(cmd, args, b)
		}
	}

	root.AddCommand(newIngestCmd(with))
	root.AddCommand(newQueryCmd(with))
	root.AddCommand(newDocumentsCmd(with))
	return root
}

type wrapFunc func(run func(cmd *cobra.Command, args []string, b *backend) error) func(*cobra.Command, []string) error

func openBackend(_ context.Context, s settings) (*backend, error) {
	logger, cleanup := util.InitLogger(s.LogLevel, "numainda", "")

	b := &backend{Logger: logger, Extractor: extract.New(extract.Options{UsePdftotext: s.UsePdftotext})}
	closers := []func() error{}
	if cleanup != nil {
		closers = append(closers, func() error { cleanup(); return nil })
	}
	b.Close = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if s.DatabaseURL != "" {
		gs, err := store.NewGormStore(s.DatabaseURL, store.WithEmbeddingDim(s.EmbeddingDim))
		if err != nil {
			return nil, err
		}
		closers = append(closers, gs.Close)
		b.Store = gs
	} else {
		logger.Warn("no database url, using in-memory store")
		b.Store = store.NewMemoryStore(s.EmbeddingDim)
	}

	embedder, err := ai.NewEmbedder(ai.ProviderConfig{
		Provider:   s.EmbeddingProvider,
		BaseURL:    s.EmbeddingBaseURL,
		APIKey:     s.EmbeddingAPIKey,
		Model:      s.EmbeddingModel,
		Dimensions: s.EmbeddingDim,
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Client, err = ai.NewEmbeddingClient(ai.EmbeddingClientConfig{
		Embedder:   embedder,
		Model:      s.EmbeddingModel,
		Dimensions: s.EmbeddingDim,
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	if strings.TrimSpace(s.GenerationProvider) != "" {
		generator, err := ai.NewGenerator(ai.ProviderConfig{
			Provider: s.GenerationProvider,
			BaseURL:  s.GenerationBaseURL,
			APIKey:   s.GenerationAPIKey,
			Model:    s.GenerationModel,
		})
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("generator: %w", err)
		}
		b.Generator = generator
	}
	return b, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return fallback
}
