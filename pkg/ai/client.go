package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"numainda/internal/metrics"
	"numainda/pkg/domain"
)

// EmbeddingClientConfig binds a provider to the model identity that every
// stored vector must share.
type EmbeddingClientConfig struct {
	Embedder   Embedder
	Model      string
	Dimensions int
	// RequestsPerSecond paces outgoing calls; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
	Metrics           *metrics.Metrics
}

// EmbeddingClient is the single embedding dependency shared by ingestion and
// retrieval. It is safe for concurrent use.
type EmbeddingClient struct {
	embedder Embedder
	model    string
	dim      int
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
}

// NewEmbeddingClient validates the model identity up front.
func NewEmbeddingClient(cfg EmbeddingClientConfig) (*EmbeddingClient, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("embedding model required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimension must be > 0, got %d", cfg.Dimensions)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &EmbeddingClient{
		embedder: cfg.Embedder,
		model:    model,
		dim:      cfg.Dimensions,
		limiter:  limiter,
		metrics:  cfg.Metrics,
	}, nil
}

// Model names the embedding model; stored vectors are tagged with it.
func (c *EmbeddingClient) Model() string { return c.model }

// Dimensions is the fixed vector length produced by the model.
func (c *EmbeddingClient) Dimensions() int { return c.dim }

// Embed embeds one chunk of corpus text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskRetrievalDocument)
}

// EmbedQuery embeds a user query with the same model as the corpus.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskRetrievalQuery)
}

func (c *EmbeddingClient) embed(ctx context.Context, text, task string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: embedding text required", domain.ErrValidation)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: wait for rate limit: %w", domain.ErrEmbedding, err)
		}
	}
	start := time.Now()
	vec, err := c.embedder.EmbedText(ctx, text, task)
	if err == nil && len(vec) != c.dim {
		err = fmt.Errorf("dimension mismatch: model %s returned %d values, want %d", c.model, len(vec), c.dim)
	}
	c.metrics.ObserveEmbedding(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return vec, nil
}
