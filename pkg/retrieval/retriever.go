// Package retrieval ranks stored chunks against a natural-language query.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"numainda/internal/metrics"
	"numainda/pkg/ai"
	"numainda/pkg/domain"
	"numainda/pkg/store"
)

const (
	DefaultThreshold = 0.75
	DefaultTopK      = 6
)

// Searcher is the read side of the vector store used by the Retriever.
type Searcher interface {
	SearchEmbeddings(ctx context.Context, query store.SearchQuery) ([]store.ScoredEmbedding, error)
	GetDocumentsByIDs(ctx context.Context, ids []string) (map[string]domain.Document, error)
	EmbeddingDim() int
}

type Option func(*Retriever)

// WithThreshold sets the minimum similarity; hits must score strictly above it.
func WithThreshold(threshold float64) Option {
	return func(r *Retriever) { r.threshold = threshold }
}

// WithTopK caps the number of results.
func WithTopK(k int) Option {
	return func(r *Retriever) { r.topK = k }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Retriever embeds a query and returns the most similar chunks with their
// parent document attached. It is read-only and safe for concurrent use.
type Retriever struct {
	client    *ai.EmbeddingClient
	searcher  Searcher
	threshold float64
	topK      int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New binds a retriever to the embedding client used at ingestion time. The
// client must produce vectors of the store's dimension.
func New(client *ai.EmbeddingClient, searcher Searcher, opts ...Option) (*Retriever, error) {
	if client == nil {
		return nil, errors.New("embedding client required")
	}
	if searcher == nil {
		return nil, errors.New("searcher required")
	}
	if dim := searcher.EmbeddingDim(); dim > 0 && dim != client.Dimensions() {
		return nil, fmt.Errorf("embedding dimension mismatch: client %s produces %d, store holds %d", client.Model(), client.Dimensions(), dim)
	}
	r := &Retriever{
		client:    client,
		searcher:  searcher,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.threshold < 0 || r.threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be within [0, 1], got %v", r.threshold)
	}
	if r.topK <= 0 {
		return nil, fmt.Errorf("top-k must be > 0, got %d", r.topK)
	}
	return r, nil
}

func (r *Retriever) Threshold() float64 { return r.threshold }

func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns up to TopK chunks scoring above the threshold, best first.
// No match yields an empty slice and a nil error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	start := time.Now()
	results, err := r.retrieve(ctx, query)
	top := 0.0
	if len(results) > 0 {
		top = results[0].Similarity
	}
	r.metrics.ObserveRetrieval(len(results), top, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("retrieval complete", "results", len(results), "top_similarity", top, "duration", time.Since(start))
	return results, nil
}

func (r *Retriever) retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query required", domain.ErrValidation)
	}
	vec, err := r.client.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := r.searcher.SearchEmbeddings(ctx, store.SearchQuery{
		Vector:        vec,
		Model:         r.client.Model(),
		MinSimilarity: r.threshold,
		Limit:         r.topK,
	})
	if err != nil {
		return nil, err
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.Similarity > r.threshold {
			kept = append(kept, h)
		}
	}
	store.SortScored(kept)
	if len(kept) > r.topK {
		kept = kept[:r.topK]
	}
	if len(kept) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	ids := make([]string, 0, len(kept))
	seen := make(map[string]struct{}, len(kept))
	for _, h := range kept {
		if _, ok := seen[h.Record.ResourceID]; ok {
			continue
		}
		seen[h.Record.ResourceID] = struct{}{}
		ids = append(ids, h.Record.ResourceID)
	}
	docs, err := r.searcher.GetDocumentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievedChunk, 0, len(kept))
	for _, h := range kept {
		item := domain.RetrievedChunk{
			Content:    h.Record.Content,
			Similarity: h.Similarity,
			DocumentID: h.Record.ResourceID,
			PageNumber: h.Record.Metadata.PageNumber,
			Section:    h.Record.Metadata.Section,
			Timestamp:  h.Record.Metadata.Timestamp,
		}
		if doc, ok := docs[h.Record.ResourceID]; ok {
			title, typ := doc.Title, doc.Type
			item.DocumentTitle = &title
			item.DocumentType = &typ
		} else {
			r.logger.Warn("retrieved chunk has no parent document", "resource_id", h.Record.ResourceID, "embedding_id", h.Record.ID)
		}
		results = append(results, item)
	}
	return results, nil
}
