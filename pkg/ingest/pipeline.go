// Package ingest turns an uploaded PDF into a stored document and its chunk
// embeddings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"numainda/internal/metrics"
	"numainda/pkg/ai"
	"numainda/pkg/domain"
	"numainda/pkg/extract"
	"numainda/pkg/store"
	"numainda/pkg/tagger"
	"numainda/pkg/textsplit"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second

	successMessage = "Document successfully uploaded and processed"
	dateLayout     = "2006-01-02"
)

// Extractor turns file bytes into page text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (extract.Result, error)
}

// Store is the write side of persistence used during ingestion.
type Store interface {
	CreateDocument(ctx context.Context, doc store.NewDocument) (domain.Document, error)
	InsertEmbeddings(ctx context.Context, records []store.NewEmbedding) error
	UpdateIngestProgress(ctx context.Context, id string, progress store.IngestProgress) error
	CreateBill(ctx context.Context, bill domain.Bill) (domain.Bill, error)
	CreateProceeding(ctx context.Context, p domain.Proceeding) (domain.Proceeding, error)
	EmbeddingDim() int
}

// Config wires a Pipeline. Store, Client and Extractor are required.
type Config struct {
	Store     Store
	Client    *ai.EmbeddingClient
	Extractor Extractor
	Splitter  *textsplit.Splitter
	Tagger    *tagger.Tagger
	// Generator writes bill and proceeding summaries; nil skips them.
	Generator ai.TextGenerator
	// BatchSize is the number of chunks embedded concurrently; 0 means DefaultBatchSize.
	BatchSize int
	// BatchDelay is the pause between batches; 0 means DefaultBatchDelay, negative disables it.
	BatchDelay time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Request is one document submitted for ingestion.
type Request struct {
	File          []byte
	FileName      string
	Title         string
	Type          domain.DocumentType
	Date          string
	BillNumber    string
	SessionNumber string
	// OnProgress, when set, is called after each stored batch.
	OnProgress func(embedded, total int)
	// OnDocument, when set, is called once the document row exists and
	// before any embedding is attempted.
	OnDocument func(doc domain.Document)
}

// Result reports the outcome. Document is set whenever a document row was
// created, including on partial failure.
type Result struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Document   *domain.Document   `json:"document,omitempty"`
	Bill       *domain.Bill       `json:"bill,omitempty"`
	Proceeding *domain.Proceeding `json:"proceeding,omitempty"`
}

// Pipeline runs extraction, chunking, tagging and embedding for one document
// at a time per call. Separate calls may run concurrently.
type Pipeline struct {
	store      Store
	client     *ai.EmbeddingClient
	extractor  Extractor
	splitter   *textsplit.Splitter
	tagger     *tagger.Tagger
	generator  ai.TextGenerator
	batchSize  int
	batchDelay time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New validates cfg and builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Client == nil {
		return nil, errors.New("embedding client required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("extractor required")
	}
	if dim := cfg.Store.EmbeddingDim(); dim > 0 && dim != cfg.Client.Dimensions() {
		return nil, fmt.Errorf("embedding dimension mismatch: client %s produces %d, store holds %d", cfg.Client.Model(), cfg.Client.Dimensions(), dim)
	}
	splitter := cfg.Splitter
	if splitter == nil {
		var err error
		splitter, err = textsplit.New(textsplit.DefaultSize, textsplit.DefaultOverlap)
		if err != nil {
			return nil, err
		}
	}
	tg := cfg.Tagger
	if tg == nil {
		tg = tagger.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	delay := cfg.BatchDelay
	switch {
	case delay == 0:
		delay = DefaultBatchDelay
	case delay < 0:
		delay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      cfg.Store,
		client:     cfg.Client,
		extractor:  cfg.Extractor,
		splitter:   splitter,
		tagger:     tg,
		generator:  cfg.Generator,
		batchSize:  batchSize,
		batchDelay: delay,
		metrics:    cfg.Metrics,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// Ingest stores the document and its embeddings. On an embedding or storage
// failure after the document row exists, the document is marked partial or
// failed and returned in the Result alongside the error.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, status, err := p.ingest(ctx, req)
	if status != "" {
		p.metrics.ObserveIngest(string(status), time.Since(start))
	}
	if err != nil {
		res.Success = false
		res.Message = err.Error()
		return res, err
	}
	res.Success = true
	res.Message = successMessage
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, req Request) (Result, domain.IngestStatus, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return Result{}, "", err
	}
	logger := p.logger.With("title", req.Title, "type", req.Type, "file", req.FileName)

	extracted, err := p.extractor.Extract(ctx, req.File)
	if err != nil {
		return Result{}, "", err
	}
	content := extracted.Text()
	chunks := p.chunk(content, extracted.PageMap())
	if len(chunks) == 0 {
		return Result{}, "", fmt.Errorf("%w: no text to index", domain.ErrExtraction)
	}
	logger.Info("document extracted", "pages", len(extracted.Pages), "method", extracted.Method, "chunks", len(chunks))

	doc, err := p.store.CreateDocument(ctx, store.NewDocument{
		Title:            req.Title,
		Type:             req.Type,
		Content:          content,
		OriginalFileName: req.FileName,
		Status:           domain.IngestProcessing,
		TotalChunks:      len(chunks),
		EmbeddingModel:   p.client.Model(),
	})
	if err != nil {
		return Result{}, "", err
	}
	logger = logger.With("document_id", doc.ID)
	if req.OnDocument != nil {
		req.OnDocument(doc)
	}

	embedded, err := p.embedChunks(ctx, doc.ID, chunks, req.OnProgress)
	if err != nil {
		status := domain.IngestFailed
		if embedded > 0 {
			status = domain.IngestPartial
		}
		p.finish(ctx, logger, &doc, status, embedded, err.Error())
		logger.Error("ingestion aborted", "status", status, "embedded", embedded, "total", len(chunks), "err", err)
		return Result{Document: &doc}, status, err
	}
	p.finish(ctx, logger, &doc, domain.IngestComplete, embedded, "")
	logger.Info("document ingested", "chunks", embedded)

	res := Result{Document: &doc}
	p.summarize(ctx, logger, req, doc, &res)
	return res, domain.IngestComplete, nil
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, doc *domain.Document, status domain.IngestStatus, embedded int, errMsg string) {
	doc.IngestStatus = status
	doc.EmbeddedChunks = embedded
	doc.IngestError = errMsg
	if err := p.store.UpdateIngestProgress(context.WithoutCancel(ctx), doc.ID, store.IngestProgress{
		Status:         status,
		EmbeddedChunks: embedded,
		Error:          errMsg,
	}); err != nil {
		logger.Error("record ingest status failed", "status", status, "err", err)
	}
}

func (p *Pipeline) chunk(content string, pages textsplit.PageMap) []domain.Chunk {
	var chunks []domain.Chunk
	for c := range p.splitter.All(content) {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		meta := p.tagger.Tag(c.Text)
		chunks = append(chunks, domain.Chunk{
			Index:       c.Index,
			PageContent: c.Text,
			Metadata: domain.ChunkMetadata{
				PageNumber: pages.PageOf(c),
				Section:    meta.Section,
				Timestamp:  meta.Timestamp,
			},
		})
	}
	return chunks
}

// embedChunks embeds batches in order; chunks inside a batch are embedded
// concurrently and stored together. It returns how many embeddings were
// stored before any failure.
func (p *Pipeline) embedChunks(ctx context.Context, documentID string, chunks []domain.Chunk, onProgress func(int, int)) (int, error) {
	embedded := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		if start > 0 && p.batchDelay > 0 {
			if err := p.sleep(ctx, p.batchDelay); err != nil {
				return embedded, err
			}
		}
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		vectors := make([][]float32, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, chunk := range batch {
			g.Go(func() error {
				vec, err := p.client.Embed(gctx, chunk.PageContent)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", chunk.Index, err)
				}
				vectors[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return embedded, err
		}

		records := make([]store.NewEmbedding, 0, len(batch))
		for i, chunk := range batch {
			records = append(records, store.NewEmbedding{
				ResourceID: documentID,
				ChunkIndex: chunk.Index,
				Content:    chunk.PageContent,
				Embedding:  vectors[i],
				Model:      p.client.Model(),
				Metadata:   chunk.Metadata,
			})
		}
		if err := p.store.InsertEmbeddings(ctx, records); err != nil {
			return embedded, err
		}
		embedded += len(batch)
		p.metrics.ObserveEmbeddedChunks(len(batch))

		if embedded < len(chunks) {
			if err := p.store.UpdateIngestProgress(ctx, documentID, store.IngestProgress{
				Status:         domain.IngestProcessing,
				EmbeddedChunks: embedded,
			}); err != nil {
				p.logger.Warn("record ingest progress failed", "document_id", documentID, "err", err)
			}
		}
		if onProgress != nil {
			onProgress(embedded, len(chunks))
		}
	}
	return embedded, nil
}

// Validate checks and normalizes req the way Ingest does, without running
// the pipeline. Errors wrap domain.ErrValidation.
func Validate(req Request) (Request, error) {
	return normalizeRequest(req)
}

func normalizeRequest(req Request) (Request, error) {
	if len(req.File) == 0 {
		return req, fmt.Errorf("%w: file required", domain.ErrValidation)
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" && req.FileName != "" {
		req.Title = strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName))
	}
	if req.Title == "" {
		return req, fmt.Errorf("%w: title required", domain.ErrValidation)
	}
	if req.FileName == "" {
		req.FileName = req.Title + ".pdf"
	}
	if req.Type == "" {
		return req, fmt.Errorf("%w: type required", domain.ErrValidation)
	}
	typ, ok := domain.ParseDocumentType(string(req.Type))
	if !ok {
		return req, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, req.Type)
	}
	req.Type = typ
	req.Date = strings.TrimSpace(req.Date)
	if typ == domain.TypeParliamentaryBulletin {
		if req.Date == "" {
			return req, fmt.Errorf("%w: date is required for parliamentary bulletins", domain.ErrValidation)
		}
		if _, err := time.Parse(dateLayout, req.Date); err != nil {
			return req, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", domain.ErrValidation, req.Date)
		}
	}
	req.BillNumber = strings.TrimSpace(req.BillNumber)
	req.SessionNumber = strings.TrimSpace(req.SessionNumber)
	return req, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
