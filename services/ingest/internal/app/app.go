package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"numainda/pkg/domain"
	"numainda/pkg/ingest"
	"numainda/pkg/queue"
	"numainda/pkg/storage"
	"numainda/pkg/store"
)

const (
	defaultMaxUploadBytes = 50 << 20
	defaultPresignExpiry  = 15 * time.Minute
	defaultMaxAttempts    = 3
	pdfMagic              = "%PDF-"
)

// Queue is the job queue used to hand uploads to workers.
type Queue interface {
	Enqueue(ctx context.Context, uploadID string) (queue.JobStatus, error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
}

// Ingester runs the ingestion pipeline for one document.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Config holds runtime dependencies.
type Config struct {
	Store    store.Store
	Objects  storage.ObjectStore
	Queue    Queue
	Pipeline Ingester
	// MaxUploadBytes caps accepted PDFs; 0 means 50 MiB.
	MaxUploadBytes int64
	// MaxAttempts must match the queue's retry limit so the last attempt
	// marks the upload failed.
	MaxAttempts   int
	PresignExpiry time.Duration
	Logger        *slog.Logger
}

// App accepts admin uploads and processes them off the queue.
type App struct {
	store          store.Store
	objects        storage.ObjectStore
	queue          Queue
	pipeline       Ingester
	maxUploadBytes int64
	maxAttempts    int
	presignExpiry  time.Duration
	logger         *slog.Logger
}

// UploadRequest is one admin upload.
type UploadRequest struct {
	FileName string
	Content  io.Reader
	Metadata domain.UploadMetadata
}

// UploadResult pairs the stored upload with its queued job.
type UploadResult struct {
	Upload domain.Upload    `json:"upload"`
	Job    queue.JobStatus `json:"job"`
}

// New validates cfg.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("queue required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:          cfg.Store,
		objects:        cfg.Objects,
		queue:          cfg.Queue,
		pipeline:       cfg.Pipeline,
		maxUploadBytes: maxUpload,
		maxAttempts:    maxAttempts,
		presignExpiry:  expiry,
		logger:         logger,
	}, nil
}

// MaxUploadBytes is the largest PDF Upload accepts.
func (a *App) MaxUploadBytes() int64 { return a.maxUploadBytes }

// Upload stores the PDF, records the upload and enqueues it for ingestion.
func (a *App) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if req.Content == nil {
		return UploadResult{}, fmt.Errorf("%w: file required", domain.ErrValidation)
	}
	data, err := io.ReadAll(io.LimitReader(req.Content, a.maxUploadBytes+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: read upload: %w", domain.ErrValidation, err)
	}
	if int64(len(data)) > a.maxUploadBytes {
		return UploadResult{}, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrValidation, a.maxUploadBytes)
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return UploadResult{}, fmt.Errorf("%w: only PDF files are accepted", domain.ErrValidation)
	}
	normalized, err := ingest.Validate(ingest.Request{
		File:          data,
		FileName:      req.FileName,
		Title:         req.Metadata.Title,
		Type:          req.Metadata.Type,
		Date:          req.Metadata.Date,
		BillNumber:    req.Metadata.BillNumber,
		SessionNumber: req.Metadata.SessionNumber,
	})
	if err != nil {
		return UploadResult{}, err
	}

	id := uuid.NewString()
	key := buildStorageKey(id, normalized.FileName)
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return UploadResult{}, fmt.Errorf("save file: %w", err)
	}
	upload, err := a.store.CreateUpload(ctx, domain.Upload{
		ID:               id,
		OriginalFileName: filepath.Base(normalized.FileName),
		FileSize:         int64(len(data)),
		StorageKey:       key,
		Status:           domain.UploadPending,
		Metadata: domain.UploadMetadata{
			Title:         normalized.Title,
			Type:          normalized.Type,
			Date:          normalized.Date,
			BillNumber:    normalized.BillNumber,
			SessionNumber: normalized.SessionNumber,
		},
	})
	if err != nil {
		_ = a.objects.Delete(context.WithoutCancel(ctx), key)
		return UploadResult{}, err
	}
	job, err := a.queue.Enqueue(ctx, upload.ID)
	if err != nil {
		msg := "enqueue failed: " + err.Error()
		a.updateUpload(ctx, upload.ID, store.UploadUpdate{Status: statusPtr(domain.UploadFailed), Error: &msg})
		return UploadResult{}, fmt.Errorf("%w: enqueue upload: %w", domain.ErrStorage, err)
	}
	a.logger.Info("upload queued", "upload_id", upload.ID, "job_id", job.ID, "type", upload.Metadata.Type, "bytes", upload.FileSize)
	return UploadResult{Upload: upload, Job: job}, nil
}

// HandleJob is the queue worker handler. Failures after a document row
// exists, and input errors, are permanent so a retry cannot duplicate
// the document.
func (a *App) HandleJob(ctx context.Context, job queue.JobStatus) error {
	logger := a.logger.With("job_id", job.ID, "upload_id", job.UploadID, "attempt", job.Attempts)
	upload, ok, err := a.store.GetUpload(ctx, job.UploadID)
	if err != nil {
		return err
	}
	if !ok {
		return queue.Permanent(fmt.Errorf("%w: upload %s", domain.ErrNotFound, job.UploadID))
	}
	if upload.Status == domain.UploadCompleted {
		logger.Info("upload already processed, skipping")
		return nil
	}
	// A document row from an earlier attempt, or a final failure, means
	// running the pipeline again would store the passages twice.
	if upload.DocumentID != "" || upload.Status == domain.UploadFailed {
		logger.Warn("upload already attempted, not reprocessing", "status", upload.Status, "document_id", upload.DocumentID)
		if upload.Status != domain.UploadFailed {
			msg := "interrupted after document " + upload.DocumentID + " was created; upload again to retry"
			a.updateUpload(ctx, upload.ID, store.UploadUpdate{Status: statusPtr(domain.UploadFailed), Error: &msg})
		}
		return queue.Permanent(fmt.Errorf("upload %s was already attempted", upload.ID))
	}

	a.updateUpload(ctx, upload.ID, store.UploadUpdate{
		Status:   statusPtr(domain.UploadProcessing),
		Progress: intPtr(10),
		Error:    strPtr(""),
	})

	data, err := a.readObject(ctx, upload.StorageKey)
	if err != nil {
		return a.fail(ctx, logger, upload.ID, job, "", err)
	}
	a.updateUpload(ctx, upload.ID, store.UploadUpdate{Progress: intPtr(20)})

	res, err := a.pipeline.Ingest(ctx, ingest.Request{
		File:          data,
		FileName:      upload.OriginalFileName,
		Title:         upload.Metadata.Title,
		Type:          upload.Metadata.Type,
		Date:          upload.Metadata.Date,
		BillNumber:    upload.Metadata.BillNumber,
		SessionNumber: upload.Metadata.SessionNumber,
		OnDocument: func(doc domain.Document) {
			a.updateUpload(ctx, upload.ID, store.UploadUpdate{DocumentID: &doc.ID})
		},
		OnProgress: func(embedded, total int) {
			a.updateUpload(ctx, upload.ID, store.UploadUpdate{Progress: intPtr(embedProgress(embedded, total))})
		},
	})
	if err != nil {
		docID := ""
		if res.Document != nil {
			docID = res.Document.ID
		}
		return a.fail(ctx, logger, upload.ID, job, docID, err)
	}

	docID := res.Document.ID
	a.updateUpload(ctx, upload.ID, store.UploadUpdate{
		Status:     statusPtr(domain.UploadCompleted),
		Progress:   intPtr(100),
		DocumentID: &docID,
	})
	logger.Info("upload processed", "document_id", docID, "chunks", res.Document.EmbeddedChunks)
	return nil
}

func (a *App) fail(ctx context.Context, logger *slog.Logger, uploadID string, job queue.JobStatus, docID string, err error) error {
	permanent := docID != "" ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrExtraction) ||
		errors.Is(err, domain.ErrEmbedding) ||
		errors.Is(err, domain.ErrNotFound)
	final := permanent || job.Attempts >= a.maxAttempts

	msg := err.Error()
	update := store.UploadUpdate{Error: &msg}
	if docID != "" {
		update.DocumentID = &docID
	}
	if final {
		update.Status = statusPtr(domain.UploadFailed)
	} else {
		update.Status = statusPtr(domain.UploadPending)
	}
	a.updateUpload(ctx, uploadID, update)
	logger.Warn("upload processing failed", "err", err, "final", final, "document_id", docID)
	if permanent {
		return queue.Permanent(err)
	}
	return err
}

func (a *App) readObject(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read object %s: %w", domain.ErrStorage, key, err)
	}
	return data, nil
}

func (a *App) updateUpload(ctx context.Context, id string, update store.UploadUpdate) {
	if err := a.store.UpdateUpload(context.WithoutCancel(ctx), id, update); err != nil {
		a.logger.Error("update upload failed", "upload_id", id, "err", err)
	}
}

// ListUploads returns the most recent uploads first.
func (a *App) ListUploads(ctx context.Context, limit int) ([]domain.Upload, error) {
	return a.store.ListUploads(ctx, limit)
}

func (a *App) GetUpload(ctx context.Context, id string) (domain.Upload, bool, error) {
	return a.store.GetUpload(ctx, id)
}

// UploadFileURL returns a short-lived download link for the stored PDF.
func (a *App) UploadFileURL(ctx context.Context, id string) (string, error) {
	upload, ok, err := a.store.GetUpload(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: upload %s", domain.ErrNotFound, id)
	}
	return a.objects.PresignGet(ctx, upload.StorageKey, a.presignExpiry)
}

func (a *App) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return a.store.ListDocuments(ctx)
}

func (a *App) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	return a.store.GetDocument(ctx, id)
}

// DeleteDocument removes a document; its embeddings go with it.
func (a *App) DeleteDocument(ctx context.Context, id string) error {
	return a.store.DeleteDocument(ctx, id)
}

func (a *App) GetJob(ctx context.Context, id string) (queue.JobStatus, bool, error) {
	return a.queue.GetJob(ctx, id)
}

// embedProgress maps embedding progress onto 20..95 of the upload bar.
func embedProgress(embedded, total int) int {
	if total <= 0 {
		return 95
	}
	return 20 + embedded*75/total
}

func buildStorageKey(uploadID, filename string) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "document.pdf"
	}
	return path.Join("uploads", uploadID, name)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func statusPtr(s domain.UploadStatus) *domain.UploadStatus { return &s }
func intPtr(n int) *int                                    { return &n }
func strPtr(s string) *string                              { return &s }
