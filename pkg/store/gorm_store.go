package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"numainda/pkg/domain"
)

const migrateLockID int64 = 61426142

const (
	defaultEmbeddingDim      = 1536
	canonicalEmbeddingDimEnv = "NUMAINDA_EMBEDDING_DIM"
	insertBatchSize          = 200
)

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the canonical embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormStore implements Store using GORM + Postgres with pgvector.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormStore opens the DB and runs migrations under an advisory lock.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim, err := resolveEmbeddingDim(opts.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %w", domain.ErrStorage, err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return migrate(tx, embeddingDim)
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

func migrate(tx *gorm.DB, embeddingDim int) error {
	if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("create pgvector extension: %w", err)
	}
	if err := tx.AutoMigrate(&DocumentModel{}, &EmbeddingModel{}, &UploadModel{}, &BillModel{}, &ProceedingModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(fmt.Sprintf(`
		DO $$
		BEGIN
		IF EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'embedding_models' AND column_name = 'embedding'
		) THEN
			ALTER TABLE embedding_models ALTER COLUMN embedding TYPE vector(%d);
		END IF;
		END $$;
	`, embeddingDim)).Error; err != nil {
		return fmt.Errorf("alter embedding type: %w", err)
	}
	if err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS embedding_models_embedding_hnsw_idx
		ON embedding_models USING hnsw (embedding vector_cosine_ops)
	`).Error; err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}
	if err := tx.Exec(documentForeignKeysSQL).Error; err != nil {
		return fmt.Errorf("ensure document foreign keys: %w", err)
	}
	return nil
}

// documentForeignKeysSQL drops orphans and adds the document foreign keys once.
// Embeddings are deleted with their document; uploads, bills and proceedings
// keep their rows with document_id cleared.
const documentForeignKeysSQL = `
		DO $$
		BEGIN
			DELETE FROM embedding_models e
			WHERE NOT EXISTS (SELECT 1 FROM document_models d WHERE d.id = e.resource_id);
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'embedding_models'
				AND constraint_name = 'embedding_models_resource_id_fkey'
			) THEN
				ALTER TABLE embedding_models
				ADD CONSTRAINT embedding_models_resource_id_fkey
				FOREIGN KEY (resource_id) REFERENCES document_models(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'upload_models'
				AND constraint_name = 'upload_models_document_id_fkey'
			) THEN
				UPDATE upload_models u SET document_id = NULL
				WHERE document_id IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM document_models d WHERE d.id = u.document_id);
				ALTER TABLE upload_models
				ADD CONSTRAINT upload_models_document_id_fkey
				FOREIGN KEY (document_id) REFERENCES document_models(id) ON DELETE SET NULL;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'bill_models'
				AND constraint_name = 'bill_models_document_id_fkey'
			) THEN
				UPDATE bill_models b SET document_id = NULL
				WHERE document_id IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM document_models d WHERE d.id = b.document_id);
				ALTER TABLE bill_models
				ADD CONSTRAINT bill_models_document_id_fkey
				FOREIGN KEY (document_id) REFERENCES document_models(id) ON DELETE SET NULL;
			END IF;
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE table_schema = 'public'
				AND table_name = 'proceeding_models'
				AND constraint_name = 'proceeding_models_document_id_fkey'
			) THEN
				UPDATE proceeding_models p SET document_id = NULL
				WHERE document_id IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM document_models d WHERE d.id = p.document_id);
				ALTER TABLE proceeding_models
				ADD CONSTRAINT proceeding_models_document_id_fkey
				FOREIGN KEY (document_id) REFERENCES document_models(id) ON DELETE SET NULL;
			END IF;
		END $$;
	`

func resolveEmbeddingDim(configValue int) (int, error) {
	if configValue > 0 {
		return configValue, nil
	}
	raw := strings.TrimSpace(os.Getenv(canonicalEmbeddingDimEnv))
	if raw == "" {
		return defaultEmbeddingDim, nil
	}
	dim, err := strconv.Atoi(raw)
	if err != nil || dim <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", canonicalEmbeddingDimEnv, raw)
	}
	return dim, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EmbeddingDim reports the vector column dimension.
func (s *GormStore) EmbeddingDim() int { return s.embeddingDim }

// CreateDocument inserts a document and returns it with its assigned id.
func (s *GormStore) CreateDocument(ctx context.Context, doc NewDocument) (domain.Document, error) {
	now := time.Now().UTC()
	status := doc.Status
	if status == "" {
		status = domain.IngestPending
	}
	model := DocumentModel{
		ID:               uuid.NewString(),
		Title:            doc.Title,
		Type:             string(doc.Type),
		Content:          doc.Content,
		OriginalFileName: doc.OriginalFileName,
		IngestStatus:     string(status),
		TotalChunks:      doc.TotalChunks,
		EmbeddingModel:   doc.EmbeddingModel,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Document{}, storageErr("create document", err)
	}
	return documentFromModel(model), nil
}

// GetDocument returns a document including its content.
func (s *GormStore) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, storageErr("get document", err)
	}
	return documentFromModel(model), true, nil
}

// ListDocuments returns all documents newest first, without content.
func (s *GormStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).Omit("content").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, storageErr("list documents", err)
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// GetDocumentsByIDs returns the documents that exist among ids, keyed by id.
func (s *GormStore) GetDocumentsByIDs(ctx context.Context, ids []string) (map[string]domain.Document, error) {
	res := make(map[string]domain.Document, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	var models []DocumentModel
	if err := s.db.WithContext(ctx).Omit("content").Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, storageErr("get documents", err)
	}
	for _, m := range models {
		res[m.ID] = documentFromModel(m)
	}
	return res, nil
}

// UpdateIngestProgress records embedding progress and status.
func (s *GormStore) UpdateIngestProgress(ctx context.Context, id string, progress IngestProgress) error {
	updates := map[string]any{
		"embedded_chunks": progress.EmbeddedChunks,
		"ingest_error":    progress.Error,
		"updated_at":      time.Now().UTC(),
	}
	if progress.Status != "" {
		updates["ingest_status"] = string(progress.Status)
	}
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return storageErr("update ingest progress", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return nil
}

// DeleteDocument removes a document; embeddings go with it via FK cascade.
func (s *GormStore) DeleteDocument(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&DocumentModel{}, "id = ?", id)
	if res.Error != nil {
		return storageErr("delete document", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return nil
}

// InsertEmbeddings writes records in one transaction. Either every record is
// stored or none is.
func (s *GormStore) InsertEmbeddings(ctx context.Context, records []NewEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	models := make([]EmbeddingModel, 0, len(records))
	resourceIDs := make(map[string]struct{})
	for _, rec := range records {
		if err := s.validateEmbeddingDim(rec.Embedding); err != nil {
			return err
		}
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("%w: encode metadata: %v", domain.ErrValidation, err)
		}
		resourceIDs[rec.ResourceID] = struct{}{}
		models = append(models, EmbeddingModel{
			ID:         uuid.NewString(),
			ResourceID: rec.ResourceID,
			ChunkIndex: rec.ChunkIndex,
			Content:    rec.Content,
			Embedding:  pgvector.NewVector(rec.Embedding),
			Model:      rec.Model,
			Metadata:   meta,
			CreatedAt:  now,
		})
	}
	ids := make([]string, 0, len(resourceIDs))
	for id := range resourceIDs {
		ids = append(ids, id)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DocumentModel{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return storageErr("check resources", err)
		}
		if int(count) != len(ids) {
			return fmt.Errorf("%w: embedding references unknown document", domain.ErrNotFound)
		}
		if err := tx.CreateInBatches(&models, insertBatchSize).Error; err != nil {
			return storageErr("insert embeddings", err)
		}
		return nil
	})
}

// CountEmbeddings returns the number of stored records for a document.
func (s *GormStore) CountEmbeddings(ctx context.Context, resourceID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&EmbeddingModel{}).Where("resource_id = ?", resourceID).Count(&count).Error; err != nil {
		return 0, storageErr("count embeddings", err)
	}
	return int(count), nil
}

type scoredRow struct {
	ID         string
	ResourceID string
	ChunkIndex int
	Content    string
	Model      string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float64
}

// SearchEmbeddings ranks records by cosine similarity (1 - cosine distance).
// Equal scores fall back to insertion time, chunk index and id.
func (s *GormStore) SearchEmbeddings(ctx context.Context, query SearchQuery) ([]ScoredEmbedding, error) {
	if query.Limit <= 0 {
		return []ScoredEmbedding{}, nil
	}
	if err := s.validateEmbeddingDim(query.Vector); err != nil {
		return nil, err
	}
	var rows []scoredRow
	if err := searchEmbeddingsQuery(s.db.WithContext(ctx), query).Scan(&rows).Error; err != nil {
		return nil, storageErr("search embeddings", err)
	}
	res := make([]ScoredEmbedding, 0, len(rows))
	for _, row := range rows {
		var meta domain.ChunkMetadata
		if len(row.Metadata) > 0 {
			_ = json.Unmarshal(row.Metadata, &meta)
		}
		res = append(res, ScoredEmbedding{
			Record: domain.EmbeddingRecord{
				ID:         row.ID,
				ResourceID: row.ResourceID,
				ChunkIndex: row.ChunkIndex,
				Content:    row.Content,
				Model:      row.Model,
				Metadata:   meta,
				CreatedAt:  row.CreatedAt,
			},
			Similarity: row.Similarity,
		})
	}
	return res, nil
}

func searchEmbeddingsQuery(db *gorm.DB, query SearchQuery) *gorm.DB {
	vec := pgvector.NewVector(query.Vector)
	tx := db.Model(&EmbeddingModel{}).
		Select("id, resource_id, chunk_index, content, model, metadata, created_at, 1 - (embedding <=> ?) AS similarity", vec).
		Where("1 - (embedding <=> ?) > ?", vec, query.MinSimilarity)
	if strings.TrimSpace(query.Model) != "" {
		tx = tx.Where("model = ?", query.Model)
	}
	// One expression: gorm's Order ignores a bare clause.Expr, and merging
	// string columns into an expression OrderBy drops the expression.
	return tx.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "embedding <=> ? ASC, created_at ASC, chunk_index ASC, id ASC",
			Vars: []any{vec},
		}}).
		Limit(query.Limit)
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	return checkDim(embedding, s.embeddingDim)
}

// CreateUpload stores a new upload. An empty id is assigned by the store.
func (s *GormStore) CreateUpload(ctx context.Context, upload domain.Upload) (domain.Upload, error) {
	now := time.Now().UTC()
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.Status == "" {
		upload.Status = domain.UploadPending
	}
	upload.CreatedAt, upload.UpdatedAt = now, now
	model := uploadToModel(upload)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Upload{}, storageErr("create upload", err)
	}
	return upload, nil
}

// GetUpload returns one upload by id.
func (s *GormStore) GetUpload(ctx context.Context, id string) (domain.Upload, bool, error) {
	var model UploadModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Upload{}, false, nil
		}
		return domain.Upload{}, false, storageErr("get upload", err)
	}
	return uploadFromModel(model), true, nil
}

// ListUploads returns the latest uploads, newest first.
func (s *GormStore) ListUploads(ctx context.Context, limit int) ([]domain.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []UploadModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, storageErr("list uploads", err)
	}
	res := make([]domain.Upload, 0, len(models))
	for _, m := range models {
		res = append(res, uploadFromModel(m))
	}
	return res, nil
}

// UpdateUpload applies the non-nil fields of update.
func (s *GormStore) UpdateUpload(ctx context.Context, id string, update UploadUpdate) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		updates["status"] = string(*update.Status)
	}
	if update.Progress != nil {
		updates["processing_progress"] = clampProgress(*update.Progress)
	}
	if update.Error != nil {
		updates["error"] = *update.Error
	}
	if update.DocumentID != nil {
		updates["document_id"] = optionalString(*update.DocumentID)
	}
	res := s.db.WithContext(ctx).Model(&UploadModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return storageErr("update upload", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: upload %s", domain.ErrNotFound, id)
	}
	return nil
}

// CreateBill stores a bill summary.
func (s *GormStore) CreateBill(ctx context.Context, bill domain.Bill) (domain.Bill, error) {
	now := time.Now().UTC()
	bill.ID = uuid.NewString()
	if bill.Status == "" {
		bill.Status = domain.BillPending
	}
	bill.CreatedAt, bill.UpdatedAt = now, now
	model := billToModel(bill)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Bill{}, storageErr("create bill", err)
	}
	return bill, nil
}

// GetBill returns one bill by id.
func (s *GormStore) GetBill(ctx context.Context, id string) (domain.Bill, bool, error) {
	var model BillModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bill{}, false, nil
		}
		return domain.Bill{}, false, storageErr("get bill", err)
	}
	return billFromModel(model), true, nil
}

// ListBills returns bills newest first, without their original text.
func (s *GormStore) ListBills(ctx context.Context) ([]domain.Bill, error) {
	var models []BillModel
	if err := s.db.WithContext(ctx).Omit("original_text").Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, storageErr("list bills", err)
	}
	res := make([]domain.Bill, 0, len(models))
	for _, m := range models {
		res = append(res, billFromModel(m))
	}
	return res, nil
}

// CreateProceeding stores a parliamentary proceeding summary.
func (s *GormStore) CreateProceeding(ctx context.Context, p domain.Proceeding) (domain.Proceeding, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	model := proceedingToModel(p)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Proceeding{}, storageErr("create proceeding", err)
	}
	return p, nil
}

// GetProceeding returns one proceeding by id.
func (s *GormStore) GetProceeding(ctx context.Context, id string) (domain.Proceeding, bool, error) {
	var model ProceedingModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Proceeding{}, false, nil
		}
		return domain.Proceeding{}, false, storageErr("get proceeding", err)
	}
	return proceedingFromModel(model), true, nil
}

// ListProceedings returns proceedings by sitting date, latest first.
func (s *GormStore) ListProceedings(ctx context.Context) ([]domain.Proceeding, error) {
	var models []ProceedingModel
	if err := s.db.WithContext(ctx).
		Select("id", "document_id", "title", "date", "created_at", "updated_at").
		Order("date DESC").
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, storageErr("list proceedings", err)
	}
	res := make([]domain.Proceeding, 0, len(models))
	for _, m := range models {
		res = append(res, proceedingFromModel(m))
	}
	return res, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:               m.ID,
		Title:            m.Title,
		Type:             domain.DocumentType(m.Type),
		Content:          m.Content,
		OriginalFileName: m.OriginalFileName,
		IngestStatus:     domain.IngestStatus(m.IngestStatus),
		IngestError:      m.IngestError,
		TotalChunks:      m.TotalChunks,
		EmbeddedChunks:   m.EmbeddedChunks,
		EmbeddingModel:   m.EmbeddingModel,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func uploadToModel(u domain.Upload) UploadModel {
	meta, _ := json.Marshal(u.Metadata)
	return UploadModel{
		ID:                 u.ID,
		OriginalFileName:   u.OriginalFileName,
		FileSize:           u.FileSize,
		StorageKey:         u.StorageKey,
		Status:             string(u.Status),
		ProcessingProgress: clampProgress(u.ProcessingProgress),
		Error:              u.Error,
		DocumentID:         optionalString(u.DocumentID),
		Metadata:           meta,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func uploadFromModel(m UploadModel) domain.Upload {
	var meta domain.UploadMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return domain.Upload{
		ID:                 m.ID,
		OriginalFileName:   m.OriginalFileName,
		FileSize:           m.FileSize,
		StorageKey:         m.StorageKey,
		Status:             domain.UploadStatus(m.Status),
		ProcessingProgress: m.ProcessingProgress,
		Error:              m.Error,
		DocumentID:         derefString(m.DocumentID),
		Metadata:           meta,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func billToModel(b domain.Bill) BillModel {
	return BillModel{
		ID:            b.ID,
		DocumentID:    optionalString(b.DocumentID),
		Title:         b.Title,
		Status:        string(b.Status),
		Summary:       b.Summary,
		OriginalText:  b.OriginalText,
		PassageDate:   b.PassageDate,
		SessionNumber: b.SessionNumber,
		BillNumber:    b.BillNumber,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func billFromModel(m BillModel) domain.Bill {
	return domain.Bill{
		ID:            m.ID,
		DocumentID:    derefString(m.DocumentID),
		Title:         m.Title,
		Status:        domain.BillStatus(m.Status),
		Summary:       m.Summary,
		OriginalText:  m.OriginalText,
		PassageDate:   m.PassageDate,
		SessionNumber: m.SessionNumber,
		BillNumber:    m.BillNumber,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func proceedingToModel(p domain.Proceeding) ProceedingModel {
	return ProceedingModel{
		ID:           p.ID,
		DocumentID:   optionalString(p.DocumentID),
		Title:        p.Title,
		Date:         p.Date,
		Summary:      p.Summary,
		OriginalText: p.OriginalText,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func proceedingFromModel(m ProceedingModel) domain.Proceeding {
	return domain.Proceeding{
		ID:           m.ID,
		DocumentID:   derefString(m.DocumentID),
		Title:        m.Title,
		Date:         m.Date,
		Summary:      m.Summary,
		OriginalText: m.OriginalText,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
