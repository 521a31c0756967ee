package store

import (
	"context"

	"numainda/pkg/domain"
)

// Store defines persistence for documents, their chunk embeddings and the
// admin records derived from them. Implementations wrap backend failures in
// domain.ErrStorage.
type Store interface {
	// documents
	CreateDocument(ctx context.Context, doc NewDocument) (domain.Document, error)
	GetDocument(ctx context.Context, id string) (domain.Document, bool, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	GetDocumentsByIDs(ctx context.Context, ids []string) (map[string]domain.Document, error)
	UpdateIngestProgress(ctx context.Context, id string, progress IngestProgress) error
	DeleteDocument(ctx context.Context, id string) error

	// embeddings
	InsertEmbeddings(ctx context.Context, records []NewEmbedding) error
	CountEmbeddings(ctx context.Context, resourceID string) (int, error)
	SearchEmbeddings(ctx context.Context, query SearchQuery) ([]ScoredEmbedding, error)
	EmbeddingDim() int

	// uploads
	CreateUpload(ctx context.Context, upload domain.Upload) (domain.Upload, error)
	GetUpload(ctx context.Context, id string) (domain.Upload, bool, error)
	ListUploads(ctx context.Context, limit int) ([]domain.Upload, error)
	UpdateUpload(ctx context.Context, id string, update UploadUpdate) error

	// bills
	CreateBill(ctx context.Context, bill domain.Bill) (domain.Bill, error)
	GetBill(ctx context.Context, id string) (domain.Bill, bool, error)
	ListBills(ctx context.Context) ([]domain.Bill, error)

	// proceedings
	CreateProceeding(ctx context.Context, p domain.Proceeding) (domain.Proceeding, error)
	GetProceeding(ctx context.Context, id string) (domain.Proceeding, bool, error)
	ListProceedings(ctx context.Context) ([]domain.Proceeding, error)
}

// NewDocument is the input to CreateDocument. The store assigns the id and
// timestamps.
type NewDocument struct {
	Title            string
	Type             domain.DocumentType
	Content          string
	OriginalFileName string
	Status           domain.IngestStatus
	TotalChunks      int
	EmbeddingModel   string
}

// NewEmbedding is one chunk vector to persist. ResourceID must reference an
// existing document.
type NewEmbedding struct {
	ResourceID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Model      string
	Metadata   domain.ChunkMetadata
}

// IngestProgress updates a document's embedding progress.
type IngestProgress struct {
	Status         domain.IngestStatus
	EmbeddedChunks int
	Error          string
}

// SearchQuery asks for records strictly more similar than MinSimilarity,
// best first, at most Limit of them. An empty Model matches every model.
type SearchQuery struct {
	Vector        []float32
	Model         string
	MinSimilarity float64
	Limit         int
}

// ScoredEmbedding is a stored record with its cosine similarity to the query.
type ScoredEmbedding struct {
	Record     domain.EmbeddingRecord
	Similarity float64
}

// UploadUpdate patches an upload; nil fields are left unchanged.
type UploadUpdate struct {
	Status     *domain.UploadStatus
	Progress   *int
	Error      *string
	DocumentID *string
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
