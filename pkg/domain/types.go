package domain

import (
	"strings"
	"time"
)

// DocumentType classifies an ingested legal document.
type DocumentType string

const (
	TypeConstitution          DocumentType = "constitution"
	TypeElectionLaw           DocumentType = "election_law"
	TypeParliamentaryBulletin DocumentType = "parliamentary_bulletin"
	TypeBill                  DocumentType = "bill"
	TypeOther                 DocumentType = "other"
)

// DocumentTypes lists every accepted document type.
var DocumentTypes = []DocumentType{
	TypeConstitution,
	TypeElectionLaw,
	TypeParliamentaryBulletin,
	TypeBill,
	TypeOther,
}

// ParseDocumentType normalizes raw input into a known DocumentType.
func ParseDocumentType(raw string) (DocumentType, bool) {
	value := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range DocumentTypes {
		if t == value {
			return t, true
		}
	}
	return "", false
}

// IngestStatus tracks how far a document got through embedding.
type IngestStatus string

const (
	IngestPending    IngestStatus = "pending"
	IngestProcessing IngestStatus = "processing"
	IngestComplete   IngestStatus = "complete"
	// IngestPartial means some, but not all, chunk embeddings were stored.
	IngestPartial IngestStatus = "partial"
	IngestFailed  IngestStatus = "failed"
)

type Document struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Type             DocumentType `json:"type"`
	Content          string       `json:"content,omitempty"`
	OriginalFileName string       `json:"originalFileName"`
	IngestStatus     IngestStatus `json:"ingestStatus"`
	IngestError      string       `json:"ingestError,omitempty"`
	TotalChunks      int          `json:"totalChunks"`
	EmbeddedChunks   int          `json:"embeddedChunks"`
	EmbeddingModel   string       `json:"embeddingModel,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// ChunkMetadata is persisted with every embedding record.
type ChunkMetadata struct {
	PageNumber int     `json:"pageNumber"`
	Section    *string `json:"section"`
	Timestamp  *string `json:"timestamp"`
}

// Chunk is a bounded slice of a document's content awaiting embedding.
type Chunk struct {
	Index       int           `json:"index"`
	PageContent string        `json:"pageContent"`
	Metadata    ChunkMetadata `json:"metadata"`
}

type EmbeddingRecord struct {
	ID         string        `json:"id"`
	ResourceID string        `json:"resourceId"`
	ChunkIndex int           `json:"chunkIndex"`
	Content    string        `json:"content"`
	Embedding  []float32     `json:"-"`
	Model      string        `json:"model"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// RetrievedChunk is one ranked retrieval hit joined to its parent document.
// DocumentTitle and DocumentType are nil when the parent no longer exists.
type RetrievedChunk struct {
	Content       string        `json:"content"`
	Similarity    float64       `json:"similarity"`
	DocumentID    string        `json:"documentId"`
	DocumentTitle *string       `json:"documentTitle"`
	DocumentType  *DocumentType `json:"documentType"`
	PageNumber    int           `json:"pageNumber"`
	Section       *string       `json:"section"`
	Timestamp     *string       `json:"timestamp,omitempty"`
}

type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

// UploadMetadata carries the admin form fields submitted with a file.
type UploadMetadata struct {
	Title         string       `json:"title"`
	Type          DocumentType `json:"type"`
	Date          string       `json:"date,omitempty"`
	BillNumber    string       `json:"billNumber,omitempty"`
	SessionNumber string       `json:"sessionNumber,omitempty"`
}

type Upload struct {
	ID                 string         `json:"id"`
	OriginalFileName   string         `json:"originalFileName"`
	FileSize           int64          `json:"fileSize"`
	StorageKey         string         `json:"-"`
	Status             UploadStatus   `json:"status"`
	ProcessingProgress int            `json:"processingProgress"`
	Error              string         `json:"error,omitempty"`
	DocumentID         string         `json:"documentId,omitempty"`
	Metadata           UploadMetadata `json:"metadata"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

type BillStatus string

const (
	BillPending  BillStatus = "pending"
	BillPassed   BillStatus = "passed"
	BillRejected BillStatus = "rejected"
)

type Bill struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"documentId"`
	Title         string     `json:"title"`
	Status        BillStatus `json:"status"`
	Summary       string     `json:"summary"`
	OriginalText  string     `json:"originalText,omitempty"`
	PassageDate   *time.Time `json:"passageDate,omitempty"`
	SessionNumber string     `json:"sessionNumber,omitempty"`
	BillNumber    string     `json:"billNumber,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Proceeding summarizes one parliamentary bulletin.
type Proceeding struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	Title        string    `json:"title"`
	Date         string    `json:"date"`
	Summary      string    `json:"summary"`
	OriginalText string    `json:"originalText,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Answer struct {
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	Grounded  bool      `json:"grounded"`
	CreatedAt time.Time `json:"createdAt"`
}

type Source struct {
	Label         string  `json:"label"`
	DocumentTitle string  `json:"documentTitle,omitempty"`
	DocumentType  string  `json:"documentType,omitempty"`
	Location      string  `json:"location,omitempty"`
	Snippet       string  `json:"snippet"`
	Similarity    float64 `json:"similarity"`
}
