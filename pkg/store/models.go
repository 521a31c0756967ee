package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DocumentModel struct {
	ID               string `gorm:"primaryKey"`
	Title            string `gorm:"not null"`
	Type             string `gorm:"not null;index"`
	Content          string `gorm:"type:text;not null"`
	OriginalFileName string `gorm:"not null"`
	IngestStatus     string `gorm:"not null"`
	IngestError      string
	TotalChunks      int       `gorm:"not null"`
	EmbeddedChunks   int       `gorm:"not null"`
	EmbeddingModel   string    `gorm:"column:embedding_model"`
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// EmbeddingModel is one chunk vector. Rows are written once and removed only
// through the resource_id cascade.
type EmbeddingModel struct {
	ID         string          `gorm:"primaryKey"`
	ResourceID string          `gorm:"not null;index"`
	ChunkIndex int             `gorm:"not null"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536);not null"`
	Model      string          `gorm:"not null;index"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"not null"`
}

type UploadModel struct {
	ID                 string `gorm:"primaryKey"`
	OriginalFileName   string `gorm:"not null"`
	FileSize           int64  `gorm:"not null"`
	StorageKey         string `gorm:"not null"`
	Status             string `gorm:"not null;index"`
	ProcessingProgress int    `gorm:"not null"`
	Error              string
	DocumentID         *string        `gorm:"index"`
	Metadata           datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time      `gorm:"not null;index"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

type BillModel struct {
	ID            string  `gorm:"primaryKey"`
	DocumentID    *string `gorm:"index"`
	Title         string  `gorm:"not null"`
	Status        string  `gorm:"not null"`
	Summary       string  `gorm:"type:text;not null"`
	OriginalText  string  `gorm:"type:text;not null"`
	PassageDate   *time.Time
	SessionNumber string
	BillNumber    string
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type ProceedingModel struct {
	ID           string    `gorm:"primaryKey"`
	DocumentID   *string   `gorm:"index"`
	Title        string    `gorm:"not null"`
	Date         string    `gorm:"not null;index"`
	Summary      string    `gorm:"type:text;not null"`
	OriginalText string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
