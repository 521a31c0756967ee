package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"numainda/pkg/domain"
)

// MemoryStore is an in-process Store with brute-force cosine search. It
// enforces the same reference and cascade rules as GormStore.
type MemoryStore struct {
	mu           sync.RWMutex
	embeddingDim int
	now          func() time.Time

	documents   map[string]domain.Document
	embeddings  []memEmbedding
	uploads     map[string]domain.Upload
	bills       map[string]domain.Bill
	proceedings map[string]domain.Proceeding
}

type memEmbedding struct {
	record domain.EmbeddingRecord
	vector []float32
}

type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for created/updated timestamps.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty store for vectors of length embeddingDim.
func NewMemoryStore(embeddingDim int, options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		embeddingDim: embeddingDim,
		now:          func() time.Time { return time.Now().UTC() },
		documents:    make(map[string]domain.Document),
		uploads:      make(map[string]domain.Upload),
		bills:        make(map[string]domain.Bill),
		proceedings:  make(map[string]domain.Proceeding),
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	return s
}

func (s *MemoryStore) EmbeddingDim() int { return s.embeddingDim }

func (s *MemoryStore) CreateDocument(_ context.Context, doc NewDocument) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	status := doc.Status
	if status == "" {
		status = domain.IngestPending
	}
	d := domain.Document{
		ID:               uuid.NewString(),
		Title:            doc.Title,
		Type:             doc.Type,
		Content:          doc.Content,
		OriginalFileName: doc.OriginalFileName,
		IngestStatus:     status,
		TotalChunks:      doc.TotalChunks,
		EmbeddingModel:   doc.EmbeddingModel,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.documents[d.ID] = d
	return d, nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (domain.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	return d, ok, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		d.Content = ""
		res = append(res, d)
	}
	slices.SortFunc(res, func(a, b domain.Document) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return res, nil
}

func (s *MemoryStore) GetDocumentsByIDs(_ context.Context, ids []string) (map[string]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[string]domain.Document, len(ids))
	for _, id := range ids {
		if d, ok := s.documents[id]; ok {
			d.Content = ""
			res[id] = d
		}
	}
	return res, nil
}

func (s *MemoryStore) UpdateIngestProgress(_ context.Context, id string, progress IngestProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	if progress.Status != "" {
		d.IngestStatus = progress.Status
	}
	d.EmbeddedChunks = progress.EmbeddedChunks
	d.IngestError = progress.Error
	d.UpdatedAt = s.now()
	s.documents[id] = d
	return nil
}

// DeleteDocument removes the document and cascades to its embeddings.
// Uploads, bills and proceedings keep their rows with the link cleared.
func (s *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	delete(s.documents, id)
	s.embeddings = slices.DeleteFunc(s.embeddings, func(e memEmbedding) bool {
		return e.record.ResourceID == id
	})
	for k, u := range s.uploads {
		if u.DocumentID == id {
			u.DocumentID = ""
			s.uploads[k] = u
		}
	}
	for k, b := range s.bills {
		if b.DocumentID == id {
			b.DocumentID = ""
			s.bills[k] = b
		}
	}
	for k, p := range s.proceedings {
		if p.DocumentID == id {
			p.DocumentID = ""
			s.proceedings[k] = p
		}
	}
	return nil
}

func (s *MemoryStore) InsertEmbeddings(_ context.Context, records []NewEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if err := checkDim(rec.Embedding, s.embeddingDim); err != nil {
			return err
		}
		if _, ok := s.documents[rec.ResourceID]; !ok {
			return fmt.Errorf("%w: embedding references unknown document %s", domain.ErrNotFound, rec.ResourceID)
		}
	}
	now := s.now()
	for _, rec := range records {
		s.embeddings = append(s.embeddings, memEmbedding{
			record: domain.EmbeddingRecord{
				ID:         uuid.NewString(),
				ResourceID: rec.ResourceID,
				ChunkIndex: rec.ChunkIndex,
				Content:    rec.Content,
				Model:      rec.Model,
				Metadata:   rec.Metadata,
				CreatedAt:  now,
			},
			vector: slices.Clone(rec.Embedding),
		})
	}
	return nil
}

func (s *MemoryStore) CountEmbeddings(_ context.Context, resourceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.embeddings {
		if e.record.ResourceID == resourceID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SearchEmbeddings(_ context.Context, query SearchQuery) ([]ScoredEmbedding, error) {
	if query.Limit <= 0 {
		return []ScoredEmbedding{}, nil
	}
	if err := checkDim(query.Vector, s.embeddingDim); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []ScoredEmbedding
	for _, e := range s.embeddings {
		if query.Model != "" && e.record.Model != query.Model {
			continue
		}
		sim := CosineSimilarity(query.Vector, e.vector)
		if sim <= query.MinSimilarity {
			continue
		}
		res = append(res, ScoredEmbedding{Record: e.record, Similarity: sim})
	}
	SortScored(res)
	if len(res) > query.Limit {
		res = res[:query.Limit]
	}
	if res == nil {
		res = []ScoredEmbedding{}
	}
	return res, nil
}

// SortScored orders hits by similarity descending, breaking ties by record
// creation time, chunk index and id so that equal scores rank the same way
// on every call.
func SortScored(hits []ScoredEmbedding) {
	slices.SortStableFunc(hits, func(a, b ScoredEmbedding) int {
		return cmp.Or(
			cmp.Compare(b.Similarity, a.Similarity),
			a.Record.CreatedAt.Compare(b.Record.CreatedAt),
			cmp.Compare(a.Record.ChunkIndex, b.Record.ChunkIndex),
			strings.Compare(a.Record.ID, b.Record.ID),
		)
	})
}

func (s *MemoryStore) CreateUpload(_ context.Context, upload domain.Upload) (domain.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if _, exists := s.uploads[upload.ID]; exists {
		return domain.Upload{}, fmt.Errorf("%w: upload %s already exists", domain.ErrStorage, upload.ID)
	}
	if upload.Status == "" {
		upload.Status = domain.UploadPending
	}
	upload.ProcessingProgress = clampProgress(upload.ProcessingProgress)
	upload.CreatedAt, upload.UpdatedAt = now, now
	s.uploads[upload.ID] = upload
	return upload, nil
}

func (s *MemoryStore) GetUpload(_ context.Context, id string) (domain.Upload, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	return u, ok, nil
}

func (s *MemoryStore) ListUploads(_ context.Context, limit int) ([]domain.Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		res = append(res, u)
	}
	slices.SortFunc(res, func(a, b domain.Upload) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStore) UpdateUpload(_ context.Context, id string, update UploadUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		return fmt.Errorf("%w: upload %s", domain.ErrNotFound, id)
	}
	if update.Status != nil {
		u.Status = *update.Status
	}
	if update.Progress != nil {
		u.ProcessingProgress = clampProgress(*update.Progress)
	}
	if update.Error != nil {
		u.Error = *update.Error
	}
	if update.DocumentID != nil {
		u.DocumentID = strings.TrimSpace(*update.DocumentID)
	}
	u.UpdatedAt = s.now()
	s.uploads[id] = u
	return nil
}

func (s *MemoryStore) CreateBill(_ context.Context, bill domain.Bill) (domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	bill.ID = uuid.NewString()
	if bill.Status == "" {
		bill.Status = domain.BillPending
	}
	bill.CreatedAt, bill.UpdatedAt = now, now
	s.bills[bill.ID] = bill
	return bill, nil
}

func (s *MemoryStore) GetBill(_ context.Context, id string) (domain.Bill, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bills[id]
	return b, ok, nil
}

func (s *MemoryStore) ListBills(_ context.Context) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Bill, 0, len(s.bills))
	for _, b := range s.bills {
		b.OriginalText = ""
		res = append(res, b)
	}
	slices.SortFunc(res, func(a, b domain.Bill) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return res, nil
}

func (s *MemoryStore) CreateProceeding(_ context.Context, p domain.Proceeding) (domain.Proceeding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	s.proceedings[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetProceeding(_ context.Context, id string) (domain.Proceeding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proceedings[id]
	return p, ok, nil
}

func (s *MemoryStore) ListProceedings(_ context.Context) ([]domain.Proceeding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Proceeding, 0, len(s.proceedings))
	for _, p := range s.proceedings {
		p.Summary = ""
		p.OriginalText = ""
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b domain.Proceeding) int {
		return cmp.Or(strings.Compare(b.Date, a.Date), b.CreatedAt.Compare(a.CreatedAt))
	})
	return res, nil
}
