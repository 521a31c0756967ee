package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"numainda/pkg/domain"
)

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(3, WithClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
}

func mustCreateDocument(t *testing.T, s *MemoryStore, title string) domain.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), NewDocument{
		Title:   title,
		Type:    domain.TypeConstitution,
		Content: "content of " + title,
		Status:  domain.IngestProcessing,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite = %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("zero vector = %v", got)
	}
	if got := CosineSimilarity([]float32{1}, []float32{1, 0}); got != 0 {
		t.Fatalf("length mismatch = %v", got)
	}
}

func TestCreateDocumentAssignsID(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Constitution")
	if doc.ID == "" || doc.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", doc)
	}
	got, ok, err := s.GetDocument(context.Background(), doc.ID)
	if err != nil || !ok {
		t.Fatalf("get document: ok=%v err=%v", ok, err)
	}
	if got.Content != "content of Constitution" || got.IngestStatus != domain.IngestProcessing {
		t.Fatalf("unexpected document: %+v", got)
	}

	list, err := s.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Content != "" {
		t.Fatalf("list should omit content: %+v", list)
	}
}

func TestInsertEmbeddingsRejectsUnknownResource(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Election Law")
	err := s.InsertEmbeddings(context.Background(), []NewEmbedding{
		{ResourceID: doc.ID, Content: "a", Embedding: []float32{1, 0, 0}},
		{ResourceID: "missing", Content: "b", Embedding: []float32{0, 1, 0}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, _ := s.CountEmbeddings(context.Background(), doc.ID)
	if n != 0 {
		t.Fatalf("batch must be all-or-nothing, stored %d", n)
	}
}

func TestInsertEmbeddingsRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Bill")
	err := s.InsertEmbeddings(context.Background(), []NewEmbedding{
		{ResourceID: doc.ID, Content: "a", Embedding: []float32{1, 0}},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSearchThresholdOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Constitution")
	if err := s.InsertEmbeddings(ctx, []NewEmbedding{
		{ResourceID: doc.ID, ChunkIndex: 0, Content: "exact", Embedding: []float32{1, 0, 0}, Model: "m"},
		{ResourceID: doc.ID, ChunkIndex: 1, Content: "close", Embedding: []float32{0.9, 0.1, 0}, Model: "m"},
		{ResourceID: doc.ID, ChunkIndex: 2, Content: "far", Embedding: []float32{0, 1, 0}, Model: "m"},
		{ResourceID: doc.ID, ChunkIndex: 3, Content: "other model", Embedding: []float32{1, 0, 0}, Model: "other"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := s.SearchEmbeddings(ctx, SearchQuery{Vector: []float32{1, 0, 0}, Model: "m", MinSimilarity: 0.75, Limit: 6})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Record.Content != "exact" || hits[1].Record.Content != "close" {
		t.Fatalf("unexpected order: %q, %q", hits[0].Record.Content, hits[1].Record.Content)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Fatalf("hits not sorted by similarity")
	}

	hits, err = s.SearchEmbeddings(ctx, SearchQuery{Vector: []float32{1, 0, 0}, Model: "m", MinSimilarity: 0.75, Limit: 1})
	if err != nil || len(hits) != 1 {
		t.Fatalf("limit: hits=%d err=%v", len(hits), err)
	}

	hits, err = s.SearchEmbeddings(ctx, SearchQuery{Vector: []float32{0, 0, 1}, Model: "m", MinSimilarity: 0.75, Limit: 6})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", hits)
	}
}

func TestSearchThresholdIsStrict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Constitution")
	if err := s.InsertEmbeddings(ctx, []NewEmbedding{
		{ResourceID: doc.ID, Content: "orthogonal", Embedding: []float32{0, 1, 0}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	hits, err := s.SearchEmbeddings(ctx, SearchQuery{Vector: []float32{1, 0, 0}, MinSimilarity: 0, Limit: 6})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("similarity equal to the threshold must be excluded, got %d hits", len(hits))
	}
}

func TestSearchTieBreakIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	older := mustCreateDocument(t, s, "Older")
	newer := mustCreateDocument(t, s, "Newer")
	vec := []float32{0, 0, 1}
	if err := s.InsertEmbeddings(ctx, []NewEmbedding{
		{ResourceID: older.ID, ChunkIndex: 4, Content: "older-4", Embedding: vec},
		{ResourceID: older.ID, ChunkIndex: 2, Content: "older-2", Embedding: vec},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertEmbeddings(ctx, []NewEmbedding{
		{ResourceID: newer.ID, ChunkIndex: 0, Content: "newer-0", Embedding: vec},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	want := []string{"older-2", "older-4", "newer-0"}
	for range 3 {
		hits, err := s.SearchEmbeddings(ctx, SearchQuery{Vector: vec, MinSimilarity: 0.75, Limit: 6})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(hits) != len(want) {
			t.Fatalf("expected %d hits, got %d", len(want), len(hits))
		}
		for i, w := range want {
			if hits[i].Record.Content != w {
				t.Fatalf("hit %d = %q, want %q", i, hits[i].Record.Content, w)
			}
		}
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Bulletin")
	keep := mustCreateDocument(t, s, "Keep")
	if err := s.InsertEmbeddings(ctx, []NewEmbedding{
		{ResourceID: doc.ID, Content: "a", Embedding: []float32{1, 0, 0}},
		{ResourceID: keep.ID, Content: "b", Embedding: []float32{1, 0, 0}},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	upload, err := s.CreateUpload(ctx, domain.Upload{OriginalFileName: "b.pdf", DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("create upload: %v", err)
	}
	bill, err := s.CreateBill(ctx, domain.Bill{DocumentID: doc.ID, Title: "Bill"})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := s.CountEmbeddings(ctx, doc.ID); n != 0 {
		t.Fatalf("embeddings not cascaded: %d", n)
	}
	if n, _ := s.CountEmbeddings(ctx, keep.ID); n != 1 {
		t.Fatalf("unrelated embeddings removed: %d", n)
	}
	gotUpload, _, _ := s.GetUpload(ctx, upload.ID)
	if gotUpload.DocumentID != "" {
		t.Fatalf("upload still linked to deleted document")
	}
	gotBill, ok, _ := s.GetBill(ctx, bill.ID)
	if !ok || gotBill.DocumentID != "" {
		t.Fatalf("bill should survive unlinked: ok=%v %+v", ok, gotBill)
	}
	if err := s.DeleteDocument(ctx, doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpdateIngestProgress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	doc := mustCreateDocument(t, s, "Constitution")
	if err := s.UpdateIngestProgress(ctx, doc.ID, IngestProgress{Status: domain.IngestPartial, EmbeddedChunks: 5, Error: "rate limited"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ := s.GetDocument(ctx, doc.ID)
	if got.IngestStatus != domain.IngestPartial || got.EmbeddedChunks != 5 || got.IngestError != "rate limited" {
		t.Fatalf("unexpected progress: %+v", got)
	}
	if err := s.UpdateIngestProgress(ctx, "missing", IngestProgress{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	first, err := s.CreateUpload(ctx, domain.Upload{OriginalFileName: "a.pdf"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != domain.UploadPending {
		t.Fatalf("default status = %q", first.Status)
	}
	second, _ := s.CreateUpload(ctx, domain.Upload{OriginalFileName: "b.pdf"})

	status := domain.UploadProcessing
	progress := 250
	if err := s.UpdateUpload(ctx, first.ID, UploadUpdate{Status: &status, Progress: &progress}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ := s.GetUpload(ctx, first.ID)
	if got.Status != domain.UploadProcessing || got.ProcessingProgress != 100 {
		t.Fatalf("unexpected upload: %+v", got)
	}

	list, _ := s.ListUploads(ctx, 10)
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("uploads should be newest first: %+v", list)
	}
	if err := s.UpdateUpload(ctx, "missing", UploadUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProceedingsOrderedByDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, date := range []string{"2024-03-01", "2024-05-20", "2023-12-11"} {
		if _, err := s.CreateProceeding(ctx, domain.Proceeding{Title: "Sitting " + date, Date: date, Summary: "s", OriginalText: "t"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := s.ListProceedings(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Date != "2024-05-20" || list[2].Date != "2023-12-11" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].OriginalText != "" {
		t.Fatalf("list should omit original text")
	}
}
