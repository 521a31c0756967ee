package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"numainda/pkg/ai"
	"numainda/pkg/domain"
	"numainda/pkg/extract"
	"numainda/pkg/store"
	"numainda/pkg/textsplit"
)

type fakeExtractor struct {
	pages []extract.Page
	err   error
}

func (f fakeExtractor) Extract(context.Context, []byte) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	return extract.Result{Pages: f.pages, Method: "fake"}, nil
}

type countingEmbedder struct {
	calls    atomic.Int32
	failFrom int32 // the nth call and every later one fail; 0 never fails
}

func (e *countingEmbedder) EmbedText(_ context.Context, text, _ string) ([]float32, error) {
	n := e.calls.Add(1)
	if e.failFrom > 0 && n >= e.failFrom {
		return nil, errors.New("429 too many requests")
	}
	return []float32{1, float32(len(text) % 7), 1}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	out     string
	err     error
}

func (g *fakeGenerator) GenerateText(_ context.Context, systemPrompt, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, systemPrompt)
	return g.out, g.err
}

func testPages() []extract.Page {
	sentence := "The State shall ensure the full participation of citizens in public life. "
	return []extract.Page{
		{Number: 1, Text: "Equality of Citizens\n" + strings.Repeat(sentence, 3)},
		{Number: 2, Text: "Freedom of Speech\n" + strings.Repeat(sentence, 3)},
	}
}

type fixture struct {
	store    *store.MemoryStore
	embedder *countingEmbedder
	pipeline *Pipeline
	sleeps   []time.Duration
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemoryStore(3), embedder: &countingEmbedder{}}
	if cfg.Client == nil {
		client, err := ai.NewEmbeddingClient(ai.EmbeddingClientConfig{Embedder: f.embedder, Model: "test-embed", Dimensions: 3})
		if err != nil {
			t.Fatalf("client: %v", err)
		}
		cfg.Client = client
	}
	if cfg.Extractor == nil {
		cfg.Extractor = fakeExtractor{pages: testPages()}
	}
	if cfg.Splitter == nil {
		splitter, err := textsplit.New(100, 20)
		if err != nil {
			t.Fatalf("splitter: %v", err)
		}
		cfg.Splitter = splitter
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2
	}
	cfg.Store = f.store
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	f.pipeline = p
	return f
}

func constitutionRequest() Request {
	return Request{File: []byte("%PDF-1.4"), FileName: "constitution.pdf", Title: "Constitution", Type: domain.TypeConstitution}
}

func TestIngestStoresEveryChunk(t *testing.T) {
	f := newFixture(t, Config{})
	var progress []int
	req := constitutionRequest()
	req.OnProgress = func(embedded, total int) { progress = append(progress, embedded) }

	res, err := f.pipeline.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Success || res.Message != successMessage || res.Document == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	doc, ok, _ := f.store.GetDocument(context.Background(), res.Document.ID)
	if !ok {
		t.Fatalf("document not stored")
	}
	if doc.IngestStatus != domain.IngestComplete {
		t.Fatalf("status = %q", doc.IngestStatus)
	}
	if doc.TotalChunks < 3 || doc.EmbeddedChunks != doc.TotalChunks {
		t.Fatalf("chunks total=%d embedded=%d", doc.TotalChunks, doc.EmbeddedChunks)
	}
	if doc.EmbeddingModel != "test-embed" {
		t.Fatalf("embedding model = %q", doc.EmbeddingModel)
	}
	if n, _ := f.store.CountEmbeddings(context.Background(), doc.ID); n != doc.TotalChunks {
		t.Fatalf("stored %d embeddings, want %d", n, doc.TotalChunks)
	}
	if got := int(f.embedder.calls.Load()); got != doc.TotalChunks {
		t.Fatalf("embedder called %d times, want %d", got, doc.TotalChunks)
	}
	wantBatches := (doc.TotalChunks + 1) / 2
	if len(progress) != wantBatches || progress[len(progress)-1] != doc.TotalChunks {
		t.Fatalf("progress callbacks = %v", progress)
	}
	if len(f.sleeps) != wantBatches-1 {
		t.Fatalf("expected %d inter-batch delays, got %d", wantBatches-1, len(f.sleeps))
	}
	for _, d := range f.sleeps {
		if d != DefaultBatchDelay {
			t.Fatalf("delay = %v", d)
		}
	}
	wantContent := testPages()[0].Text + extract.PageSeparator + testPages()[1].Text
	if doc.Content != wantContent {
		t.Fatalf("document content does not match extracted text")
	}
}

func TestIngestTagsPagesAndSections(t *testing.T) {
	f := newFixture(t, Config{})
	res, err := f.pipeline.Ingest(context.Background(), constitutionRequest())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	hits, err := f.store.SearchEmbeddings(context.Background(), store.SearchQuery{Vector: []float32{1, 1, 1}, MinSimilarity: -1, Limit: 100})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != res.Document.TotalChunks {
		t.Fatalf("expected every chunk, got %d", len(hits))
	}
	pages := map[int]bool{}
	sectionFound := false
	for _, h := range hits {
		pages[h.Record.Metadata.PageNumber] = true
		if h.Record.Metadata.Section != nil && *h.Record.Metadata.Section == "Equality of Citizens" {
			sectionFound = true
		}
	}
	if !pages[1] || !pages[2] {
		t.Fatalf("expected chunks on pages 1 and 2, got %v", pages)
	}
	if !sectionFound {
		t.Fatalf("expected a chunk tagged with the page heading")
	}
}

func TestIngestPartialFailureKeepsStoredBatches(t *testing.T) {
	f := newFixture(t, Config{})
	f.embedder.failFrom = 3

	res, err := f.pipeline.Ingest(context.Background(), constitutionRequest())
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if res.Success || res.Document == nil {
		t.Fatalf("expected failed result with document, got %+v", res)
	}
	doc, _, _ := f.store.GetDocument(context.Background(), res.Document.ID)
	if doc.IngestStatus != domain.IngestPartial {
		t.Fatalf("status = %q, want partial", doc.IngestStatus)
	}
	if doc.EmbeddedChunks != 2 || doc.IngestError == "" {
		t.Fatalf("unexpected progress: %+v", doc)
	}
	if n, _ := f.store.CountEmbeddings(context.Background(), doc.ID); n != 2 {
		t.Fatalf("stored %d embeddings, want 2", n)
	}
}

func TestIngestFailsWhenNothingEmbedded(t *testing.T) {
	f := newFixture(t, Config{})
	f.embedder.failFrom = 1

	res, err := f.pipeline.Ingest(context.Background(), constitutionRequest())
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	doc, _, _ := f.store.GetDocument(context.Background(), res.Document.ID)
	if doc.IngestStatus != domain.IngestFailed || doc.EmbeddedChunks != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t, Config{})
	cases := []struct {
		name string
		req  Request
	}{
		{"no file", Request{Title: "x", Type: domain.TypeBill}},
		{"unknown type", Request{File: []byte("x"), Title: "x", Type: "novel"}},
		{"missing type", Request{File: []byte("x"), Title: "x"}},
		{"bulletin without date", Request{File: []byte("x"), Title: "Bulletin", Type: domain.TypeParliamentaryBulletin}},
		{"bulletin bad date", Request{File: []byte("x"), Title: "Bulletin", Type: domain.TypeParliamentaryBulletin, Date: "20/05/2024"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	docs, _ := f.store.ListDocuments(context.Background())
	if len(docs) != 0 {
		t.Fatalf("validation failures must not create documents, got %d", len(docs))
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	f := newFixture(t, Config{Extractor: fakeExtractor{err: domain.ErrExtraction}})
	_, err := f.pipeline.Ingest(context.Background(), constitutionRequest())
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	docs, _ := f.store.ListDocuments(context.Background())
	if len(docs) != 0 {
		t.Fatalf("extraction failure must not create documents")
	}
}

func TestIngestBillWithoutBillFields(t *testing.T) {
	gen := &fakeGenerator{out: "A bill to amend the elections act."}
	f := newFixture(t, Config{Generator: gen})
	res, err := f.pipeline.Ingest(context.Background(), Request{
		File:  []byte("%PDF"),
		Title: "Elections (Amendment) Bill",
		Type:  domain.TypeBill,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Document == nil || res.Document.Type != domain.TypeBill {
		t.Fatalf("document not created: %+v", res)
	}
	if res.Document.OriginalFileName != "Elections (Amendment) Bill.pdf" {
		t.Fatalf("file name = %q", res.Document.OriginalFileName)
	}
	if res.Bill == nil {
		t.Fatalf("expected bill record")
	}
	if res.Bill.BillNumber != "" || res.Bill.SessionNumber != "" || res.Bill.Status != domain.BillPending {
		t.Fatalf("unexpected bill: %+v", res.Bill)
	}
	if res.Bill.Summary != gen.out || res.Bill.DocumentID != res.Document.ID {
		t.Fatalf("bill not linked or summarized: %+v", res.Bill)
	}
}

func TestIngestBillWithoutGeneratorSkipsSummary(t *testing.T) {
	f := newFixture(t, Config{})
	res, err := f.pipeline.Ingest(context.Background(), Request{File: []byte("%PDF"), Title: "Finance Bill", Type: domain.TypeBill, BillNumber: "12"})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Bill != nil {
		t.Fatalf("expected no bill without a generator")
	}
	bills, _ := f.store.ListBills(context.Background())
	if len(bills) != 0 {
		t.Fatalf("expected no stored bills, got %d", len(bills))
	}
}

func TestIngestSummaryFailureKeepsDocument(t *testing.T) {
	f := newFixture(t, Config{Generator: &fakeGenerator{err: errors.New("model unavailable")}})
	res, err := f.pipeline.Ingest(context.Background(), Request{File: []byte("%PDF"), Title: "Finance Bill", Type: domain.TypeBill})
	if err != nil {
		t.Fatalf("summary failure must not fail ingestion: %v", err)
	}
	if !res.Success || res.Bill != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	doc, ok, _ := f.store.GetDocument(context.Background(), res.Document.ID)
	if !ok || doc.IngestStatus != domain.IngestComplete {
		t.Fatalf("document should be complete: ok=%v %+v", ok, doc)
	}
}

func TestIngestBulletinCreatesProceeding(t *testing.T) {
	gen := &fakeGenerator{out: "The house passed the budget."}
	f := newFixture(t, Config{Generator: gen})
	res, err := f.pipeline.Ingest(context.Background(), Request{
		File:  []byte("%PDF"),
		Title: "Senate Bulletin 12",
		Type:  domain.TypeParliamentaryBulletin,
		Date:  "2024-05-20",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Proceeding == nil || res.Proceeding.Date != "2024-05-20" || res.Proceeding.Summary != gen.out {
		t.Fatalf("unexpected proceeding: %+v", res.Proceeding)
	}
	if len(gen.prompts) != 1 || gen.prompts[0] != proceedingSummaryPrompt {
		t.Fatalf("expected the proceeding prompt once")
	}
}

func TestNewRejectsDimensionMismatch(t *testing.T) {
	client, _ := ai.NewEmbeddingClient(ai.EmbeddingClientConfig{Embedder: &countingEmbedder{}, Model: "m", Dimensions: 1536})
	_, err := New(Config{Store: store.NewMemoryStore(3), Client: client, Extractor: fakeExtractor{}})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestIngestCancelledBetweenBatches(t *testing.T) {
	f := newFixture(t, Config{})
	f.pipeline.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}
	res, err := f.pipeline.Ingest(context.Background(), constitutionRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	doc, _, _ := f.store.GetDocument(context.Background(), res.Document.ID)
	if doc.IngestStatus != domain.IngestPartial || doc.EmbeddedChunks != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestIngestReportsDocumentBeforeEmbedding(t *testing.T) {
	f := newFixture(t, Config{})
	f.embedder.failFrom = 1
	var reported []domain.Document
	req := constitutionRequest()
	req.OnDocument = func(doc domain.Document) {
		if n := f.embedder.calls.Load(); n != 0 {
			t.Errorf("document reported after %d embedding calls", n)
		}
		reported = append(reported, doc)
	}

	res, err := f.pipeline.Ingest(context.Background(), req)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if len(reported) != 1 || res.Document == nil || reported[0].ID != res.Document.ID {
		t.Fatalf("reported %+v, result document %+v", reported, res.Document)
	}

	f.embedder.failFrom = 0
	reported = nil
	req.OnDocument = func(doc domain.Document) { reported = append(reported, doc) }
	if _, err := f.pipeline.Ingest(context.Background(), Request{File: nil, Title: "x", Type: domain.TypeOther, OnDocument: req.OnDocument}); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(reported) != 0 {
		t.Fatalf("no document should be reported on validation failure")
	}
}
