package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"numainda/internal/metrics"
	"numainda/pkg/domain"
	"numainda/pkg/ingest"
	"numainda/pkg/queue"
	"numainda/pkg/storage"
	"numainda/pkg/store"
	"numainda/services/ingest/internal/app"
)

const adminToken = "test-admin-token"

type memQueue struct{ jobs map[string]queue.JobStatus }

func (q *memQueue) Enqueue(_ context.Context, uploadID string) (queue.JobStatus, error) {
	job := queue.JobStatus{ID: "job-" + uploadID, UploadID: uploadID, Status: queue.StatusQueued}
	q.jobs[job.ID] = job
	return job, nil
}

func (q *memQueue) GetJob(_ context.Context, id string) (queue.JobStatus, bool, error) {
	job, ok := q.jobs[id]
	return job, ok, nil
}

type noopIngester struct{}

func (noopIngester) Ingest(context.Context, ingest.Request) (ingest.Result, error) {
	return ingest.Result{}, errors.New("not used")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestServer(t *testing.T, ready ...Pinger) (*Server, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore(3)
	a, err := app.New(app.Config{
		Store:    s,
		Objects:  storage.NewMemoryStore(),
		Queue:    &memQueue{jobs: make(map[string]queue.JobStatus)},
		Pipeline: noopIngester{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv, err := New(Config{App: a, AdminToken: adminToken, Metrics: metrics.New(), Ready: ready})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, s
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		_, _ = fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	if auth {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/admin/uploads", nil), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/uploads", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(t, h, req, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rec.Code)
	}
	if rec := do(t, h, httptest.NewRequest(http.MethodGet, "/admin/uploads", nil), true); rec.Code != http.StatusOK {
		t.Fatalf("authorized status = %d", rec.Code)
	}
}

func TestUploadFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	body, ctype := multipartBody(t, map[string]string{"title": "Elections Act 2017", "type": "election_law"}, "elections.pdf", []byte("%PDF-1.7 body"))
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(t, h, req, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d body=%s", rec.Code, rec.Body.String())
	}
	var res app.UploadResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Upload.Metadata.Title != "Elections Act 2017" || res.Upload.Metadata.Type != domain.TypeElectionLaw {
		t.Fatalf("unexpected upload: %+v", res.Upload)
	}

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/admin/uploads/"+res.Upload.ID, nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get upload status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/admin/jobs/"+res.Job.ID, nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/admin/uploads/"+res.Upload.ID+"/file", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("file url status = %d", rec.Code)
	}
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	body, ctype := multipartBody(t, map[string]string{"type": "parliamentary_bulletin"}, "bulletin.pdf", []byte("%PDF-1.7"))
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(t, h, req, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var payload map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload["error"] == "" {
		t.Fatalf("expected error message")
	}

	body, ctype = multipartBody(t, map[string]string{"type": "other"}, "", nil)
	req = httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ctype)
	if rec := do(t, h, req, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d", rec.Code)
	}
}

func TestDocumentRoutes(t *testing.T) {
	srv, s := newTestServer(t)
	h := srv.Router()
	doc, err := s.CreateDocument(context.Background(), store.NewDocument{Title: "Constitution", Type: domain.TypeConstitution, Content: "text"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/admin/documents", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/admin/documents/"+doc.ID, nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/admin/documents/"+doc.ID, nil), true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/admin/documents/"+doc.ID, nil), true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/admin/documents/"+doc.ID, nil), true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}

	unhealthy, _ := newTestServer(t, failingPinger{})
	rec = do(t, unhealthy.Router(), httptest.NewRequest(http.MethodGet, "/healthz", nil), false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
}
