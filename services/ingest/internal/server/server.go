package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"numainda/internal/metrics"
	"numainda/internal/util"
	"numainda/pkg/domain"
	"numainda/services/ingest/internal/app"
)

// Pinger reports backend readiness for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App        *app.App
	AdminToken string
	Metrics    *metrics.Metrics
	// Ready is optional; when set /healthz fails while it errors.
	Ready []Pinger
}

// Server exposes the admin upload API of the ingest service.
type Server struct {
	app        *app.App
	adminToken string
	metrics    *metrics.Metrics
	ready      []Pinger
	mux        *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.AdminToken == "" {
		return nil, errors.New("admin token required")
	}
	s := &Server{
		app:        cfg.App,
		adminToken: cfg.AdminToken,
		metrics:    cfg.Metrics,
		ready:      cfg.Ready,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = s.metrics.WithHTTP("ingest", h)
	h = util.WithRequestLog("ingest", h)
	h = util.WithRequestID(h)
	return util.WithSecurityHeaders(util.WithCORS(h))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.Handle("POST /admin/uploads", s.withAdmin(s.handleUpload))
	s.mux.Handle("GET /admin/uploads", s.withAdmin(s.handleListUploads))
	s.mux.Handle("GET /admin/uploads/{id}", s.withAdmin(s.handleGetUpload))
	s.mux.Handle("GET /admin/uploads/{id}/file", s.withAdmin(s.handleUploadFile))
	s.mux.Handle("GET /admin/documents", s.withAdmin(s.handleListDocuments))
	s.mux.Handle("GET /admin/documents/{id}", s.withAdmin(s.handleGetDocument))
	s.mux.Handle("DELETE /admin/documents/{id}", s.withAdmin(s.handleDeleteDocument))
	s.mux.Handle("GET /admin/jobs/{id}", s.withAdmin(s.handleGetJob))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range s.ready {
		if err := p.Ping(ctx); err != nil {
			util.LoggerFromContext(r.Context()).Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := util.BearerToken(r)
		if !ok || !util.TokenMatches(token, s.adminToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing needs headroom above the file limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes()+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	res, err := s.app.Upload(r.Context(), app.UploadRequest{
		FileName: header.Filename,
		Content:  file,
		Metadata: domain.UploadMetadata{
			Title:         r.FormValue("title"),
			Type:          domain.DocumentType(r.FormValue("type")),
			Date:          r.FormValue("date"),
			BillNumber:    r.FormValue("billNumber"),
			SessionNumber: r.FormValue("sessionNumber"),
		},
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	uploads, err := s.app.ListUploads(r.Context(), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	upload, ok, err := s.app.GetUpload(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	url, err := s.app.UploadFileURL(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.app.ListDocuments(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok, err := s.app.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok, err := s.app.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := util.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeError(w, status, util.PublicMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
