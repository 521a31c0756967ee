package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"numainda/internal/metrics"
	"numainda/internal/ratelimit"
	"numainda/internal/util"
	"numainda/pkg/domain"
	"numainda/services/chat/internal/app"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Metrics *metrics.Metrics
	// Limiter throttles /query and /chat per client IP; nil disables it.
	Limiter        ratelimit.Limiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the public question answering API.
type Server struct {
	app     *app.App
	metrics *metrics.Metrics
	limiter ratelimit.Limiter
	proxies *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	s := &Server{
		app:     cfg.App,
		metrics: cfg.Metrics,
		limiter: cfg.Limiter,
		proxies: cfg.TrustedProxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = s.metrics.WithHTTP("chat", h)
	h = util.WithRequestLog("chat", h)
	h = util.WithRequestID(h)
	return util.WithSecurityHeaders(util.WithCORS(h))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.Handle("POST /query", s.limited(s.handleQuery))
	s.mux.Handle("POST /chat", s.limited(s.handleChat))
	s.mux.HandleFunc("GET /bills", s.handleListBills)
	s.mux.HandleFunc("GET /bills/{id}", s.handleGetBill)
	s.mux.HandleFunc("GET /proceedings", s.handleListProceedings)
	s.mux.HandleFunc("GET /proceedings/{id}", s.handleGetProceeding)
}

func (s *Server) limited(next http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return next
	}
	return ratelimit.Middleware(s.limiter, func(r *http.Request) string {
		return util.ClientIP(r, s.proxies)
	}, next)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Results []domain.RetrievedChunk `json:"results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	results, err := s.app.Query(r.Context(), req.Query)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Results: results})
}

type chatRequest struct {
	Messages []domain.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	answer, err := s.app.Chat(r.Context(), req.Messages)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.app.ListBills(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, ok, err := s.app.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "bill not found")
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleListProceedings(w http.ResponseWriter, r *http.Request) {
	proceedings, err := s.app.ListProceedings(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proceedings": proceedings})
}

func (s *Server) handleGetProceeding(w http.ResponseWriter, r *http.Request) {
	p, ok, err := s.app.GetProceeding(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "proceeding not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
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
