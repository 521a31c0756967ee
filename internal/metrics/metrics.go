// Package metrics provides Prometheus metrics for the ingestion and retrieval pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration prometheus.Histogram

	IngestDocuments *prometheus.CounterVec
	IngestChunks    prometheus.Counter
	IngestDuration  prometheus.Histogram

	RetrievalRequests      *prometheus.CounterVec
	RetrievalDuration      prometheus.Histogram
	RetrievalTopSimilarity prometheus.Histogram

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all metrics under the numainda namespace.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.EmbeddingRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numainda_embedding_requests_total",
			Help: "Total number of embedding model calls",
		},
		[]string{"status"},
	)
	m.EmbeddingDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "numainda_embedding_request_duration_seconds",
			Help:    "Duration of embedding model calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.IngestDocuments = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numainda_ingest_documents_total",
			Help: "Documents that finished ingestion, by final status",
		},
		[]string{"status"},
	)
	m.IngestChunks = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "numainda_ingest_chunks_embedded_total",
			Help: "Chunk embeddings written to the vector store",
		},
	)
	m.IngestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "numainda_ingest_duration_seconds",
			Help:    "End-to-end ingestion time per document",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	m.RetrievalRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numainda_retrieval_requests_total",
			Help: "Retrieval queries by outcome (hit, empty, error)",
		},
		[]string{"outcome"},
	)
	m.RetrievalDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "numainda_retrieval_duration_seconds",
			Help:    "Duration of retrieval queries including query embedding",
			Buckets: prometheus.DefBuckets,
		},
	)
	m.RetrievalTopSimilarity = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "numainda_retrieval_top_similarity",
			Help:    "Similarity of the best hit for queries that matched",
			Buckets: []float64{.5, .6, .7, .75, .8, .85, .9, .95, 1},
		},
	)

	m.HTTPRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numainda_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "status"},
	)
	m.HTTPDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "numainda_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEmbedding records one embedding model call.
func (m *Metrics) ObserveEmbedding(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(statusLabel(err)).Inc()
	m.EmbeddingDuration.Observe(d.Seconds())
}

// ObserveEmbeddedChunks counts chunk embeddings persisted by ingestion.
func (m *Metrics) ObserveEmbeddedChunks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestChunks.Add(float64(n))
}

// ObserveIngest records the final status of one document ingestion.
func (m *Metrics) ObserveIngest(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestDocuments.WithLabelValues(status).Inc()
	m.IngestDuration.Observe(d.Seconds())
}

// ObserveRetrieval records one retrieval query.
func (m *Metrics) ObserveRetrieval(results int, topSimilarity float64, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RetrievalDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.RetrievalRequests.WithLabelValues("error").Inc()
	case results == 0:
		m.RetrievalRequests.WithLabelValues("empty").Inc()
	default:
		m.RetrievalRequests.WithLabelValues("hit").Inc()
		m.RetrievalTopSimilarity.Observe(topSimilarity)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithHTTP counts requests and their latency for service.
func (m *Metrics) WithHTTP(service string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(service, r.Method, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
