// Package metrics records ingestion run metrics as Prometheus collectors and
// keeps a snapshot of the most recent run.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Run outcomes used as the "status" label.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder owns a private registry so several recorders can coexist.
type Recorder struct {
	registry *prometheus.Registry

	runs      *prometheus.CounterVec
	documents prometheus.Counter
	chunks    prometheus.Counter
	embedded  prometheus.Counter
	vectors   prometheus.Counter
	nodes     prometheus.Counter
	duration  prometheus.Histogram
	lastRun   *prometheus.GaugeVec

	mu   sync.RWMutex
	last domain.IngestionMetrics
}

// New creates a recorder and registers its collectors.
func New() *Recorder {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	r := &Recorder{
		registry:  prometheus.NewRegistry(),
		runs:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mnemo_ingest_runs_total", Help: "Pipeline runs by outcome"}, []string{"status"}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{Name: "mnemo_ingest_documents_total", Help: "Documents that passed the fingerprint stage"}),
		chunks:    prometheus.NewCounter(prometheus.CounterOpts{Name: "mnemo_ingest_chunks_total", Help: "Chunks produced"}),
		embedded:  prometheus.NewCounter(prometheus.CounterOpts{Name: "mnemo_ingest_embeddings_total", Help: "Chunks sent to the embedder"}),
		vectors:   prometheus.NewCounter(prometheus.CounterOpts{Name: "mnemo_ingest_vector_writes_total", Help: "Points written to the vector store"}),
		nodes:     prometheus.NewCounter(prometheus.CounterOpts{Name: "mnemo_ingest_graph_nodes_total", Help: "File and chunk nodes written to the graph"}),
		duration:  prometheus.NewHistogram(prometheus.HistogramOpts{Name: "mnemo_ingest_run_seconds", Help: "Pipeline run duration", Buckets: buckets}),
		lastRun:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "mnemo_ingest_last_run", Help: "Counters of the most recent run"}, []string{"metric"}),
	}
	r.registry.MustRegister(r.runs, r.documents, r.chunks, r.embedded, r.vectors, r.nodes, r.duration, r.lastRun)
	return r
}

// RecordRun adds a finished run to the collectors and replaces the snapshot.
func (r *Recorder) RecordRun(m domain.IngestionMetrics, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	r.runs.WithLabelValues(status).Inc()
	r.documents.Add(float64(m.DocumentsProcessed))
	r.chunks.Add(float64(m.ChunksProduced))
	r.embedded.Add(float64(m.EmbeddingCalls))
	r.vectors.Add(float64(m.VectorWrites))
	r.nodes.Add(float64(m.GraphNodes))
	r.duration.Observe(m.Duration.Seconds())

	r.lastRun.WithLabelValues("documents_processed").Set(float64(m.DocumentsProcessed))
	r.lastRun.WithLabelValues("chunks_produced").Set(float64(m.ChunksProduced))
	r.lastRun.WithLabelValues("embedding_calls").Set(float64(m.EmbeddingCalls))
	r.lastRun.WithLabelValues("vector_writes").Set(float64(m.VectorWrites))
	r.lastRun.WithLabelValues("graph_nodes").Set(float64(m.GraphNodes))
	r.lastRun.WithLabelValues("duration_seconds").Set(m.Duration.Seconds())

	r.mu.Lock()
	r.last = m
	r.mu.Unlock()
}

// Last returns the metrics of the most recent run.
func (r *Recorder) Last() domain.IngestionMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Registry exposes the collectors, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
