package domain

import "time"

// PipelineData is the state passed between ingestion steps.
// It is owned by a single pipeline run.
type PipelineData struct {
	Documents []Document
	Chunks    []Chunk

	// Metadata holds step annotations such as "ontology_tags_<idx>".
	Metadata map[string]string

	// JobID correlates progress events with a job.
	JobID string

	// Namespace is the namespace the run holds a lock for.
	Namespace string

	Metrics IngestionMetrics
}

// NewPipelineData creates empty pipeline state for the given documents.
func NewPipelineData(docs []Document) *PipelineData {
	return &PipelineData{
		Documents: docs,
		Metadata:  make(map[string]string),
	}
}

// IngestionMetrics are collected during a single pipeline run.
type IngestionMetrics struct {
	DocumentsProcessed int           `json:"documents_processed"`
	ChunksProduced     int           `json:"chunks_produced"`
	EmbeddingCalls     int           `json:"embedding_calls"`
	VectorWrites       int           `json:"vector_writes"`
	GraphNodes         int           `json:"graph_nodes"`
	Duration           time.Duration `json:"duration"`
}

// EventKind classifies progress events.
type EventKind string

// Progress event kinds.
const (
	EventLog       EventKind = "log"
	EventStep      EventKind = "ingest_step"
	EventCrash     EventKind = "crash"
	EventError     EventKind = "ingest_error"
	EventJobUpdate EventKind = "job_update"
)

// StepStatus is the state reported for a pipeline step.
type StepStatus string

// Step statuses.
const (
	StatusRunning StepStatus = "running"
	StatusDone    StepStatus = "done"
	StatusFailed  StepStatus = "failed"
)

// ProgressEvent is an advisory notification emitted while a run progresses.
type ProgressEvent struct {
	Kind    EventKind  `json:"event"`
	JobID   string     `json:"job_id,omitempty"`
	Step    string     `json:"step,omitempty"`
	Status  StepStatus `json:"status,omitempty"`
	Message string     `json:"message,omitempty"`
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

// Job statuses.
const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
	JobSkipped JobStatus = "skipped"
)

// JobResult summarises one ingestion job.
type JobResult struct {
	ID       string
	Status   JobStatus
	Progress int
	Metrics  IngestionMetrics
	Err      error
}
