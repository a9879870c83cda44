package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/core/ports/driving"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// PipelineExecutor runs a prepared pipeline over one batch of documents.
type PipelineExecutor interface {
	Execute(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error)
}

// IngestionService serialises pipeline runs per namespace.
type IngestionService struct {
	executor  PipelineExecutor
	locker    driven.NamespaceLocker
	providers driving.ProviderRegistry
	sink      driven.ProgressSink
	newID     func() string
}

// NewIngestionService creates an ingestion service. providers and sink may
// be nil; Ingest then finds no documents and job events are dropped.
func NewIngestionService(
	executor PipelineExecutor,
	locker driven.NamespaceLocker,
	providers driving.ProviderRegistry,
	sink driven.ProgressSink,
) *IngestionService {
	return &IngestionService{
		executor:  executor,
		locker:    locker,
		providers: providers,
		sink:      sink,
		newID:     uuid.NewString,
	}
}

// RunPipeline ingests docs while holding the namespace lock.
func (s *IngestionService) RunPipeline(
	ctx context.Context, namespace string, docs []domain.Document,
) (*domain.IngestionMetrics, error) {
	return s.run(ctx, "", namespace, docs)
}

func (s *IngestionService) run(
	ctx context.Context, jobID, namespace string, docs []domain.Document,
) (*domain.IngestionMetrics, error) {
	logger.Section("Ingestion")
	acquired, err := s.locker.TryAdvisoryLock(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("acquire namespace lock: %w", err)
	}
	if !acquired {
		log.Info("namespace %q is locked by another run, skipping", namespace)
		return &domain.IngestionMetrics{}, nil
	}
	defer func() {
		// The run context may already be cancelled; release regardless.
		if err := s.locker.AdvisoryUnlock(context.WithoutCancel(ctx), namespace); err != nil {
			log.Warn("release namespace lock %q: %v", namespace, err)
		}
	}()

	data := domain.NewPipelineData(docs)
	data.JobID = jobID
	data.Namespace = namespace
	log.Debug("running pipeline for %d documents in %q", len(docs), namespace)

	out, err := s.executor.Execute(ctx, data)
	if err != nil {
		return nil, err
	}
	return &out.Metrics, nil
}

// Ingest loads documents from the providers and runs the pipeline.
func (s *IngestionService) Ingest(ctx context.Context, namespace string) (*domain.IngestionMetrics, error) {
	return s.ingest(ctx, "", namespace)
}

func (s *IngestionService) ingest(ctx context.Context, jobID, namespace string) (*domain.IngestionMetrics, error) {
	var docs []domain.Document
	if s.providers != nil {
		docs = s.providers.LoadDocuments(ctx)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("ingest %q: %w", namespace, domain.ErrNoDocuments)
	}
	return s.run(ctx, jobID, namespace, docs)
}

// RunJob runs Ingest under a fresh job id and reports its lifecycle as
// job_update events.
func (s *IngestionService) RunJob(ctx context.Context, namespace string) *domain.JobResult {
	job := &domain.JobResult{ID: s.newID(), Status: domain.JobRunning}
	s.publishJob(job, "")

	metrics, err := s.ingest(ctx, job.ID, namespace)
	switch {
	case errors.Is(err, domain.ErrNoDocuments):
		job.Status = domain.JobSkipped
		job.Err = err
	case err != nil:
		job.Status = domain.JobFailed
		job.Err = err
	default:
		job.Status = domain.JobSuccess
		job.Progress = 100
		job.Metrics = *metrics
	}

	msg := ""
	if job.Err != nil {
		msg = job.Err.Error()
	}
	s.publishJob(job, msg)
	return job
}

func (s *IngestionService) publishJob(job *domain.JobResult, msg string) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(domain.ProgressEvent{
		Kind:    domain.EventJobUpdate,
		JobID:   job.ID,
		Status:  domain.StepStatus(job.Status),
		Message: msg,
	})
}
