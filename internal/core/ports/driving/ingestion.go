package driving

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// IngestionService runs the ingestion pipeline.
type IngestionService interface {
	// RunPipeline ingests the given documents into namespace.
	// If another run holds the namespace lock it returns zero metrics and
	// a nil error without doing any work.
	RunPipeline(ctx context.Context, namespace string, docs []domain.Document) (*domain.IngestionMetrics, error)

	// Ingest loads documents from all configured providers and runs the pipeline.
	Ingest(ctx context.Context, namespace string) (*domain.IngestionMetrics, error)

	// RunJob runs Ingest as a tracked job and reports job progress events.
	RunJob(ctx context.Context, namespace string) *domain.JobResult
}
