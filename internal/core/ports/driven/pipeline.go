package driven

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// PipelineStep is one stage of the ingestion pipeline.
// Steps are chained in a fixed order; each transforms the whole run state.
type PipelineStep interface {
	// Name returns the step name used in progress events and errors.
	Name() string

	// Process transforms data or fails the run.
	Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error)
}
