package ontology

import (
	"context"
	"strconv"
	"strings"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/workerpool"
)

// Name is the step name.
const Name = "ontology"

// MetadataKeyPrefix prefixes the per-chunk tag entries in PipelineData.Metadata.
const MetadataKeyPrefix = "ontology_tags_"

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step tags every chunk.
type Step struct {
	classifier *Classifier
	runner     workerpool.Runner
}

// New creates the ontology step. A nil runner classifies sequentially.
func New(classifier *Classifier, runner workerpool.Runner) *Step {
	if runner == nil {
		runner = workerpool.Sequential{}
	}
	return &Step{classifier: classifier, runner: runner}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

// Process classifies chunks concurrently, sets Chunk.Tags and records
// "ontology_tags_<idx>" for every chunk.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	tags := make([][]string, len(data.Chunks))
	err := s.runner.Run(ctx, len(data.Chunks), func(_ context.Context, i int) error {
		tags[i] = s.classifier.Classify(data.Chunks[i].Text)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if data.Metadata == nil {
		data.Metadata = make(map[string]string, len(tags))
	}
	for i := range data.Chunks {
		data.Chunks[i].Tags = tags[i]
		data.Metadata[MetadataKey(i)] = strings.Join(tags[i], ",")
	}
	log.Debug("classified %d chunks", len(data.Chunks))
	return data, nil
}

// MetadataKey returns the metadata key holding the tags of chunk i.
func MetadataKey(i int) string {
	return MetadataKeyPrefix + strconv.Itoa(i)
}
