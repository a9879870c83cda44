package chunker

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/workerpool"
)

// Name is the step name.
const Name = "chunk"

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step splits every document into chunks.
type Step struct {
	runner workerpool.Runner
}

// New creates the chunk step. A nil runner chunks sequentially.
func New(runner workerpool.Runner) *Step {
	if runner == nil {
		runner = workerpool.Sequential{}
	}
	return &Step{runner: runner}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

// Process chunks documents concurrently and appends the chunks in document
// order with per-document indices starting at 0.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	perDoc := make([][]domain.Chunk, len(data.Documents))
	err := s.runner.Run(ctx, len(data.Documents), func(_ context.Context, i int) error {
		perDoc[i] = chunkDocument(&data.Documents[i])
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, chunks := range perDoc {
		data.Chunks = append(data.Chunks, chunks...)
	}
	if len(data.Chunks) == 0 {
		return nil, domain.ErrNoChunks
	}

	data.Metrics.ChunksProduced = len(data.Chunks)
	log.Info("%d chunks from %d documents", len(data.Chunks), len(data.Documents))
	return data, nil
}

// FileTypeFor resolves the chunking heuristic of a document: the language
// hint when it is known, else the path.
func FileTypeFor(doc *domain.Document) FileType {
	if ft := DetectLanguage(doc.Language); ft != Unknown {
		return ft
	}
	return Detect(doc.Path)
}

func chunkDocument(doc *domain.Document) []domain.Chunk {
	texts := Build(doc.Content, FileTypeFor(doc))
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			DocumentPath: doc.Path,
			Text:         text,
			ChunkIndex:   i,
			Namespace:    doc.Namespace,
		}
	}
	return chunks
}
