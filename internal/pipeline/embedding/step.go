package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/keyword"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/workerpool"
)

// Name is the step name.
const Name = "embed"

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step embeds chunks grouped by routed model.
type Step struct {
	embedder driven.Embedder
	router   Router
	runner   workerpool.Runner
}

// New creates the embedding step. A nil runner embeds groups sequentially.
func New(embedder driven.Embedder, router Router, runner workerpool.Runner) *Step {
	if runner == nil {
		runner = workerpool.Sequential{}
	}
	return &Step{embedder: embedder, router: router, runner: runner}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

type group struct {
	model   string
	indices []int
}

// Process attaches a sanitised dense vector and a sparse vector to every
// chunk. The first failing model group fails the run.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	if len(data.Chunks) == 0 {
		return nil, fmt.Errorf("no chunks available for embedding: %w", domain.ErrNoChunks)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	groups := s.group(data)
	vectors := make([][][]float32, len(groups))
	err := s.runner.Run(ctx, len(groups), func(ctx context.Context, gi int) error {
		g := groups[gi]
		texts := make([]string, len(g.indices))
		for j, idx := range g.indices {
			texts[j] = data.Chunks[idx].Text
		}
		out, err := s.embedder.Embed(ctx, g.model, texts)
		if err != nil {
			return fmt.Errorf("model %s: %w: %w", g.model, domain.ErrEmbeddingFailed, err)
		}
		if len(out) != len(texts) {
			return fmt.Errorf("model %s: %w: got %d vectors for %d texts",
				g.model, domain.ErrEmbeddingFailed, len(out), len(texts))
		}
		vectors[gi] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	for gi, g := range groups {
		for j, idx := range g.indices {
			data.Chunks[idx].Embedding = Sanitize(vectors[gi][j])
		}
	}
	for i := range data.Chunks {
		data.Chunks[i].SparseIndices, data.Chunks[i].SparseValues = keyword.SparseVector(data.Chunks[i].Text)
	}

	data.Metrics.EmbeddingCalls += len(data.Chunks)
	log.Info("embedded %d chunks with %d models", len(data.Chunks), len(groups))
	return data, nil
}

func (s *Step) group(data *domain.PipelineData) []group {
	docs := make(map[string]*domain.Document, len(data.Documents))
	for i := range data.Documents {
		docs[data.Documents[i].Path] = &data.Documents[i]
	}

	byModel := make(map[string][]int)
	for i := range data.Chunks {
		chunk := &data.Chunks[i]
		model := s.router.Route(TargetFor(chunk, docs[chunk.DocumentPath]))
		byModel[model] = append(byModel[model], i)
	}

	groups := make([]group, 0, len(byModel))
	for model, indices := range byModel {
		groups = append(groups, group{model: model, indices: indices})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].model < groups[j].model })
	return groups
}

// Sanitize replaces non-finite values with 0, L2-normalises the vector and
// clamps every component to [-1, 1].
func Sanitize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		out[i] = float32(f)
		sum += f * f
	}
	norm := math.Sqrt(sum)
	for i := range out {
		f := float64(out[i])
		if norm > 0 {
			f /= norm
		}
		out[i] = float32(math.Max(-1, math.Min(1, f)))
	}
	return out
}
