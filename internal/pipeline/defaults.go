package pipeline

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/pipeline/chunker"
	"github.com/custodia-labs/mnemo/internal/pipeline/embedding"
	"github.com/custodia-labs/mnemo/internal/pipeline/fingerprint"
	"github.com/custodia-labs/mnemo/internal/pipeline/graphupsert"
	"github.com/custodia-labs/mnemo/internal/pipeline/ontology"
	"github.com/custodia-labs/mnemo/internal/pipeline/vectorupsert"
	"github.com/custodia-labs/mnemo/internal/workerpool"
)

// Dependencies are the adapters the default pipeline is built from.
type Dependencies struct {
	Fingerprints driven.FingerprintStore
	Rules        driven.OntologyRuleStore
	Embedder     driven.Embedder
	Vectors      driven.VectorStore
	Graph        driven.GraphStore
	Router       embedding.Router
	Runner       workerpool.Runner

	// Dimensions sizes the fallback vector of chunks without an embedding.
	Dimensions int
}

// DefaultRegistry builds the fixed chain
// fingerprint -> chunk -> ontology -> embed -> vector_upsert -> graph_upsert.
// Ontology rules are loaded once here.
func DefaultRegistry(ctx context.Context, deps Dependencies) (*Registry, error) {
	rules, err := ontology.LoadRules(ctx, deps.Rules)
	if err != nil {
		return nil, err
	}
	dims := deps.Dimensions
	if dims <= 0 && deps.Embedder != nil {
		dims = deps.Embedder.Dimensions()
	}

	return NewRegistry(
		fingerprint.New(deps.Fingerprints),
		chunker.New(deps.Runner),
		ontology.New(ontology.NewClassifier(rules), deps.Runner),
		embedding.New(deps.Embedder, deps.Router, deps.Runner),
		vectorupsert.New(deps.Vectors, deps.Fingerprints, dims),
		graphupsert.New(deps.Graph),
	), nil
}
