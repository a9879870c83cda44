// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// Embedder generates dense vector embeddings.
//
// Implementations may include:
//   - OpenAI compatible gateways (TensorZero, OpenAI, vLLM)
//   - Test doubles returning fixed vectors
type Embedder interface {
	// Embed generates one embedding per text using the named model.
	// Results are in input order.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 1536).
	Dimensions() int
}
