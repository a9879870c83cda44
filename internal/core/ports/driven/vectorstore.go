package driven

import "context"

// ChunkPayload is stored alongside each vector point.
type ChunkPayload struct {
	Text       string   `json:"text"`
	Path       string   `json:"path"`
	Namespace  string   `json:"namespace"`
	ChunkIndex int      `json:"chunk_index"`
	Tags       []string `json:"tags"`
}

// VectorPoint is one chunk's dense and sparse vectors with payload.
type VectorPoint struct {
	ID            uint64
	Dense         []float32
	SparseIndices []uint32
	SparseValues  []float32
	Payload       ChunkPayload
}

// VectorQuery describes a hybrid vector search.
type VectorQuery struct {
	Dense         []float32
	SparseIndices []uint32
	SparseValues  []float32
	TopK          int
	Namespace     string

	// Tags optionally restricts matches to points carrying any of the tags.
	Tags []string
}

// VectorMatch is a search hit. Payload is returned as decoded JSON because
// older points may use different field names.
type VectorMatch struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorStore persists and searches chunk vectors.
// Upsert is idempotent on point ID.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context) error

	// Upsert writes one point, replacing any point with the same ID.
	Upsert(ctx context.Context, point VectorPoint) error

	// Search returns the closest points for the query.
	Search(ctx context.Context, query VectorQuery) ([]VectorMatch, error)

	// UpdatePayload merges fields into an existing point's payload.
	UpdatePayload(ctx context.Context, id uint64, payload map[string]any) error
}
