// Package vectorupsert writes chunk vectors to the vector store.
package vectorupsert

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Name is the step name.
const Name = "vector_upsert"

// MaxPayloadText bounds the chunk text stored in the point payload.
const MaxPayloadText = 2000

// FallbackValue fills the dense vector of chunks without an embedding.
const FallbackValue = 0.1

var _ driven.PipelineStep = (*Step)(nil)

var log = logger.Named(Name)

// Step upserts one point per chunk.
type Step struct {
	store      driven.VectorStore
	metadata   driven.FingerprintStore
	dimensions int
}

// New creates the vector upsert step. metadata may be nil.
func New(store driven.VectorStore, metadata driven.FingerprintStore, dimensions int) *Step {
	return &Step{store: store, metadata: metadata, dimensions: dimensions}
}

// Name returns the step name.
func (s *Step) Name() string { return Name }

// Process ensures the collection exists and upserts every chunk. Failing
// chunks are logged and skipped; the step fails only when none succeed.
func (s *Step) Process(ctx context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	if err := s.store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	docs := make(map[string]*domain.Document, len(data.Documents))
	for i := range data.Documents {
		docs[data.Documents[i].Path] = &data.Documents[i]
	}

	written := 0
	var lastErr error
	for i := range data.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := &data.Chunks[i]
		id := StableChunkID(chunk.DocumentPath, chunk.ChunkIndex)
		if err := s.store.Upsert(ctx, s.point(id, chunk)); err != nil {
			log.Warn("upsert %s#%d: %v", chunk.DocumentPath, chunk.ChunkIndex, err)
			lastErr = err
			continue
		}
		chunk.VectorID = strconv.FormatUint(id, 10)
		written++

		if doc := docs[chunk.DocumentPath]; doc != nil && s.metadata != nil {
			if err := s.metadata.StoreChunkMetadata(ctx, doc, chunk); err != nil {
				log.Warn("chunk metadata %s#%d: %v", chunk.DocumentPath, chunk.ChunkIndex, err)
			}
		}
	}

	if written == 0 {
		if lastErr == nil {
			lastErr = errors.New("no chunks to write")
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNoVectorWrites, lastErr)
	}

	data.Metrics.VectorWrites = written
	log.Info("wrote %d of %d vectors", written, len(data.Chunks))
	return data, nil
}

func (s *Step) point(id uint64, chunk *domain.Chunk) driven.VectorPoint {
	dense := chunk.Embedding
	if len(dense) == 0 {
		dense = FallbackVector(s.dimensions)
	}
	tags := chunk.Tags
	if tags == nil {
		tags = []string{}
	}
	return driven.VectorPoint{
		ID:            id,
		Dense:         dense,
		SparseIndices: chunk.SparseIndices,
		SparseValues:  chunk.SparseValues,
		Payload: driven.ChunkPayload{
			Text:       truncate(chunk.Text, MaxPayloadText),
			Path:       chunk.DocumentPath,
			Namespace:  chunk.Namespace,
			ChunkIndex: chunk.ChunkIndex,
			Tags:       tags,
		},
	}
}

// StableChunkID derives a positive 63-bit point id from the chunk path and
// index. The same pair always yields the same id.
func StableChunkID(path string, index int) uint64 {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]) & (1<<63 - 1)
}

// FallbackVector returns a vector of n FallbackValue components.
func FallbackVector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = FallbackValue
	}
	return v
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
