package memory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore that
// ranks by dense cosine similarity.
type VectorStore struct {
	mu     sync.RWMutex
	points map[uint64]driven.VectorPoint
	extra  map[uint64]map[string]any
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		points: make(map[uint64]driven.VectorPoint),
		extra:  make(map[uint64]map[string]any),
	}
}

// EnsureCollection is a no-op.
func (s *VectorStore) EnsureCollection(_ context.Context) error {
	return nil
}

// Upsert stores point, replacing any point with the same ID.
func (s *VectorStore) Upsert(_ context.Context, point driven.VectorPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[point.ID] = point
	delete(s.extra, point.ID)
	return nil
}

// Search returns the TopK points of the namespace closest to the dense
// query vector.
func (s *VectorStore) Search(_ context.Context, q driven.VectorQuery) ([]driven.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []driven.VectorMatch
	for id, p := range s.points {
		if q.Namespace != "" && p.Payload.Namespace != q.Namespace {
			continue
		}
		if len(q.Tags) > 0 && !anyTag(p.Payload.Tags, q.Tags) {
			continue
		}
		matches = append(matches, driven.VectorMatch{
			ID:      strconv.FormatUint(id, 10),
			Score:   cosine(q.Dense, p.Dense),
			Payload: s.payload(id, p.Payload),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if q.TopK > 0 && len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

// UpdatePayload merges fields into the payload of point id.
func (s *VectorStore) UpdatePayload(_ context.Context, id uint64, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[id]; !ok {
		return nil
	}
	if s.extra[id] == nil {
		s.extra[id] = make(map[string]any, len(payload))
	}
	for k, v := range payload {
		s.extra[id][k] = v
	}
	return nil
}

// Len returns the number of stored points.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *VectorStore) payload(id uint64, p driven.ChunkPayload) map[string]any {
	tags := make([]any, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = t
	}
	out := map[string]any{
		"text":        p.Text,
		"path":        p.Path,
		"namespace":   p.Namespace,
		"chunk_index": float64(p.ChunkIndex),
		"tags":        tags,
	}
	for k, v := range s.extra[id] {
		out[k] = v
	}
	return out
}

func anyTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
