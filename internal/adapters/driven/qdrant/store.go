package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
)

const defaultLimit = 5

// EnsureCollection creates the collection on every cluster where it does
// not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	for _, c := range s.clusters {
		exists, err := c.api.CollectionExists(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("qdrant %s: collection exists: %w", c.addr, err)
		}
		if exists {
			continue
		}

		err = c.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				DenseVector: {Size: uint64(s.dimensions), Distance: qdrant.Distance_Cosine},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				SparseVector: {},
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant %s: create collection: %w", c.addr, err)
		}
		log.Info("created collection %s on %s", s.collection, c.addr)
	}
	return nil
}

// Upsert writes point to the cluster of its namespace and waits for it to
// be applied.
func (s *Store) Upsert(ctx context.Context, p driven.VectorPoint) error {
	vectors := map[string]*qdrant.Vector{DenseVector: qdrant.NewVectorDense(p.Dense)}
	if len(p.SparseIndices) > 0 {
		vectors[SparseVector] = qdrant.NewVectorSparse(p.SparseIndices, p.SparseValues)
	}
	payload, err := qdrant.TryValueMap(chunkPayload(p.Payload))
	if err != nil {
		return fmt.Errorf("qdrant upsert: payload: %w", err)
	}

	c := s.clusterFor(p.Payload.Namespace)
	_, err = c.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant %s: upsert %d: %w", c.addr, p.ID, err)
	}
	return nil
}

// Search runs a hybrid query on the cluster of the query namespace.
func (s *Store) Search(ctx context.Context, q driven.VectorQuery) ([]driven.VectorMatch, error) {
	c := s.clusterFor(q.Namespace)
	points, err := c.api.Query(ctx, searchRequest(s.collection, q))
	if err != nil {
		return nil, fmt.Errorf("qdrant %s: query: %w", c.addr, err)
	}

	matches := make([]driven.VectorMatch, len(points))
	for i, p := range points {
		matches[i] = driven.VectorMatch{
			ID:      pointID(p.GetId()),
			Score:   p.GetScore(),
			Payload: fromValueMap(p.GetPayload()),
		}
	}
	return matches, nil
}

func searchRequest(collection string, q driven.VectorQuery) *qdrant.QueryPoints {
	limit := uint64(defaultLimit)
	if q.TopK > 0 {
		limit = uint64(q.TopK)
	}
	filter := searchFilter(q)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(q.SparseIndices) == 0 {
		req.Query = qdrant.NewQueryDense(q.Dense)
		req.Using = qdrant.PtrOf(DenseVector)
		return req
	}

	prefetch := limit * 2
	req.Prefetch = []*qdrant.PrefetchQuery{
		{
			Query:  qdrant.NewQueryDense(q.Dense),
			Using:  qdrant.PtrOf(DenseVector),
			Filter: filter,
			Limit:  qdrant.PtrOf(prefetch),
		},
		{
			Query:  qdrant.NewQuerySparse(q.SparseIndices, q.SparseValues),
			Using:  qdrant.PtrOf(SparseVector),
			Filter: filter,
			Limit:  qdrant.PtrOf(prefetch),
		},
	}
	req.Query = qdrant.NewQueryFusion(qdrant.Fusion_RRF)
	return req
}

func searchFilter(q driven.VectorQuery) *qdrant.Filter {
	var must []*qdrant.Condition
	if q.Namespace != "" {
		must = append(must, qdrant.NewMatchKeyword("namespace", q.Namespace))
	}
	if len(q.Tags) > 0 {
		must = append(must, qdrant.NewMatchKeywords("tags", q.Tags...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// UpdatePayload merges fields into the payload of point id. The point's
// cluster is unknown, so every cluster is tried; it succeeds when any does.
func (s *Store) UpdatePayload(ctx context.Context, id uint64, payload map[string]any) error {
	values, err := qdrant.TryValueMap(normalize(payload).(map[string]any))
	if err != nil {
		return fmt.Errorf("update payload %d: %w", id, err)
	}
	var lastErr error
	for _, c := range s.clusters {
		_, err := c.api.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Payload:        values,
			PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDNum(id)),
		})
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("qdrant %s: %w", c.addr, err)
	}
	return fmt.Errorf("update payload %d: %w", id, lastErr)
}

func chunkPayload(p driven.ChunkPayload) map[string]any {
	tags := make([]any, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = t
	}
	return map[string]any{
		"text":        p.Text,
		"path":        p.Path,
		"namespace":   p.Namespace,
		"chunk_index": p.ChunkIndex,
		"tags":        tags,
	}
}

// normalize rewrites typed slices and maps into the []any and
// map[string]any shapes qdrant.NewValue accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case []float32:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	}
	return v
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// fromValueMap decodes a payload into plain Go values. Integers come back
// as float64 so payloads look the same as decoded JSON.
func fromValueMap(m map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return float64(k.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return fromValueMap(k.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := k.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = fromValue(item)
		}
		return out
	}
	return nil
}
