package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()
	rc := &domain.RAGContext{
		ProjectChunks: []string{"p1"},
		DomainChunks:  []string{"d1"},
		OntologyTags:  []string{"project"},
	}

	t.Run("returns buckets", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{rc: rc}})
		require.NoError(t, err)

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Query: "project layout"})

		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, output.ProjectChunks)
		assert.Equal(t, []string{"d1"}, output.DomainChunks)
		assert.Empty(t, output.SessionID)
	})

	t.Run("uses session when given", func(t *testing.T) {
		retrieval := &mockRetrievalService{rc: rc}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Query: "q", SessionID: "s-1"})

		require.NoError(t, err)
		assert.Equal(t, "s-1", output.SessionID)
		assert.Equal(t, "s-1", retrieval.lastSession)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{rc: rc}})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{})
		assert.Error(t, err)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{err: errors.New("retrieval failed")}})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Query: "q"})
		assert.ErrorContains(t, err, "retrieval failed")
	})
}

func TestServer_handleCandidates(t *testing.T) {
	ctx := context.Background()
	candidates := make([]domain.DebugCandidate, 15)
	for i := range candidates {
		candidates[i] = domain.DebugCandidate{Chunk: "c", FinalScore: float32(15-i) / 15}
	}
	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{candidates: candidates}})
	require.NoError(t, err)

	t.Run("default limit", func(t *testing.T) {
		_, output, err := server.handleCandidates(ctx, nil, CandidatesInput{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, DefaultCandidateLimit, output.Count)
	})

	t.Run("explicit limit", func(t *testing.T) {
		_, output, err := server.handleCandidates(ctx, nil, CandidatesInput{Query: "q", Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, output.Count)
		assert.InDelta(t, 1.0, output.Candidates[0].FinalScore, 1e-6)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()
	ingestion := &mockIngestionService{job: &domain.JobResult{
		ID:      "job-1",
		Status:  domain.JobFailed,
		Metrics: domain.IngestionMetrics{ChunksProduced: 2},
		Err:     domain.ErrNoVectorWrites,
	}}
	server, err := NewServer(&Ports{
		Retrieval: &mockRetrievalService{},
		Ingestion: ingestion,
		Namespace: "local",
	})
	require.NoError(t, err)

	_, output, err := server.handleIngest(ctx, nil, IngestInput{})

	require.NoError(t, err)
	assert.Equal(t, "local", ingestion.namespace)
	assert.Equal(t, "job-1", output.JobID)
	assert.Equal(t, "failed", output.Status)
	assert.Equal(t, 2, output.Metrics.ChunksProduced)
	assert.Contains(t, output.Error, "no vectors written")
}
