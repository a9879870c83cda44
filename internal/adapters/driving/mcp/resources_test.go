package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func TestExtractSessionID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid session URI", uri: "mnemo://sessions/abc-123", expected: "abc-123"},
		{name: "invalid prefix", uri: "file://sessions/abc-123", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractSessionID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleMetricsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("without recorder returns zeros", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		result, err := server.handleMetricsResource(ctx, makeReadResourceRequest("mnemo://metrics/last"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"vector_writes": 0`)
	})

	t.Run("returns last run", func(t *testing.T) {
		metrics := &mockMetrics{last: domain.IngestionMetrics{VectorWrites: 9}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Metrics: metrics})
		require.NoError(t, err)

		result, err := server.handleMetricsResource(ctx, makeReadResourceRequest("mnemo://metrics/last"))

		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, `"vector_writes": 9`)
	})
}

func TestServer_handleSessionResource(t *testing.T) {
	ctx := context.Background()
	session := domain.NewRagSession("s-1")
	session.Append("what is mnemo", "test_project_chunk")
	store := &mockSessionStore{sessions: map[string]*domain.RagSession{"s-1": session}}

	t.Run("returns session history", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sessions: store})
		require.NoError(t, err)

		result, err := server.handleSessionResource(ctx, makeReadResourceRequest("mnemo://sessions/s-1"))

		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, "what is mnemo")
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sessions: store})
		require.NoError(t, err)

		_, err = server.handleSessionResource(ctx, makeReadResourceRequest("mnemo://sessions/nope"))
		assert.Error(t, err)
	})

	t.Run("nil session store is not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, err = server.handleSessionResource(ctx, makeReadResourceRequest("mnemo://sessions/s-1"))
		assert.Error(t, err)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		failing := &mockSessionStore{err: errors.New("db down")}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Sessions: failing})
		require.NoError(t, err)

		_, err = server.handleSessionResource(ctx, makeReadResourceRequest("mnemo://sessions/s-1"))
		assert.ErrorContains(t, err, "getting session")
	})
}
