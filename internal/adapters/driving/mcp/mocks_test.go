package mcp

import (
	"context"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	rc          *domain.RAGContext
	candidates  []domain.DebugCandidate
	err         error
	lastSession string
}

func (m *mockRetrievalService) Query(
	_ context.Context, _ string, _ *domain.RagSession,
) (*domain.RAGContext, error) {
	return m.rc, m.err
}

func (m *mockRetrievalService) GatherCandidates(
	_ context.Context, _ string, _ *domain.RagSession,
) ([]domain.DebugCandidate, error) {
	return m.candidates, m.err
}

func (m *mockRetrievalService) QueryWithSession(
	_ context.Context, _, sessionID string,
) (*domain.RAGContext, string, error) {
	m.lastSession = sessionID
	return m.rc, sessionID, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	job       *domain.JobResult
	namespace string
}

func (m *mockIngestionService) RunPipeline(
	_ context.Context, _ string, _ []domain.Document,
) (*domain.IngestionMetrics, error) {
	return &m.job.Metrics, m.job.Err
}

func (m *mockIngestionService) Ingest(_ context.Context, _ string) (*domain.IngestionMetrics, error) {
	return &m.job.Metrics, m.job.Err
}

func (m *mockIngestionService) RunJob(_ context.Context, namespace string) *domain.JobResult {
	m.namespace = namespace
	return m.job
}

// mockSessionStore is a mock implementation of driven.SessionStore.
type mockSessionStore struct {
	sessions map[string]*domain.RagSession
	err      error
}

func (m *mockSessionStore) GetSession(_ context.Context, id string) (*domain.RagSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockSessionStore) SaveSession(_ context.Context, s *domain.RagSession) error {
	m.sessions[s.ID] = s
	return m.err
}

// mockMetrics is a mock implementation of driven.MetricsRecorder.
type mockMetrics struct {
	last domain.IngestionMetrics
}

func (m *mockMetrics) RecordRun(metrics domain.IngestionMetrics, _ error) { m.last = metrics }
func (m *mockMetrics) Last() domain.IngestionMetrics                      { return m.last }
