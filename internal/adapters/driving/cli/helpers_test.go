package cli

import (
	"bytes"
	"context"
	"sync"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// mockIngestion returns a fixed job.
type mockIngestion struct {
	mu         sync.Mutex
	job        domain.JobResult
	namespaces []string
}

func (m *mockIngestion) RunPipeline(context.Context, string, []domain.Document) (*domain.IngestionMetrics, error) {
	return &m.job.Metrics, m.job.Err
}

func (m *mockIngestion) Ingest(context.Context, string) (*domain.IngestionMetrics, error) {
	return &m.job.Metrics, m.job.Err
}

func (m *mockIngestion) RunJob(_ context.Context, ns string) *domain.JobResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces = append(m.namespaces, ns)
	job := m.job
	return &job
}

func (m *mockIngestion) runs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.namespaces...)
}

// mockRetrieval returns fixed context and candidates.
type mockRetrieval struct {
	rc         *domain.RAGContext
	candidates []domain.DebugCandidate
	err        error
	sessionArg string
}

func (m *mockRetrieval) Query(context.Context, string, *domain.RagSession) (*domain.RAGContext, error) {
	return m.rc, m.err
}

func (m *mockRetrieval) GatherCandidates(context.Context, string, *domain.RagSession) ([]domain.DebugCandidate, error) {
	return m.candidates, m.err
}

func (m *mockRetrieval) QueryWithSession(_ context.Context, _, id string) (*domain.RAGContext, string, error) {
	m.sessionArg = id
	if id == "" {
		id = "new-session"
	}
	return m.rc, id, m.err
}

// mockStore covers sessions and ontology rules.
type mockStore struct {
	sessions map[string]*domain.RagSession
	rules    []domain.OntologyRule
}

func (m *mockStore) GetSession(_ context.Context, id string) (*domain.RagSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockStore) SaveSession(_ context.Context, s *domain.RagSession) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockStore) LoadOntologyRules(context.Context) ([]domain.OntologyRule, error) {
	return m.rules, nil
}

func (m *mockStore) SaveOntologyRule(_ context.Context, tag string, patterns []string) error {
	for _, p := range patterns {
		m.rules = append(m.rules, domain.OntologyRule{Pattern: p, Tag: tag})
	}
	return nil
}

// mockRecorder returns a fixed snapshot.
type mockRecorder struct {
	last domain.IngestionMetrics
}

func (m *mockRecorder) RecordRun(domain.IngestionMetrics, error) {}
func (m *mockRecorder) Last() domain.IngestionMetrics           { return m.last }

type testServices struct {
	ingestion *mockIngestion
	retrieval *mockRetrieval
	store     *mockStore
	recorder  *mockRecorder
}

// setupTestServices injects mock services and returns a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingestion: &mockIngestion{job: domain.JobResult{
			ID:      "job-1",
			Status:  domain.JobSuccess,
			Metrics: domain.IngestionMetrics{DocumentsProcessed: 2, ChunksProduced: 5, VectorWrites: 5, GraphNodes: 7},
		}},
		retrieval: &mockRetrieval{
			rc: &domain.RAGContext{
				ProjectChunks: []string{"project chunk"},
				DomainChunks:  []string{"domain chunk"},
				OntologyTags:  []string{"project"},
			},
			candidates: []domain.DebugCandidate{
				{Chunk: "best", FinalScore: 0.8, Tags: []string{"project"}},
				{Chunk: "middle", FinalScore: 0.3},
				{Chunk: "worst", FinalScore: 0.1},
			},
		},
		store:    &mockStore{sessions: make(map[string]*domain.RagSession)},
		recorder: &mockRecorder{last: domain.IngestionMetrics{VectorWrites: 11}},
	}
	SetServices(&Services{
		Ingestion: ts.ingestion,
		Retrieval: ts.retrieval,
		Sessions:  ts.store,
		Rules:     ts.store,
		Metrics:   ts.recorder,
		Namespace: "local",
	})
	return ts, func() { SetServices(nil) }
}

// execute runs the root command with fresh flag values and returns its output.
func execute(args ...string) (string, error) {
	ingestNamespace, ingestWatch, ingestJSON = "", false, false
	querySession, queryNew, queryJSON = "", false, false
	candidatesLimit, candidatesJSON = 10, false
	metricsServe = false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
