package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// mockLocker records lock calls and can refuse or fail.
type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	lockErr  error
	unlocked []string
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) TryAdvisoryLock(_ context.Context, ns string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return false, m.lockErr
	}
	if m.held[ns] {
		return false, nil
	}
	m.held[ns] = true
	return true, nil
}

func (m *mockLocker) AdvisoryUnlock(_ context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, ns)
	m.unlocked = append(m.unlocked, ns)
	return nil
}

// mockExecutor returns canned metrics and captures its input.
type mockExecutor struct {
	got     *domain.PipelineData
	err     error
	metrics domain.IngestionMetrics
}

func (m *mockExecutor) Execute(_ context.Context, data *domain.PipelineData) (*domain.PipelineData, error) {
	m.got = data
	if m.err != nil {
		return nil, m.err
	}
	data.Metrics = m.metrics
	return data, nil
}

// mockProvider returns fixed documents.
type mockProvider struct {
	name     string
	priority int
	docs     []domain.Document
	err      error
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Priority() int { return m.priority }
func (m *mockProvider) LoadDocuments(context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

// mockSink collects published events.
type mockSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (m *mockSink) Publish(e domain.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func TestIngestionService_RunPipeline(t *testing.T) {
	locker := newMockLocker()
	exec := &mockExecutor{metrics: domain.IngestionMetrics{ChunksProduced: 3}}
	svc := NewIngestionService(exec, locker, nil, nil)

	docs := []domain.Document{{Path: "a.md", Content: "# A"}}
	metrics, err := svc.RunPipeline(context.Background(), "local", docs)

	require.NoError(t, err)
	assert.Equal(t, 3, metrics.ChunksProduced)
	assert.Equal(t, "local", exec.got.Namespace)
	assert.Equal(t, docs, exec.got.Documents)
	assert.Equal(t, []string{"local"}, locker.unlocked)
	assert.Empty(t, locker.held)
}

func TestIngestionService_RunPipeline_LockHeld(t *testing.T) {
	locker := newMockLocker()
	locker.held["local"] = true
	exec := &mockExecutor{}
	svc := NewIngestionService(exec, locker, nil, nil)

	metrics, err := svc.RunPipeline(context.Background(), "local", []domain.Document{{Path: "a"}})

	require.NoError(t, err)
	assert.Equal(t, domain.IngestionMetrics{}, *metrics)
	assert.Nil(t, exec.got)
	assert.Empty(t, locker.unlocked)
}

func TestIngestionService_RunPipeline_UnlocksOnFailure(t *testing.T) {
	locker := newMockLocker()
	exec := &mockExecutor{err: domain.ErrNoVectorWrites}
	svc := NewIngestionService(exec, locker, nil, nil)

	_, err := svc.RunPipeline(context.Background(), "ns", []domain.Document{{Path: "a"}})

	assert.ErrorIs(t, err, domain.ErrNoVectorWrites)
	assert.Equal(t, []string{"ns"}, locker.unlocked)
}

func TestIngestionService_RunPipeline_LockError(t *testing.T) {
	locker := newMockLocker()
	locker.lockErr = errors.New("db down")
	svc := NewIngestionService(&mockExecutor{}, locker, nil, nil)

	_, err := svc.RunPipeline(context.Background(), "ns", nil)

	assert.ErrorContains(t, err, "acquire namespace lock")
}

func TestIngestionService_Ingest(t *testing.T) {
	registry := NewProviderRegistry(
		&mockProvider{name: "github", priority: 10, docs: []domain.Document{{Path: "gh.md"}}},
		&mockProvider{name: "broken", priority: 2, err: errors.New("nope")},
		&mockProvider{name: "filesystem", priority: 1, docs: []domain.Document{{Path: "fs.md"}}},
	)
	exec := &mockExecutor{metrics: domain.IngestionMetrics{DocumentsProcessed: 2}}
	svc := NewIngestionService(exec, newMockLocker(), registry, nil)

	metrics, err := svc.Ingest(context.Background(), "local")

	require.NoError(t, err)
	assert.Equal(t, 2, metrics.DocumentsProcessed)
	require.Len(t, exec.got.Documents, 2)
	assert.Equal(t, "fs.md", exec.got.Documents[0].Path)
	assert.Equal(t, "gh.md", exec.got.Documents[1].Path)
}

func TestIngestionService_Ingest_NoDocuments(t *testing.T) {
	svc := NewIngestionService(&mockExecutor{}, newMockLocker(), NewProviderRegistry(), nil)

	_, err := svc.Ingest(context.Background(), "local")

	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestIngestionService_RunJob(t *testing.T) {
	tests := []struct {
		name       string
		docs       []domain.Document
		execErr    error
		wantStatus domain.JobStatus
	}{
		{name: "success", docs: []domain.Document{{Path: "a"}}, wantStatus: domain.JobSuccess},
		{name: "failure", docs: []domain.Document{{Path: "a"}}, execErr: domain.ErrNoChunks, wantStatus: domain.JobFailed},
		{name: "nothing to ingest", wantStatus: domain.JobSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mockSink{}
			exec := &mockExecutor{err: tt.execErr, metrics: domain.IngestionMetrics{GraphNodes: 4}}
			registry := NewProviderRegistry(&mockProvider{name: "p", docs: tt.docs})
			svc := NewIngestionService(exec, newMockLocker(), registry, sink)
			svc.newID = func() string { return "job-1" }

			job := svc.RunJob(context.Background(), "ns")

			assert.Equal(t, "job-1", job.ID)
			assert.Equal(t, tt.wantStatus, job.Status)
			require.Len(t, sink.events, 2)
			assert.Equal(t, domain.EventJobUpdate, sink.events[0].Kind)
			assert.Equal(t, domain.StepStatus(domain.JobRunning), sink.events[0].Status)
			assert.Equal(t, domain.StepStatus(tt.wantStatus), sink.events[1].Status)
			if tt.wantStatus == domain.JobSuccess {
				assert.Equal(t, 100, job.Progress)
				assert.Equal(t, 4, job.Metrics.GraphNodes)
				assert.Equal(t, "job-1", exec.got.JobID)
				assert.NoError(t, job.Err)
			} else {
				assert.Error(t, job.Err)
				assert.NotEmpty(t, sink.events[1].Message)
			}
		})
	}
}

func TestProviderRegistry_Names(t *testing.T) {
	r := NewProviderRegistry(
		&mockProvider{name: "github", priority: 10},
		&mockProvider{name: "pdf", priority: 2},
		nil,
		&mockProvider{name: "filesystem", priority: 1},
	)
	r.Register(&mockProvider{name: "openapi", priority: 5})

	assert.Equal(t, []string{"filesystem", "pdf", "openapi", "github"}, r.Names())
}
